package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxImagePixels caps the embedded plan raster at roughly 4 MP.
const DefaultMaxImagePixels = 4_000_000

// MaxDecodePixels is the largest source raster decodeImage will allocate.
const MaxDecodePixels = 150_000_000

// decodeHeadroom is how far above the embed cap a source may be before it is
// refused outright.
const decodeHeadroom = 16

// decodeImage decodes a PNG, JPEG, GIF, BMP, TIFF or WebP plan image and
// downsamples it to at most maxPixels pixels. The header is read first so an
// oversized raster is refused before any pixel buffer is allocated.
func decodeImage(data []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode plan image: %w", err)
	}
	if pixels, limit := int64(cfg.Width)*int64(cfg.Height), decodeLimit(maxPixels); pixels > limit {
		return nil, fmt.Errorf("plan image is %dx%d pixels, more than the %d pixel limit", cfg.Width, cfg.Height, limit)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode plan image: %w", err)
	}
	return downscale(img, maxPixels), nil
}

func decodeLimit(maxPixels int) int64 {
	limit := int64(MaxDecodePixels)
	if maxPixels > 0 && int64(maxPixels)*decodeHeadroom < limit {
		limit = int64(maxPixels) * decodeHeadroom
	}
	return limit
}

func downscale(img image.Image, maxPixels int) image.Image {
	b := img.Bounds()
	pixels := b.Dx() * b.Dy()
	if maxPixels <= 0 || pixels <= maxPixels {
		return img
	}
	f := math.Sqrt(float64(maxPixels) / float64(pixels))
	w := max(1, int(float64(b.Dx())*f))
	h := max(1, int(float64(b.Dy())*f))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// rgbSamples flattens img onto white as 8-bit DeviceRGB samples.
func rgbSamples(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			a := uint32(c.A)
			out = append(out,
				blend(c.R, a),
				blend(c.G, a),
				blend(c.B, a))
		}
	}
	return out
}

func blend(v uint8, a uint32) byte {
	return byte((uint32(v)*a + 255*(255-a)) / 255)
}

// addImage embeds img as a compressed image XObject.
func (d *document) addImage(img image.Image) (int, error) {
	b := img.Bounds()
	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8",
		b.Dx(), b.Dy())
	return d.addStream(dict, rgbSamples(img), true)
}
