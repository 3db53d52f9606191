package pdf

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/layout"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildDocument(t *testing.T, data []byte, schedule bool) *layout.Document {
	t.Helper()
	s := domain.NewScene()
	s.Metadata.Name = "Office (east)"
	plan := domain.FloorPlan{Path: "plan.png", Width: 200, Height: 100, PixelsPerMeter: 10}
	if data != nil {
		plan.SetImage(data)
	}
	if err := s.SetPlan(plan); err != nil {
		t.Fatal(err)
	}
	for i, bus := range []string{"1", "1", "2"} {
		d, err := s.PlaceDetector(geometry.Plan(float64(20+i*50), 50), domain.Defaults{})
		if err != nil {
			t.Fatal(err)
		}
		_, err = s.UpdateDetector(d.ID, domain.DetectorUpdate{
			Bus:     domain.StringPtr(bus),
			Group:   domain.StringPtr("2"),
			Address: domain.StringPtr(strconv.Itoa(i + 3)),
			Serial:  domain.StringPtr(fmt.Sprintf("SN%d", i)),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	opts := layout.DefaultOptions()
	opts.IncludeSchedule = schedule
	opts.GeneratedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc, err := layout.Render(context.Background(), s.Snapshot(), layout.DefaultPage(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func plainOptions() Options {
	o := DefaultOptions()
	o.Compress = false
	return o
}

func render(t *testing.T, doc *layout.Document, opts Options) string {
	t.Helper()
	data, err := Render(context.Background(), doc, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return string(data)
}

func TestRenderStructure(t *testing.T) {
	out := render(t, buildDocument(t, nil, false), plainOptions())

	if !strings.HasPrefix(out, "%PDF-1.4\n") {
		t.Errorf("missing header: %q", out[:10])
	}
	if !strings.HasSuffix(out, "%%EOF\n") {
		t.Errorf("missing EOF marker")
	}
	if n := strings.Count(out, "/Type /Page "); n != 1 {
		t.Errorf("expected 1 page, got %d", n)
	}
	if !strings.Contains(out, "/Title (Office \\(east\\))") {
		t.Errorf("missing escaped title")
	}
	if !strings.Contains(out, "/CreationDate (D:20240102030405Z)") {
		t.Errorf("missing creation date")
	}
}

func TestRenderXrefOffsets(t *testing.T) {
	out := render(t, buildDocument(t, pngBytes(t, 8, 4), true), DefaultOptions())

	m := regexp.MustCompile(`startxref\n(\d+)\n`).FindStringSubmatch(out)
	if m == nil {
		t.Fatal("missing startxref")
	}
	xref, _ := strconv.Atoi(m[1])
	if !strings.HasPrefix(out[xref:], "xref\n") {
		t.Fatalf("startxref does not point at xref table")
	}

	entries := regexp.MustCompile(`(\d{10}) 00000 n `).FindAllStringSubmatch(out[xref:], -1)
	if len(entries) == 0 {
		t.Fatal("no xref entries")
	}
	for i, e := range entries {
		off, _ := strconv.Atoi(e[1])
		want := fmt.Sprintf("%d 0 obj\n", i+1)
		if !strings.HasPrefix(out[off:], want) {
			t.Errorf("xref entry %d points at %q", i+1, out[off:off+10])
		}
	}
}

func TestRenderOperations(t *testing.T) {
	out := render(t, buildDocument(t, nil, false), plainOptions())

	for _, want := range []string{
		"(1-23) Tj",
		"(1-24) Tj",
		"(2-25) Tj",
		"(Page 1) Tj",
		"(Generated: 2024-01-02 03:04 | Scale: 10.00 px/m | Devices: 3 | Connections: 0) Tj",
		"(plan.png) Tj",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if n := strings.Count(out, "h B"); n != 3 {
		t.Errorf("expected 3 filled markers, got %d", n)
	}
	if n := strings.Count(out, "h S"); n != 3 {
		t.Errorf("expected 3 range circles, got %d", n)
	}
}

func TestRenderImage(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		out := render(t, buildDocument(t, pngBytes(t, 8, 4), false), plainOptions())
		if !strings.Contains(out, "/Subtype /Image /Width 8 /Height 4") {
			t.Errorf("missing image XObject")
		}
		if !strings.Contains(out, "/XObject << /Im1 ") || !strings.Contains(out, "/Im1 Do Q") {
			t.Errorf("image not referenced from page")
		}
	})

	t.Run("downscaled", func(t *testing.T) {
		o := plainOptions()
		o.MaxImagePixels = 100
		out := render(t, buildDocument(t, pngBytes(t, 40, 40), false), o)
		if !strings.Contains(out, "/Width 10 /Height 10") {
			t.Errorf("image not downscaled")
		}
	})

	t.Run("oversized header refused", func(t *testing.T) {
		data := pngWithSize(t, 50000, 50000)
		_, err := decodeImage(data, DefaultMaxImagePixels)
		if err == nil || !strings.Contains(err.Error(), "pixel limit") {
			t.Fatalf("expected pixel limit error, got %v", err)
		}
		var buf bytes.Buffer
		if err := Write(context.Background(), &buf, buildDocument(t, data, false), plainOptions()); err == nil {
			t.Fatal("expected export to fail")
		}
	})

	t.Run("undecodable", func(t *testing.T) {
		var buf bytes.Buffer
		err := Write(context.Background(), &buf, buildDocument(t, []byte("not an image"), false), plainOptions())
		if err == nil {
			t.Fatal("expected decode error")
		}
		if buf.Len() != 0 {
			t.Errorf("expected nothing written on failure, got %d bytes", buf.Len())
		}
	})
}

func TestDecodeLimit(t *testing.T) {
	tests := []struct {
		maxPixels int
		want      int64
	}{
		{DefaultMaxImagePixels, DefaultMaxImagePixels * decodeHeadroom},
		{100, 100 * decodeHeadroom},
		{0, MaxDecodePixels},
		{-1, MaxDecodePixels},
		{MaxDecodePixels, MaxDecodePixels},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.maxPixels), func(t *testing.T) {
			if got := decodeLimit(tt.maxPixels); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

// pngWithSize returns a 1x1 PNG whose header claims w x h pixels.
func pngWithSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := append([]byte(nil), pngBytes(t, 1, 1)...)
	// 8-byte signature, then IHDR length and type, then width and height.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestRenderSchedule(t *testing.T) {
	out := render(t, buildDocument(t, nil, true), plainOptions())

	if n := strings.Count(out, "/Type /Page "); n != 3 {
		t.Errorf("expected plan page and 2 bus pages, got %d", n)
	}
	for _, want := range []string{"(Bus 1) Tj", "(Bus 2) Tj", "(Serial) Tj", "(SN2) Tj", "(Page 3) Tj", "(Office \\(east\\)) Tj"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderScheduleContinues(t *testing.T) {
	doc := buildDocument(t, nil, false)
	rows := make([]layout.ScheduleRow, 100)
	for i := range rows {
		rows[i] = layout.ScheduleRow{Address: fmt.Sprintf("1-1%d", i)}
	}
	doc.Schedule = []layout.BusSchedule{{Bus: "1", Rows: rows}}

	out := render(t, doc, plainOptions())
	if n := strings.Count(out, "/Type /Page "); n < 3 {
		t.Errorf("expected the table to span several pages, got %d pages", n)
	}
	if !strings.Contains(out, "(Bus 1 \\(continued\\)) Tj") {
		t.Errorf("missing continuation heading")
	}
	if !strings.Contains(out, "(1-199) Tj") {
		t.Errorf("last row missing")
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Render(ctx, buildDocument(t, nil, false), plainOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"escape parens", escape(`a(b)\`), `a\(b\)\\`},
		{"escape newline", escape("a\nb"), "a b"},
		{"escape latin1", escape("Förråd"), "F\xf6rr\xe5d"},
		{"escape other", escape("→"), "?"},
		{"num integer", num(100), "100"},
		{"num decimals", num(1.5), "1.5"},
		{"num rounding", num(2.005001), "2.01"},
		{"num zero", num(-0.001), "0"},
		{"fit short", fit("abc", 100, 10), "abc"},
		{"fit long", fit("abcdefghij", 40, 10), "abcde..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCanvasFlipsY(t *testing.T) {
	c := newCanvas(geometry.Size{Width: 100, Height: 200})
	c.line(geometry.Page(10, 20), geometry.Page(30, 40))
	if got := c.String(); got != "10 180 m 30 160 l S\n" {
		t.Errorf("unexpected content %q", got)
	}
}
