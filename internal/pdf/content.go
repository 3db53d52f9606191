package pdf

import (
	"fmt"
	"strconv"
	"strings"

	"smokeplan/internal/geometry"
	"smokeplan/internal/layout"
)

// kappa places Bézier control points for a quarter circle.
const kappa = 0.5522847498

// canvas writes a content stream. Callers use page space (origin top-left,
// y down); canvas flips to PDF user space.
type canvas struct {
	buf    strings.Builder
	height float64
}

func newCanvas(size geometry.Size) *canvas {
	return &canvas{height: size.Height}
}

func (c *canvas) String() string { return c.buf.String() }

func (c *canvas) op(format string, args ...any) {
	fmt.Fprintf(&c.buf, format, args...)
	c.buf.WriteByte('\n')
}

func (c *canvas) y(v float64) float64 { return c.height - v }

func (c *canvas) save()    { c.op("q") }
func (c *canvas) restore() { c.op("Q") }

func (c *canvas) fillColor(col layout.Color) {
	c.op("%s %s %s rg", channel(col.R), channel(col.G), channel(col.B))
}

func (c *canvas) strokeColor(col layout.Color) {
	c.op("%s %s %s RG", channel(col.R), channel(col.G), channel(col.B))
}

func (c *canvas) lineWidth(w float64) { c.op("%s w", num(w)) }

// rect adds a rectangle and paints it: "f" fills, "S" strokes, "B" does both.
func (c *canvas) rect(r geometry.Rect, paint string) {
	c.op("%s %s %s %s re %s", num(r.X), num(c.y(r.Y+r.Height)), num(r.Width), num(r.Height), paint)
}

func (c *canvas) circle(center geometry.PagePoint, r float64, paint string) {
	x, y := center.X, c.y(center.Y)
	k := kappa * r
	c.op("%s %s m", num(x+r), num(y))
	c.op("%s %s %s %s %s %s c", num(x+r), num(y+k), num(x+k), num(y+r), num(x), num(y+r))
	c.op("%s %s %s %s %s %s c", num(x-k), num(y+r), num(x-r), num(y+k), num(x-r), num(y))
	c.op("%s %s %s %s %s %s c", num(x-r), num(y-k), num(x-k), num(y-r), num(x), num(y-r))
	c.op("%s %s %s %s %s %s c", num(x+k), num(y-r), num(x+r), num(y-k), num(x+r), num(y))
	c.op("h %s", paint)
}

func (c *canvas) line(a, b geometry.PagePoint) {
	c.op("%s %s m %s %s l S", num(a.X), num(c.y(a.Y)), num(b.X), num(c.y(b.Y)))
}

// text writes s with its baseline starting at at.
func (c *canvas) text(font string, size float64, at geometry.PagePoint, s string) {
	c.op("BT /%s %s Tf %s %s Td (%s) Tj ET", font, num(size), num(at.X), num(c.y(at.Y)), escape(s))
}

// textRight writes s so that it ends at at.X.
func (c *canvas) textRight(font string, size float64, at geometry.PagePoint, s string) {
	c.text(font, size, geometry.Page(at.X-textWidth(s, size), at.Y), s)
}

// image paints the named XObject into r.
func (c *canvas) image(name string, r geometry.Rect) {
	c.op("q %s 0 0 %s %s %s cm /%s Do Q",
		num(r.Width), num(r.Height), num(r.X), num(c.y(r.Y+r.Height)), name)
}

// textWidth estimates Helvetica advance at about half an em per glyph.
func textWidth(s string, size float64) float64 {
	return float64(len([]rune(s))) * size * 0.5
}

// fit shortens s with a trailing "..." until it fits width.
func fit(s string, width, size float64) string {
	if textWidth(s, size) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && textWidth(string(runes)+"...", size) > width {
		runes = runes[:len(runes)-1]
	}
	if len(runes) == 0 {
		return ""
	}
	return string(runes) + "..."
}

// escape encodes s as the body of a PDF literal string in WinAnsi. Runes
// outside Latin-1 become '?'.
func escape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '(' || r == ')':
			sb.WriteByte('\\')
			sb.WriteByte(byte(r))
		case r < 0x20:
			sb.WriteByte(' ')
		case r < 0x100:
			sb.WriteByte(byte(r))
		default:
			sb.WriteByte('?')
		}
	}
	return sb.String()
}

// num formats v with at most two decimals and no trailing zeros.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func channel(v uint8) string {
	return num(float64(v) / 255)
}
