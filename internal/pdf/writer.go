// Package pdf renders a layout.Document as a PDF file.
//
// The first page carries the plan with its draw operations in order. When the
// document has a schedule, each bus follows on its own page as a table.
// Every page gets a page number; schedule pages also carry the project name.
package pdf

import (
	"context"
	"fmt"
	"io"

	"smokeplan/internal/domain"
	"smokeplan/internal/geometry"
	"smokeplan/internal/layout"
)

// Options controls the PDF output
type Options struct {
	Compress       bool
	MaxImagePixels int
	Producer       string
}

// DefaultOptions compresses content streams and caps the plan image size.
func DefaultOptions() Options {
	return Options{
		Compress:       true,
		MaxImagePixels: DefaultMaxImagePixels,
		Producer:       "smokeplan",
	}
}

var (
	cm            = geometry.MillimetersToPoints(10)
	pageFooterY   = geometry.MillimetersToPoints(7.5)
	lightGrey     = layout.Color{R: 200, G: 200, B: 200}
	headerGrey    = layout.Color{R: 128, G: 128, B: 128}
	white         = layout.Color{R: 255, G: 255, B: 255}
	scheduleWidth = []float64{2, 4.5, 3, 8, 3.5, 2}
)

const (
	pageFooterSize  = 9.0
	headingSize     = 14.0
	headerRowHeight = 20.0
	headerTextSize  = 10.0
	rowHeight       = 14.0
	rowTextSize     = 9.0
	cellPadding     = 3.0
)

// Render produces the complete PDF. Nothing is returned on failure.
func Render(ctx context.Context, doc *layout.Document, opts Options) ([]byte, error) {
	r := &renderer{ctx: ctx, doc: doc, opts: opts, out: newDocument(opts.Compress)}
	if err := r.planPage(); err != nil {
		return nil, err
	}
	for _, bus := range doc.Schedule {
		if err := r.busPages(bus); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.out.bytes(info{Title: doc.Title, Producer: opts.Producer, Created: doc.GeneratedAt}), nil
}

// Write renders doc and writes it to w in one piece.
func Write(ctx context.Context, w io.Writer, doc *layout.Document, opts Options) error {
	data, err := Render(ctx, doc, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

type renderer struct {
	ctx  context.Context
	doc  *layout.Document
	opts Options
	out  *document
}

func (r *renderer) planPage() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	c := newCanvas(r.doc.Size)
	images := make(map[string]int)

	for _, op := range r.doc.Ops {
		switch o := op.(type) {
		case layout.ImageOp:
			if err := r.drawImage(c, o, images); err != nil {
				return err
			}
		case layout.MarkerOp:
			c.fillColor(o.Fill)
			c.strokeColor(layout.Black)
			c.lineWidth(0.5)
			if o.Type == domain.DeviceDetector {
				c.circle(o.Center, o.Radius, "B")
			} else {
				c.rect(geometry.Rect{
					X: o.Center.X - o.Radius, Y: o.Center.Y - o.Radius,
					Width: 2 * o.Radius, Height: 2 * o.Radius,
				}, "B")
			}
		case layout.CircleOp:
			c.strokeColor(o.Stroke)
			c.lineWidth(0.75)
			c.circle(o.Center, o.Radius, "S")
		case layout.LabelOp:
			c.fillColor(layout.Black)
			c.text(fontRegular, o.FontSize, o.At, o.Text)
		case layout.LineOp:
			c.strokeColor(o.Stroke)
			c.lineWidth(1)
			c.line(o.From, o.To)
		case layout.FooterOp:
			c.fillColor(layout.Black)
			for i, line := range o.Lines {
				font := fontRegular
				if i == 0 {
					font = fontBold
				}
				c.text(font, o.FontSize, o.At.Offset(0, float64(i)*o.LineHeight), line)
			}
		default:
			return fmt.Errorf("unsupported draw operation %q", op.Kind())
		}
	}

	r.pageNumber(c, "")
	return r.out.addPage(r.doc.Size, c.String(), images)
}

// drawImage embeds the plan raster. Plans without image bytes get a frame
// naming the source instead.
func (r *renderer) drawImage(c *canvas, op layout.ImageOp, images map[string]int) error {
	if len(op.Plan.Data) == 0 {
		c.save()
		c.strokeColor(lightGrey)
		c.lineWidth(0.5)
		c.rect(op.Rect, "S")
		c.fillColor(lightGrey)
		c.text(fontRegular, rowTextSize, geometry.Page(op.Rect.X+cellPadding, op.Rect.Y+rowTextSize+cellPadding), op.Source)
		c.restore()
		return nil
	}

	img, err := decodeImage(op.Plan.Data, r.opts.MaxImagePixels)
	if err != nil {
		return err
	}
	obj, err := r.out.addImage(img)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("Im%d", len(images)+1)
	images[name] = obj
	c.image(name, op.Rect)
	return nil
}

// busPages writes one bus table, continuing on further pages when the rows
// do not fit.
func (r *renderer) busPages(bus layout.BusSchedule) error {
	size := r.doc.Size
	avail := size.Width - 2*cm
	total := 0.0
	for _, w := range scheduleWidth {
		total += w
	}
	widths := make([]float64, len(scheduleWidth))
	for i, w := range scheduleWidth {
		widths[i] = w / total * avail
	}
	bottom := size.Height - 2*cm

	rows := bus.Rows
	first := true
	for first || len(rows) > 0 {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		c := newCanvas(size)
		heading := bus.Heading()
		if !first {
			heading += " (continued)"
		}
		c.fillColor(layout.Black)
		c.text(fontBold, headingSize, geometry.Page(cm, cm+headingSize), heading)

		y := cm + headingSize + 12
		r.tableRow(c, widths, y, headerRowHeight, layout.ScheduleColumns, true)
		y += headerRowHeight

		n := 0
		for n < len(rows) && (y+rowHeight <= bottom || n == 0) {
			r.tableRow(c, widths, y, rowHeight, rows[n].Cells(), false)
			y += rowHeight
			n++
		}
		rows = rows[n:]
		first = false

		r.pageNumber(c, r.doc.Title)
		if err := r.out.addPage(size, c.String(), nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) tableRow(c *canvas, widths []float64, y, height float64, cells []string, header bool) {
	font, size := fontRegular, rowTextSize
	if header {
		font, size = fontBold, headerTextSize
	}
	x := cm
	for i, w := range widths {
		cell := geometry.Rect{X: x, Y: y, Width: w, Height: height}
		c.strokeColor(layout.Black)
		c.lineWidth(0.5)
		if header {
			c.fillColor(headerGrey)
			c.rect(cell, "B")
			c.fillColor(white)
		} else {
			c.rect(cell, "S")
			c.fillColor(layout.Black)
		}
		text := ""
		if i < len(cells) {
			text = fit(cells[i], w-2*cellPadding, size)
		}
		c.text(font, size, geometry.Page(x+cellPadding, y+(height+size)/2-1), text)
		x += w
	}
}

// pageNumber writes "Page N" bottom right and, when set, name bottom left.
func (r *renderer) pageNumber(c *canvas, name string) {
	y := r.doc.Size.Height - pageFooterY
	c.fillColor(layout.Black)
	if name != "" {
		c.text(fontRegular, pageFooterSize, geometry.Page(cm, y), name)
	}
	label := fmt.Sprintf("Page %d", len(r.out.pages)+1)
	c.textRight(fontRegular, pageFooterSize, geometry.Page(r.doc.Size.Width-cm, y), label)
}
