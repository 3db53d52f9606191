package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"
	"strings"
	"time"

	"smokeplan/internal/geometry"
)

// Version is the PDF version written in the file header.
const Version = "1.4"

// Fixed object numbers. Everything else is appended after them.
const (
	catalogObj = 1
	pagesObj   = 2
	regularObj = 3
	boldObj    = 4
	reserved   = 4
)

// Font resource names used in content streams.
const (
	fontRegular = "F1"
	fontBold    = "F2"
)

// document collects PDF objects and serialises them with an xref table.
type document struct {
	objects  [][]byte
	pages    []int
	compress bool
}

type info struct {
	Title    string
	Producer string
	Created  time.Time
}

func newDocument(compress bool) *document {
	return &document{objects: make([][]byte, reserved), compress: compress}
}

// addObject appends an object body and returns its 1-based number.
func (d *document) addObject(body []byte) int {
	d.objects = append(d.objects, body)
	return len(d.objects)
}

// addStream appends a stream object. dict holds the entries other than
// /Length and /Filter.
func (d *document) addStream(dict string, data []byte, flate bool) (int, error) {
	if flate {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return 0, fmt.Errorf("failed to compress stream: %w", err)
		}
		if err := zw.Close(); err != nil {
			return 0, fmt.Errorf("failed to compress stream: %w", err)
		}
		data = buf.Bytes()
		dict = strings.TrimSpace(dict + " /Filter /FlateDecode")
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "<< %s /Length %d >>\nstream\n", dict, len(data))
	body.Write(data)
	body.WriteString("\nendstream")
	return d.addObject(body.Bytes()), nil
}

// addPage appends a page whose content stream is content. images maps
// XObject resource names to object numbers.
func (d *document) addPage(size geometry.Size, content string, images map[string]int) error {
	contentObj, err := d.addStream("", []byte(content), d.compress)
	if err != nil {
		return err
	}

	var res strings.Builder
	fmt.Fprintf(&res, "/Font << /%s %d 0 R /%s %d 0 R >>", fontRegular, regularObj, fontBold, boldObj)
	if len(images) > 0 {
		names := make([]string, 0, len(images))
		for name := range images {
			names = append(names, name)
		}
		sort.Strings(names)
		res.WriteString(" /XObject <<")
		for _, name := range names {
			fmt.Fprintf(&res, " /%s %d 0 R", name, images[name])
		}
		res.WriteString(" >>")
	}

	page := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources << %s >> /Contents %d 0 R >>",
		pagesObj, num(size.Width), num(size.Height), res.String(), contentObj)
	d.pages = append(d.pages, d.addObject([]byte(page)))
	return nil
}

// bytes writes the header, every object, the xref table and the trailer.
func (d *document) bytes(meta info) []byte {
	kids := make([]string, len(d.pages))
	for i, p := range d.pages {
		kids[i] = fmt.Sprintf("%d 0 R", p)
	}
	d.objects[catalogObj-1] = []byte(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj))
	d.objects[pagesObj-1] = []byte(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(d.pages)))
	d.objects[regularObj-1] = []byte(fontDict("Helvetica"))
	d.objects[boldObj-1] = []byte(fontDict("Helvetica-Bold"))
	infoObj := d.addObject([]byte(infoDict(meta)))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", Version)
	buf.WriteString("%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int, len(d.objects))
	for i, obj := range d.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(obj)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(d.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\n", len(d.objects)+1, catalogObj, infoObj)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func fontDict(base string) string {
	return fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding >>", base)
}

func infoDict(meta info) string {
	var sb strings.Builder
	sb.WriteString("<<")
	if meta.Title != "" {
		fmt.Fprintf(&sb, " /Title (%s)", escape(meta.Title))
	}
	if meta.Producer != "" {
		fmt.Fprintf(&sb, " /Producer (%s)", escape(meta.Producer))
	}
	if !meta.Created.IsZero() {
		fmt.Fprintf(&sb, " /CreationDate (%s)", meta.Created.UTC().Format("D:20060102150405Z"))
	}
	sb.WriteString(" >>")
	return sb.String()
}
