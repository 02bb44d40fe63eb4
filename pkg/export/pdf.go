// Package export renders canvas documents to PDF.
package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/folish/folish/pkg/canvas"
)

// pxToMM converts CSS pixels (96 per inch) to millimetres.
const pxToMM = 25.4 / 96

// Mode selects how document coordinates map onto the page.
type Mode int

const (
	// Viewport reproduces what the editor showed: the saved camera is
	// applied and one screen pixel is one CSS pixel on paper.
	Viewport Mode = iota
	// Fit scales the drawing so that all visible strokes fill the page.
	Fit
)

// Options controls PDF output.
type Options struct {
	Mode        Mode
	Orientation string  // "P" or "L"
	PageSize    string  // gofpdf size name, e.g. "A4", "Letter"
	Margin      float64 // mm, used by Fit
	Title       string
	// CreationDate is stamped into the file; zero means now.
	CreationDate time.Time
}

// DefaultOptions returns A4 portrait in viewport mode with a 10mm margin.
func DefaultOptions() Options {
	return Options{Mode: Viewport, Orientation: "P", PageSize: "A4", Margin: 10}
}

// ErrEmptyPage is returned by Fit when no visible stroke has any points.
var ErrEmptyPage = errors.New("export: nothing to draw")

// transform maps a document point to page millimetres.
type transform struct {
	scale  float64
	dx, dy float64
}

func (t transform) apply(p canvas.Point) (float64, float64) {
	return float64(p.X)*t.scale + t.dx, float64(p.Y)*t.scale + t.dy
}

func viewportTransform(cam canvas.Camera) transform {
	zoom := float64(cam.Zoom)
	if zoom <= 0 {
		zoom = 1
	}
	return transform{
		scale: zoom * pxToMM,
		dx:    float64(cam.X) * pxToMM,
		dy:    float64(cam.Y) * pxToMM,
	}
}

func fitTransform(doc *canvas.State, pageW, pageH, margin float64) (transform, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, l := range doc.Layers {
		if !l.Visible {
			continue
		}
		for _, st := range doc.StrokesByLayer(l.ID) {
			half := float64(st.Width) / 2
			for _, p := range st.Points {
				minX = math.Min(minX, float64(p.X)-half)
				minY = math.Min(minY, float64(p.Y)-half)
				maxX = math.Max(maxX, float64(p.X)+half)
				maxY = math.Max(maxY, float64(p.Y)+half)
			}
		}
	}
	if math.IsInf(minX, 1) {
		return transform{}, ErrEmptyPage
	}

	availW := pageW - 2*margin
	availH := pageH - 2*margin
	w := math.Max(maxX-minX, 1e-6)
	h := math.Max(maxY-minY, 1e-6)
	scale := math.Min(availW/w, availH/h)

	return transform{
		scale: scale,
		dx:    margin + (availW-w*scale)/2 - minX*scale,
		dy:    margin + (availH-h*scale)/2 - minY*scale,
	}, nil
}

// ParseColor converts "#rgb" or "#rrggbb" to RGB components. Anything else
// is reported as not ok and yields black.
func ParseColor(s string) (r, g, b int, ok bool) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == len(s) {
		return 0, 0, 0, false
	}
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

// PDF renders the visible layers of doc, bottom layer first, each layer's
// strokes in paint order.
func PDF(w io.Writer, doc canvas.State, opts Options) error {
	if opts.Orientation == "" {
		opts.Orientation = "P"
	}
	if opts.PageSize == "" {
		opts.PageSize = "A4"
	}

	pdf := gofpdf.New(opts.Orientation, "mm", opts.PageSize, "")
	pdf.SetCreator("folish", true)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	if !opts.CreationDate.IsZero() {
		pdf.SetCreationDate(opts.CreationDate)
	}
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	var tr transform
	switch opts.Mode {
	case Fit:
		pageW, pageH := pdf.GetPageSize()
		var err error
		if tr, err = fitTransform(&doc, pageW, pageH, opts.Margin); err != nil {
			return err
		}
	default:
		tr = viewportTransform(doc.Camera)
	}

	for _, l := range doc.Layers {
		if !l.Visible {
			continue
		}
		pdf.SetAlpha(clamp01(float64(l.Opacity)), "Normal")
		for _, st := range doc.StrokesByLayer(l.ID) {
			drawStroke(pdf, st, tr)
		}
	}
	pdf.SetAlpha(1, "Normal")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("export: render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export: write pdf: %w", err)
	}
	return nil
}

// PDFFile renders doc to path.
func PDFFile(path string, doc canvas.State, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := PDF(f, doc, opts); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

func drawStroke(pdf *gofpdf.Fpdf, st canvas.Stroke, tr transform) {
	if len(st.Points) == 0 {
		return
	}
	r, g, b, _ := ParseColor(st.Color)
	pdf.SetDrawColor(r, g, b)
	pdf.SetFillColor(r, g, b)
	base := float64(st.Width) * tr.scale

	if len(st.Points) == 1 {
		x, y := tr.apply(st.Points[0])
		pdf.Circle(x, y, base*pressure(st.Points[0])/2, "F")
		return
	}

	for i := 1; i < len(st.Points); i++ {
		x1, y1 := tr.apply(st.Points[i-1])
		x2, y2 := tr.apply(st.Points[i])
		pdf.SetLineWidth(base * pressure(st.Points[i]))
		pdf.Line(x1, y1, x2, y2)
	}
}

func pressure(p canvas.Point) float64 {
	if p.Pressure == nil {
		return 1
	}
	return clamp01(float64(*p.Pressure))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
