// Package export renders the visible strokes of a room to PDF or PNG.
package export

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/state"
)

const (
	pageMargin = 10.0 // mm
	ptPerMM    = 72 / 25.4
	// textHeight matches the bitmap face used on the raster.
	textHeight = 13.0
)

// PDF writes the active strokes of entries as a one-page A4 document. The
// board is scaled to fit the page; size is the frame absolute points were
// drawn in. Erasers paint the page colour, PDF has no way to remove ink.
func PDF(w io.Writer, entries []state.LogEntry, size canvas.Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		return errors.Errorf("invalid board size %dx%d", size.Width, size.Height)
	}
	orientation := "P"
	if size.Width > size.Height {
		orientation = "L"
	}
	p := gofpdf.New(orientation, "mm", "A4", "")
	p.SetMargins(pageMargin, pageMargin, pageMargin)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()

	pw, ph := p.GetPageSize()
	scale := math.Min((pw-2*pageMargin)/float64(size.Width), (ph-2*pageMargin)/float64(size.Height))
	at := func(pt state.Point) (float64, float64) {
		l := size.ToLocal(pt)
		return pageMargin + l.X*scale, pageMargin + l.Y*scale
	}

	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")
	for i, s := range state.ActiveStrokes(entries) {
		if len(s.Points) == 0 {
			continue
		}
		c := canvas.ParseColor(s.Color)
		if s.Tool == state.ToolEraser {
			c.R, c.G, c.B = 255, 255, 255
		}
		r, g, b := int(c.R), int(c.G), int(c.B)

		switch s.Tool {
		case state.ToolText:
			x, y := at(s.Points[0])
			p.SetFont("Helvetica", "", textHeight*scale*ptPerMM)
			p.SetTextColor(r, g, b)
			p.Text(x, y, s.Text)
			continue
		case state.ToolImage:
			img, ok := canvas.DecodeDataURL(s.ImageSrc)
			if !ok {
				continue
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				return errors.Wrapf(err, "re-encoding image of stroke %s", s.ID)
			}
			name := fmt.Sprintf("stroke-%d", i)
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			p.RegisterImageOptionsReader(name, opts, &buf)
			x, y := at(s.Points[0])
			bounds := img.Bounds()
			p.ImageOptions(name, x, y, float64(bounds.Dx())*scale, float64(bounds.Dy())*scale, false, opts, 0, "")
			continue
		}

		width := math.Max(s.Width*scale, 0.1)
		if len(s.Points) == 1 {
			x, y := at(s.Points[0])
			p.SetFillColor(r, g, b)
			p.Circle(x, y, width/2, "F")
			continue
		}
		p.SetDrawColor(r, g, b)
		p.SetLineWidth(width)
		for j := 1; j < len(s.Points); j++ {
			x1, y1 := at(s.Points[j-1])
			x2, y2 := at(s.Points[j])
			p.Line(x1, y1, x2, y2)
		}
	}

	if err := p.Output(w); err != nil {
		return errors.Wrap(err, "writing pdf")
	}
	return nil
}
