package canvas

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"CollabBoard/internal/state"
)

// Style is the paint state for one stroke.
type Style struct {
	Tool  state.Tool
	Color color.RGBA
	Width float64
}

// StyleOf derives the paint style of a stroke.
func StyleOf(s state.Stroke) Style {
	return Style{Tool: s.Tool, Color: ParseColor(s.Color), Width: s.Width}
}

// Surface is the 2D primitive set a view draws through. Points handed to a
// Surface are always in its own absolute frame.
type Surface interface {
	Size() Size
	Clear()
	Dot(st Style, p state.Point)
	Segment(st Style, a, b state.Point)
	Label(st Style, at state.Point, text string)
	Stamp(at state.Point, img image.Image)
}

// DrawStroke paints a whole stroke. Brush and eraser strokes with a single
// point render as a dot.
func DrawStroke(surf Surface, s state.Stroke) {
	pts := surf.Size().LocalPoints(s.Points)
	if len(pts) == 0 {
		return
	}
	st := StyleOf(s)
	switch s.Tool {
	case state.ToolText:
		surf.Label(st, pts[0], s.Text)
		return
	case state.ToolImage:
		if img, ok := strokeImage(s); ok {
			surf.Stamp(pts[0], img)
		}
		return
	}
	if len(pts) == 1 {
		surf.Dot(st, pts[0])
		return
	}
	for i := 1; i < len(pts); i++ {
		surf.Segment(st, pts[i-1], pts[i])
	}
}

// DrawStep paints only what a newly appended point adds to a stroke: a dot
// for the first point, otherwise the segment from the previous one. Text and
// image strokes are anchored at their first point, so later points add
// nothing.
func DrawStep(surf Surface, s state.Stroke, from *state.Point, to state.Point) {
	size := surf.Size()
	st := StyleOf(s)
	switch s.Tool {
	case state.ToolText:
		if from == nil {
			surf.Label(st, size.ToLocal(to), s.Text)
		}
		return
	case state.ToolImage:
		if from == nil {
			if img, ok := strokeImage(s); ok {
				surf.Stamp(size.ToLocal(to), img)
			}
		}
		return
	}
	if from == nil {
		surf.Dot(st, size.ToLocal(to))
		return
	}
	surf.Segment(st, size.ToLocal(*from), size.ToLocal(to))
}

// MaxImagePixels bounds the area of an image stroke.
const MaxImagePixels = 4096 * 4096

type decoded struct {
	src string
	img image.Image
	ok  bool
}

// images holds decoded image strokes by stroke id so rebuilds do not decode
// them again.
var images, _ = lru.New[string, decoded](256)

func strokeImage(s state.Stroke) (image.Image, bool) {
	if d, ok := images.Get(s.ID); ok && d.src == s.ImageSrc {
		return d.img, d.ok
	}
	img, ok := DecodeDataURL(s.ImageSrc)
	if s.ID != "" {
		images.Add(s.ID, decoded{src: s.ImageSrc, img: img, ok: ok})
	}
	return img, ok
}

// DecodeDataURL decodes a base64 "data:image/...;base64," URL. Images larger
// than MaxImagePixels are rejected from their header.
func DecodeDataURL(src string) (image.Image, bool) {
	const marker = ";base64,"
	if !strings.HasPrefix(src, "data:image/") {
		return nil, false
	}
	i := strings.Index(src, marker)
	if i < 0 {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(src[i+len(marker):])
	if err != nil {
		return nil, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxImagePixels {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false
	}
	return img, true
}
