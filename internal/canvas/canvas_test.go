package canvas

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/state"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#e11d48", color.RGBA{R: 0xe1, G: 0x1d, B: 0x48, A: 255}},
		{"#444", color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 255}},
		{"red", color.RGBA{R: 255, A: 255}},
		{" Blue ", color.RGBA{B: 255, A: 255}},
		{"not-a-colour", color.RGBA{A: 255}},
		{"", color.RGBA{A: 255}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseColor(tt.in), tt.in)
	}
}

func TestFrameConversion(t *testing.T) {
	sz := Size{Width: 200, Height: 100}
	assert.Equal(t, state.Abs(50, 25, 7), sz.ToLocal(state.Frac(0.25, 0.25, 7)))
	assert.Equal(t, state.Abs(3, 4, 1), sz.ToLocal(state.Abs(3, 4, 1)))
	assert.Equal(t, state.Frac(0.5, 0.5, 2), sz.ToShared(state.Abs(100, 50, 2)))

	other := Size{Width: 400, Height: 300}
	p := other.ToLocal(sz.ToShared(state.Abs(100, 50, 2)))
	assert.Equal(t, state.Abs(200, 150, 2), p, "same geometry on a larger canvas")
}

func TestSharedStrokeDoesNotAlias(t *testing.T) {
	s := state.Stroke{ID: "a", Points: []state.Point{state.Abs(10, 10, 1)}}
	shared := Size{Width: 100, Height: 100}.SharedStroke(s)
	assert.Equal(t, state.Frac(0.1, 0.1, 1), shared.Points[0])
	assert.Equal(t, state.Abs(10, 10, 1), s.Points[0])
}

func brush(width float64) Style {
	return Style{Tool: state.ToolBrush, Color: color.RGBA{R: 255, A: 255}, Width: width}
}

func TestRasterDotAndSegment(t *testing.T) {
	r := NewRaster(64, 64)
	r.Dot(brush(8), state.Abs(10, 10, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, r.Image().RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{}, r.Image().RGBAAt(30, 30))

	r.Segment(brush(6), state.Abs(20, 40, 0), state.Abs(60, 40, 1))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, r.Image().RGBAAt(40, 40))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, r.Image().RGBAAt(20, 40), "round cap covers the end point")
	assert.Equal(t, color.RGBA{}, r.Image().RGBAAt(40, 50))
}

func TestRasterEraserClears(t *testing.T) {
	r := NewRaster(32, 32)
	r.Segment(brush(10), state.Abs(0, 16, 0), state.Abs(32, 16, 1))
	require.Equal(t, uint8(255), r.Image().RGBAAt(16, 16).A)

	r.Dot(Style{Tool: state.ToolEraser, Width: 10}, state.Abs(16, 16, 2))
	assert.Equal(t, color.RGBA{}, r.Image().RGBAAt(16, 16))
	assert.Equal(t, uint8(255), r.Image().RGBAAt(2, 16).A)
}

func TestRasterClipsOffCanvasShapes(t *testing.T) {
	r := NewRaster(16, 16)
	assert.NotPanics(t, func() {
		r.Segment(brush(4), state.Abs(-50, -50, 0), state.Abs(8, 8, 1))
		r.Segment(brush(4), state.Abs(100, 100, 0), state.Abs(200, 200, 1))
		r.Dot(brush(4), state.Abs(15, -3, 0))
	})
	assert.Equal(t, uint8(255), r.Image().RGBAAt(4, 4).A)

	r.Clear()
	assert.Equal(t, color.RGBA{}, r.Image().RGBAAt(4, 4))
}

func TestDrawStrokeFractionalSinglePoint(t *testing.T) {
	r := NewRaster(100, 100)
	DrawStroke(r, state.Stroke{ID: "a", Tool: state.ToolBrush, Color: "#0000ff", Width: 6, Points: []state.Point{state.Frac(0.5, 0.5, 1)}})
	assert.Equal(t, color.RGBA{B: 255, A: 255}, r.Image().RGBAAt(50, 50))
}

func TestDrawStrokeImageAndText(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{G: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	r := NewRaster(40, 40)
	DrawStroke(r, state.Stroke{ID: "img", Tool: state.ToolImage, ImageSrc: dataURL, Points: []state.Point{state.Abs(10, 10, 1)}})
	assert.Equal(t, color.RGBA{G: 255, A: 255}, r.Image().RGBAAt(11, 11))

	DrawStroke(r, state.Stroke{ID: "txt", Tool: state.ToolText, Color: "#000", Text: "Hi", Points: []state.Point{state.Abs(20, 30, 1)}})
	var inked bool
	for y := 17; y < 32 && !inked; y++ {
		for x := 20; x < 34; x++ {
			if r.Image().RGBAAt(x, y).A != 0 {
				inked = true
				break
			}
		}
	}
	assert.True(t, inked, "text leaves ink near its anchor")

	_, ok := DecodeDataURL("data:image/png;base64,!!!")
	assert.False(t, ok)
	_, ok = DecodeDataURL("https://example.com/a.png")
	assert.False(t, ok)
}

func pngURL(t *testing.T, w, h int) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), buf.Bytes()
}

func TestStrokeImageIsDecodedOnce(t *testing.T) {
	src, _ := pngURL(t, 2, 2)
	s := state.Stroke{ID: "cached-img", Tool: state.ToolImage, ImageSrc: src}
	first, ok := strokeImage(s)
	require.True(t, ok)
	again, ok := strokeImage(s)
	require.True(t, ok)
	assert.Same(t, first, again)

	other, _ := pngURL(t, 3, 3)
	s.ImageSrc = other
	changed, ok := strokeImage(s)
	require.True(t, ok)
	assert.Equal(t, 3, changed.Bounds().Dx(), "a different source is decoded afresh")
}

func TestDecodeDataURLRejectsHugeImages(t *testing.T) {
	_, raw := pngURL(t, 1, 1)
	// Rewrite the IHDR dimensions; only the header is read before rejecting.
	binary.BigEndian.PutUint32(raw[16:], 5000)
	binary.BigEndian.PutUint32(raw[20:], 5000)
	binary.BigEndian.PutUint32(raw[29:], crc32.ChecksumIEEE(raw[12:29]))
	_, ok := DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw))
	assert.False(t, ok)
}
