package canvas

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"CollabBoard/internal/state"
)

// capSteps is the number of edges used to approximate a round cap or dot.
const capSteps = 24

type vec struct{ x, y float64 }

// Raster is a Surface backed by an in-memory RGBA image. Brush strokes are
// painted with round caps and joins; eraser strokes clear what they cover.
// Raster is not safe for concurrent use.
type Raster struct {
	img *image.RGBA
	z   vector.Rasterizer
}

// NewRaster allocates a transparent w×h raster.
func NewRaster(w, h int) *Raster {
	return &Raster{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Image exposes the backing image. Callers must not draw on it while the
// raster is in use.
func (r *Raster) Image() *image.RGBA { return r.img }

func (r *Raster) Size() Size {
	b := r.img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

func (r *Raster) Clear() {
	draw.Draw(r.img, r.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (r *Raster) Dot(st Style, p state.Point) {
	r.fill(st, circle(vec{p.X, p.Y}, math.Max(1, st.Width/2)))
}

func (r *Raster) Segment(st Style, a, b state.Point) {
	hw := math.Max(0.5, st.Width/2)
	va, vb := vec{a.X, a.Y}, vec{b.X, b.Y}
	shapes := [][]vec{circle(va, hw), circle(vb, hw)}
	dx, dy := vb.x-va.x, vb.y-va.y
	if l := math.Hypot(dx, dy); l > 0 {
		nx, ny := -dy/l*hw, dx/l*hw
		shapes = append(shapes, []vec{
			{va.x + nx, va.y + ny},
			{vb.x + nx, vb.y + ny},
			{vb.x - nx, vb.y - ny},
			{va.x - nx, va.y - ny},
		})
	}
	r.fill(st, shapes...)
}

func (r *Raster) Label(st Style, at state.Point, text string) {
	if text == "" {
		return
	}
	d := font.Drawer{
		Dst:  r.img,
		Src:  image.NewUniform(st.Color),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(at.X), int(at.Y)),
	}
	d.DrawString(text)
}

func (r *Raster) Stamp(at state.Point, img image.Image) {
	b := img.Bounds()
	dst := b.Sub(b.Min).Add(image.Pt(int(at.X), int(at.Y)))
	draw.Draw(r.img, dst, img, b.Min, draw.Over)
}

// fill rasterises the union of shapes into the raster. The rasterizer is
// sized to the clipped bounding box so a short segment costs little on a
// large canvas.
func (r *Raster) fill(st Style, shapes ...[]vec) {
	box := bounds(shapes).Intersect(r.img.Bounds())
	if box.Empty() {
		return
	}
	r.z.Reset(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	for _, poly := range shapes {
		if area(poly) > 0 {
			reverse(poly)
		}
		r.z.MoveTo(float32(poly[0].x-ox), float32(poly[0].y-oy))
		for _, p := range poly[1:] {
			r.z.LineTo(float32(p.x-ox), float32(p.y-oy))
		}
		r.z.ClosePath()
	}
	if st.Tool == state.ToolEraser {
		r.erase(box)
		return
	}
	r.z.Draw(r.img, box, image.NewUniform(st.Color), image.Point{})
}

// erase removes coverage from the raster (destination-out). draw.Src would
// overwrite the whole box, so the shape is rendered into an alpha mask and
// every premultiplied channel is attenuated by it.
func (r *Raster) erase(box image.Rectangle) {
	mask := image.NewAlpha(image.Rect(0, 0, box.Dx(), box.Dy()))
	r.z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	for y := 0; y < box.Dy(); y++ {
		row := r.img.Pix[r.img.PixOffset(box.Min.X, box.Min.Y+y):]
		for x := 0; x < box.Dx(); x++ {
			m := uint32(mask.Pix[y*mask.Stride+x])
			if m == 0 {
				continue
			}
			keep := 255 - m
			for c := 0; c < 4; c++ {
				row[4*x+c] = uint8(uint32(row[4*x+c]) * keep / 255)
			}
		}
	}
}

func circle(c vec, radius float64) []vec {
	pts := make([]vec, capSteps)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / capSteps
		pts[i] = vec{c.x + radius*math.Cos(a), c.y + radius*math.Sin(a)}
	}
	return pts
}

func bounds(shapes [][]vec) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, poly := range shapes {
		for _, p := range poly {
			minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
			minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
		}
	}
	if math.IsInf(minX, 1) {
		return image.Rectangle{}
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// area is the signed shoelace area. Every polygon is wound the same way
// before rasterising so overlapping caps and bodies add up instead of
// cancelling.
func area(poly []vec) float64 {
	var a float64
	for i := range poly {
		j := (i + 1) % len(poly)
		a += poly[i].x*poly[j].y - poly[j].x*poly[i].y
	}
	return a / 2
}

func reverse(poly []vec) {
	for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
		poly[i], poly[j] = poly[j], poly[i]
	}
}
