package export

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/reconcile"
	"CollabBoard/internal/state"
)

// Render replays entries onto a size-sized raster and flattens it over a
// white background.
func Render(entries []state.LogEntry, size canvas.Size) *image.RGBA {
	r := canvas.NewRaster(size.Width, size.Height)
	reconcile.NewEngine(r, nil).Rebuild(entries)
	return Flatten(r.Image())
}

// Flatten composites a transparent board over white.
func Flatten(board *image.RGBA) *image.RGBA {
	out := image.NewRGBA(board.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), board, board.Bounds().Min, draw.Over)
	return out
}

// PNG writes the rendered board.
func PNG(w io.Writer, entries []state.LogEntry, size canvas.Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		return errors.Errorf("invalid board size %dx%d", size.Width, size.Height)
	}
	if err := png.Encode(w, Render(entries, size)); err != nil {
		return errors.Wrap(err, "writing png")
	}
	return nil
}

// WriteFile exports to path, choosing the format from its extension.
func WriteFile(path string, entries []state.LogEntry, size canvas.Size) error {
	var write func(io.Writer, []state.LogEntry, canvas.Size) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		write = PDF
	case ".png":
		write = PNG
	default:
		return errors.Errorf("unsupported export format %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := write(f, entries, size); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
