package canvas

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var named = map[string]color.RGBA{
	"black": {A: 255},
	"white": {R: 255, G: 255, B: 255, A: 255},
	"red":   {R: 255, A: 255},
	"green": {G: 255, A: 255},
	"blue":  {B: 255, A: 255},
}

// ParseColor reads "#rgb", "#rrggbb" or one of a few colour names. Anything
// else renders black.
func ParseColor(s string) color.RGBA {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := named[s]; ok {
		return c
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return named["black"]
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
