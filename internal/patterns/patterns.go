// Package patterns generates diagnostic frames for a strip.
package patterns

import (
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/coreman2200/neopixel/neopixel"
)

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	Rainbow    Kind = "rainbow"
)

var Kinds = []Kind{IndexSweep, RGBTest, Rainbow}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Kinds {
		if k == v {
			return k, nil
		}
	}
	return None, errors.Errorf("unknown pattern %q", s)
}

// Runner steps through one pattern.
type Runner struct {
	kind  Kind
	step  int
	steps int
}

// NewRunner returns a Runner for k. steps bounds the number of frames for
// the cycling patterns; the index sweep always ends after the last pixel.
func NewRunner(k Kind, steps int) *Runner {
	return &Runner{kind: k, steps: steps}
}

func (r *Runner) Kind() Kind { return r.kind }

// Next returns the colours of the next frame for n pixels of bpp channels,
// or nil once the pattern is complete.
func (r *Runner) Next(n, bpp int) []neopixel.Color {
	if r.kind != IndexSweep && r.step >= r.steps {
		return nil
	}
	out := make([]neopixel.Color, n)
	switch r.kind {
	case IndexSweep:
		if r.step >= n {
			return nil
		}
		for i := range out {
			out[i] = neopixel.Packed(0)
		}
		out[r.step] = neopixel.Packed(0xFFFFFF)
	case RGBTest:
		// One channel at a time, W included on 4 channel strips.
		c := make(neopixel.Components, bpp)
		c[r.step%bpp] = 255
		for i := range out {
			out[i] = c
		}
	case Rainbow:
		phase := float64(r.step) / float64(r.steps)
		for i := range out {
			h := math.Mod(float64(i)/float64(n)+phase, 1) * 360
			cr, cg, cb := colorful.Hsv(h, 1, 1).RGB255()
			out[i] = neopixel.Packed(uint32(cr)<<16 | uint32(cg)<<8 | uint32(cb))
		}
	default:
		return nil
	}
	r.step++
	return out
}
