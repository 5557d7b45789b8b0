package neopixel

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	RED_OFFSET   uint8 = 0x10
	GREEN_OFFSET uint8 = 0x08
	BLUE_OFFSET  uint8 = 0x0
)

// MaxPacked is the largest value a Packed colour may hold.
const MaxPacked Packed = 0xFFFFFF

// Color is a pixel value accepted by Buffer.Set. It is either a Packed
// 0xRRGGBB integer or a Components tuple.
type Color interface {
	isColor()
}

// Packed is a 24-bit 0xRRGGBB colour. On a 4-channel strip a grey value
// (r == g == b) drives the white channel instead of mixing it from RGB.
type Packed uint32

// Components holds per-channel values in semantic order: R, G, B and
// optionally W.
type Components []uint8

func (Packed) isColor()     {}
func (Components) isColor() {}

// NewRGB returns a 3-channel Components value.
func NewRGB(r, g, b uint8) Components {
	return Components{r, g, b}
}

// NewRGBW returns a 4-channel Components value.
func NewRGBW(r, g, b, w uint8) Components {
	return Components{r, g, b, w}
}

func getcolor(c uint32, off uint8) uint8 {
	var mask uint32 = 0xFF << off
	return uint8((c & mask) >> off)
}

func (p Packed) R() uint8 { return getcolor(uint32(p), RED_OFFSET) }
func (p Packed) G() uint8 { return getcolor(uint32(p), GREEN_OFFSET) }
func (p Packed) B() uint8 { return getcolor(uint32(p), BLUE_OFFSET) }

func (p Packed) String() string {
	return fmt.Sprintf("0x%06X", uint32(p))
}

func (c Components) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// resolve turns a colour into the four channel values stored for a pixel
// with bpp channels. Nothing is written here so a rejected colour never
// leaves a partial pixel behind.
func resolve(c Color, bpp int) ([4]uint8, error) {
	var v [4]uint8
	switch c := c.(type) {
	case Packed:
		if c > MaxPacked {
			return v, errors.Wrapf(ErrValue, "only bits 0->23 valid for integer input, got %#x", uint32(c))
		}
		v[0], v[1], v[2] = c.R(), c.G(), c.B()
		if bpp == 4 && v[0] == v[1] && v[1] == v[2] {
			v = [4]uint8{0, 0, 0, v[0]}
		}
	case Components:
		if len(c) != bpp && !(len(c) == 3 && bpp == 4) {
			return v, errors.Wrapf(ErrValue, "color tuple size %d does not match %d channels", len(c), bpp)
		}
		copy(v[:], c)
	case nil:
		return v, errors.Wrap(ErrValue, "nil color")
	default:
		return v, errors.Wrapf(ErrValue, "unsupported color type %T", c)
	}
	return v, nil
}
