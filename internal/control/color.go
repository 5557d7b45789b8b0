package control

import (
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/coreman2200/neopixel/neopixel"
)

// ParseColor accepts "r,g,b[,w]" tuples, "#rrggbb" hex and plain or 0x
// prefixed integers.
func ParseColor(s string) (neopixel.Color, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, ","):
		parts := strings.Split(s, ",")
		c := make(neopixel.Components, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 0, 8)
			if err != nil {
				return nil, errors.Wrapf(neopixel.ErrValue, "channel %d of %q: %v", i, s, err)
			}
			c[i] = uint8(v)
		}
		return c, nil
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return nil, errors.Wrapf(neopixel.ErrValue, "%q: %v", s, err)
		}
		r, g, b := c.RGB255()
		return neopixel.Packed(uint32(r)<<16 | uint32(g)<<8 | uint32(b)), nil
	default:
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(neopixel.ErrValue, "%q is not a color", s)
		}
		return neopixel.Packed(v), nil
	}
}
