package neopixel

import (
	"strings"

	"github.com/pkg/errors"
)

// Order maps semantic channel (R, G, B[, W]) to the byte offset that channel
// occupies inside a pixel's slot.
type Order []int

var (
	RGB  = Order{0, 1, 2}
	GRB  = Order{1, 0, 2}
	BRG  = Order{1, 2, 0}
	BGR  = Order{2, 1, 0}
	GBR  = Order{2, 0, 1}
	RBG  = Order{0, 2, 1}
	RGBW = Order{0, 1, 2, 3}
	GRBW = Order{1, 0, 2, 3}
)

// StringOrders lists the orders ParseOrder understands, keyed by the
// channel sequence as it appears on the wire.
var StringOrders = map[string]Order{
	"RGB":  RGB,
	"GRB":  GRB,
	"BRG":  BRG,
	"BGR":  BGR,
	"GBR":  GBR,
	"RBG":  RBG,
	"RGBW": RGBW,
	"GRBW": GRBW,
}

// ParseOrder looks up an order by name, ignoring case.
func ParseOrder(name string) (Order, error) {
	o, ok := StringOrders[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrapf(ErrValue, "unknown pixel order %q", name)
	}
	return o, nil
}

// Validate reports whether o is a permutation of 0..len(o)-1 for a 3 or 4
// channel pixel.
func (o Order) Validate() error {
	if len(o) != 3 && len(o) != 4 {
		return errors.Wrapf(ErrValue, "pixel order must have 3 or 4 channels, got %d", len(o))
	}
	seen := make([]bool, len(o))
	for _, off := range o {
		if off < 0 || off >= len(o) || seen[off] {
			return errors.Wrapf(ErrValue, "pixel order %v is not a permutation", []int(o))
		}
		seen[off] = true
	}
	return nil
}

func (o Order) String() string {
	names := "RGBW"
	b := make([]byte, len(o))
	for c, off := range o {
		if off >= 0 && off < len(b) {
			b[off] = names[c]
		}
	}
	return string(b)
}
