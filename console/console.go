// Package console previews a pixel buffer on a display.Drawer, by default an
// ANSI terminal, when no strip is attached.
package console

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/neopixel/neopixel"
)

// Transmitter decodes physically ordered frames back to colours and draws
// them as a single row of pixels.
type Transmitter struct {
	drawer display.Drawer
	order  neopixel.Order
}

// New returns a Transmitter drawing on d. order must match the buffer
// feeding it.
func New(d display.Drawer, order neopixel.Order) (*Transmitter, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return &Transmitter{drawer: d, order: append(neopixel.Order(nil), order...)}, nil
}

// NewScreen draws on the terminal, numPixels wide.
func NewScreen(numPixels int, order neopixel.Order) (*Transmitter, error) {
	return New(screen.New(numPixels), order)
}

// Image decodes frame into a 1 pixel high image. White is added onto the
// colour channels.
func (t *Transmitter) Image(frame []byte) (*image.NRGBA, error) {
	bpp := len(t.order)
	if len(frame)%bpp != 0 {
		return nil, errors.Errorf("frame length %d is not a multiple of %d channels", len(frame), bpp)
	}
	n := len(frame) / bpp
	im := image.NewNRGBA(image.Rect(0, 0, n, 1))
	for x := 0; x < n; x++ {
		p := frame[x*bpp : (x+1)*bpp]
		var w uint8
		if bpp == 4 {
			w = p[t.order[3]]
		}
		im.SetNRGBA(x, 0, color.NRGBA{
			R: saturate(p[t.order[0]], w),
			G: saturate(p[t.order[1]], w),
			B: saturate(p[t.order[2]], w),
			A: 255,
		})
	}
	return im, nil
}

// Transmit draws frame. The pin argument is unused.
func (t *Transmitter) Transmit(pin gpio.PinOut, frame []byte) error {
	im, err := t.Image(frame)
	if err != nil {
		return neopixel.AsTransmissionError(err)
	}
	if err := t.drawer.Draw(t.drawer.Bounds(), im, image.Point{}); err != nil {
		return neopixel.AsTransmissionError(errors.Wrap(err, "draw"))
	}
	return nil
}

// Close halts the drawer.
func (t *Transmitter) Close() error {
	return t.drawer.Halt()
}

func saturate(c, w uint8) uint8 {
	if s := int(c) + int(w); s < 255 {
		return uint8(s)
	}
	return 255
}
