package spi

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"

	"github.com/coreman2200/neopixel/neopixel"
)

// NRZLED implements neopixel.Transmitter on top of periph's nrzled driver.
//
// nrzled places green first on the wire by itself, so the pixel buffer
// feeding it should use neopixel.RGB or neopixel.RGBW.
type NRZLED struct {
	dev *nrzled.Dev
}

// NewNRZLED creates the nrzled device on p and turns the strip off.
func NewNRZLED(p spi.Port, numPixels, channels int, freq physic.Frequency) (*NRZLED, error) {
	o := nrzled.Opts{
		NumPixels: numPixels,
		Channels:  channels,
		Freq:      freq,
	}
	d, err := nrzled.NewSPI(p, &o)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create nrzled device")
	}
	if err := d.Halt(); err != nil {
		return nil, errors.Wrap(err, "couldn't blank strip")
	}
	return &NRZLED{dev: d}, nil
}

// Transmit writes b through nrzled. The pin argument is unused.
func (n *NRZLED) Transmit(pin gpio.PinOut, b []byte) error {
	if _, err := n.dev.Write(b); err != nil {
		return neopixel.AsTransmissionError(errors.Wrap(err, "nrzled write"))
	}
	return nil
}

// Close turns the strip off.
func (n *NRZLED) Close() error {
	return n.dev.Halt()
}

func (n *NRZLED) String() string {
	return n.dev.String()
}
