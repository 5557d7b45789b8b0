package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/neopixel/console"
	"github.com/coreman2200/neopixel/internal/config"
	"github.com/coreman2200/neopixel/internal/driver/fake"
	"github.com/coreman2200/neopixel/neopixel"
	"github.com/coreman2200/neopixel/spi"
)

// output bundles the pin and transmitter chosen for a driver.
type output struct {
	pin    gpio.PinOut
	tx     neopixel.Transmitter
	closer io.Closer
}

func (o *output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// effectiveOrder returns the channel order the buffer will use for o.
func effectiveOrder(o *neopixel.Opts) neopixel.Order {
	if o.Order != nil {
		return o.Order
	}
	return neopixel.GRBW[:o.BPP]
}

// newBuffer creates the pixel buffer on out, closing out if that fails.
func newBuffer(out *output, o *neopixel.Opts) (*neopixel.Buffer, error) {
	b, err := neopixel.New(out.pin, out.tx, o)
	if err != nil {
		if cerr := out.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("couldn't close output")
		}
		return nil, err
	}
	return b, nil
}

func openOutput(cfg *config.Config, o *neopixel.Opts) (*output, error) {
	pin, err := lookupPin(cfg)
	if err != nil {
		return nil, err
	}
	freq := physic.Frequency(cfg.SPI.FreqHz) * physic.Hertz

	switch cfg.Driver {
	case "spi":
		t, err := spi.Open(cfg.SPI.Port, &spi.Opts{
			Freq:  freq,
			Reset: time.Duration(cfg.SPI.ResetUs) * time.Microsecond,
		})
		if err != nil {
			return nil, err
		}
		return &output{pin: pin, tx: t, closer: t}, nil

	case "nrzled":
		if n := effectiveOrder(o).String(); n != "RGB" && n != "RGBW" {
			log.Warn().Str("order", n).Msg("nrzled reorders channels itself; use RGB or RGBW")
		}
		p, err := spireg.Open(cfg.SPI.Port)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't open SPI port %q", cfg.SPI.Port)
		}
		t, err := spi.NewNRZLED(p, o.NumPixels, len(effectiveOrder(o)), freq)
		if err != nil {
			p.Close()
			return nil, err
		}
		return &output{pin: pin, tx: t, closer: multiCloser{t, p}}, nil

	case "console":
		t, err := console.NewScreen(o.NumPixels, effectiveOrder(o))
		if err != nil {
			return nil, err
		}
		return &output{pin: pin, tx: t, closer: t}, nil

	case "sim":
		return &output{pin: pin, tx: &fake.Recorder{}}, nil
	}
	return nil, errors.Errorf("unknown driver %q", cfg.Driver)
}

// lookupPin resolves the configured pin. Drivers that never touch real
// hardware fall back to a stand-in pin when the name is unknown.
func lookupPin(cfg *config.Config) (gpio.PinOut, error) {
	if p := gpioreg.ByName(cfg.Pin); p != nil {
		return p, nil
	}
	if cfg.Driver == "sim" || cfg.Driver == "console" {
		log.Debug().Str("pin", cfg.Pin).Msg("pin not found; using a stand-in")
		return &gpiotest.Pin{N: cfg.Pin}, nil
	}
	return nil, errors.Errorf("unknown pin %q", cfg.Pin)
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
