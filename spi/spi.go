// Package spi sends pixel buffers to WS281x-style strips through an SPI
// port, using the MOSI line as the data line.
package spi

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/neopixel/neopixel"
)

// Opts configures the SPI clock and latch time.
type Opts struct {
	// Freq is the SPI clock. 2.4MHz gives 400ns per encoded bit.
	Freq physic.Frequency
	// Reset is how long the line is held low after a frame to latch it.
	Reset time.Duration
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Freq:  2400 * physic.KiloHertz,
	Reset: 300 * time.Microsecond,
}

// Transmitter implements neopixel.Transmitter over an SPI connection.
type Transmitter struct {
	mu     sync.Mutex
	port   spi.Port
	conn   spi.Conn
	enc    *Encoder
	tail   int
	frame  []byte
	closer func() error
}

// New connects to p in mode 0 with 8 bit words.
func New(p spi.Port, o *Opts) (*Transmitter, error) {
	if o == nil {
		o = &DefaultOpts
	}
	if o.Freq <= 0 {
		return nil, errors.Errorf("invalid SPI clock %s", o.Freq)
	}
	if o.Reset < 0 {
		return nil, errors.Errorf("invalid reset time %s", o.Reset)
	}
	c, err := p.Connect(o.Freq, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't connect to %s", p)
	}
	return &Transmitter{
		port: p,
		conn: c,
		enc:  NewEncoder(),
		tail: resetBytes(o.Reset, o.Freq),
	}, nil
}

// Open opens the SPI port registered as name ("" for the first one) and
// connects to it. Close releases the port.
func Open(name string, o *Opts) (*Transmitter, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open SPI port %q", name)
	}
	t, err := New(p, o)
	if err != nil {
		p.Close()
		return nil, err
	}
	t.closer = p.Close
	log.Debug().Str("port", p.String()).Int("reset_bytes", t.tail).Msg("spi transmitter ready")
	return t, nil
}

// resetBytes returns the number of zero bytes that keep the line low for d
// at clock f.
func resetBytes(d time.Duration, f physic.Frequency) int {
	bits := int64(d) * int64(f/physic.Hertz)
	return int((bits + 8e9 - 1) / 8e9)
}

// Transmit encodes b and writes it followed by the latch tail. The pin
// argument is unused; the data leaves on the port's MOSI line.
func (t *Transmitter) Transmit(pin gpio.PinOut, b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return neopixel.AsTransmissionError(errors.New("spi transmitter closed"))
	}
	t.frame = t.enc.Encode(t.frame[:0], b)
	for i := 0; i < t.tail; i++ {
		t.frame = append(t.frame, 0)
	}
	if l, ok := t.conn.(conn.Limits); ok {
		if limit := l.MaxTxSize(); limit > 0 && len(t.frame) > limit {
			return neopixel.AsTransmissionError(errors.Errorf("frame of %d bytes exceeds SPI transfer limit %d", len(t.frame), limit))
		}
	}
	if err := t.conn.Tx(t.frame, nil); err != nil {
		return neopixel.AsTransmissionError(errors.Wrap(err, "spi write"))
	}
	return nil
}

// Close releases the port if it was opened by Open.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = nil
	if t.closer != nil {
		err := t.closer()
		t.closer = nil
		return err
	}
	return nil
}

func (t *Transmitter) String() string {
	return "spi{" + t.port.String() + "}"
}
