// Package neopixel keeps the logical state of an addressable RGB(W) LED strip
// in a byte buffer laid out in the strip's physical channel order, and pushes
// it to hardware through a Transmitter.
//
// A Buffer is owned by a single goroutine. Callers sharing one strip between
// goroutines must serialise access themselves.
package neopixel

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
)

// UnityThreshold is the brightness above which Show sends the raw buffer
// without scaling. Brightness 0.991 is therefore sent at full amplitude
// while 0.98 is scaled.
const UnityThreshold = 0.99

// Transmitter serialises a frame onto the strip's data line.
//
// The frame is only valid for the duration of the call.
type Transmitter interface {
	Transmit(pin gpio.PinOut, b []byte) error
}

// TransmitterFunc adapts a function to a Transmitter.
type TransmitterFunc func(pin gpio.PinOut, b []byte) error

// Transmit implements Transmitter.
func (f TransmitterFunc) Transmit(pin gpio.PinOut, b []byte) error {
	return f(pin, b)
}

// Opts defines the strip geometry and initial state.
type Opts struct {
	// NumPixels is the number of pixels on the strip.
	NumPixels int
	// BPP is the number of channels per pixel used when Order is nil.
	BPP int
	// Brightness is clamped to [0, 1].
	Brightness float64
	// AutoWrite flushes after every mutating call.
	AutoWrite bool
	// Order overrides the default GRBW order; its length sets the channel
	// count.
	Order Order
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	NumPixels:  0,
	BPP:        3,
	Brightness: 1,
	AutoWrite:  true,
}

// Buffer is a pixel buffer bound to one output pin.
type Buffer struct {
	pin gpio.PinOut
	tx  Transmitter

	numPixels  int
	bpp        int
	order      Order
	buf        []byte
	brightness float64
	autoWrite  bool
	released   bool
}

// New configures pin as an output and allocates a zeroed buffer. Nothing is
// transmitted until the first flush.
func New(pin gpio.PinOut, tx Transmitter, o *Opts) (*Buffer, error) {
	if pin == nil {
		return nil, errors.Wrap(ErrValue, "nil pin")
	}
	if tx == nil {
		return nil, errors.Wrap(ErrValue, "nil transmitter")
	}
	if o == nil {
		o = &DefaultOpts
	}
	if o.NumPixels < 0 {
		return nil, errors.Wrapf(ErrValue, "invalid pixel count %d", o.NumPixels)
	}

	var order Order
	if o.Order == nil {
		if o.BPP != 3 && o.BPP != 4 {
			return nil, errors.Wrapf(ErrValue, "bpp must be 3 or 4, got %d", o.BPP)
		}
		order = append(Order(nil), GRBW[:o.BPP]...)
	} else {
		if err := o.Order.Validate(); err != nil {
			return nil, err
		}
		order = append(Order(nil), o.Order...)
	}

	if err := pin.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "couldn't configure %s as output", pin)
	}

	b := &Buffer{
		pin:        pin,
		tx:         tx,
		numPixels:  o.NumPixels,
		bpp:        len(order),
		order:      order,
		buf:        make([]byte, o.NumPixels*len(order)),
		brightness: clamp(o.Brightness),
		autoWrite:  o.AutoWrite,
	}
	log.Debug().
		Str("pin", pin.String()).
		Int("pixels", b.numPixels).
		Int("bpp", b.bpp).
		Stringer("order", b.order).
		Msg("pixel buffer ready")
	return b, nil
}

// Use runs fn with a new Buffer and releases it afterwards, including when
// fn returns an error or panics. A release error is returned only if fn
// succeeded.
func Use(pin gpio.PinOut, tx Transmitter, o *Opts, fn func(*Buffer) error) (err error) {
	b, err := New(pin, tx, o)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := b.Release(); err == nil {
			err = rerr
		}
	}()
	return fn(b)
}

// Len returns the number of pixels.
func (b *Buffer) Len() int {
	return b.numPixels
}

// BPP returns the number of channels per pixel, 3 or 4.
func (b *Buffer) BPP() int {
	return b.bpp
}

// Order returns a copy of the channel order in use.
func (b *Buffer) Order() Order {
	return append(Order(nil), b.order...)
}

// Bytes returns a copy of the raw, physically ordered buffer.
func (b *Buffer) Bytes() []byte {
	return append([]byte(nil), b.buf...)
}

func (b *Buffer) index(i int) (int, error) {
	j := i
	if j < 0 {
		j += b.numPixels
	}
	if j < 0 || j >= b.numPixels {
		return 0, errors.Wrapf(ErrIndex, "index %d, length %d", i, b.numPixels)
	}
	return j, nil
}

func (b *Buffer) put(i int, v [4]uint8) {
	offset := i * b.bpp
	b.buf[offset+b.order[0]] = v[0]
	b.buf[offset+b.order[1]] = v[1]
	b.buf[offset+b.order[2]] = v[2]
	if b.bpp == 4 {
		b.buf[offset+b.order[3]] = v[3]
	}
}

func (b *Buffer) pixel(i int) Components {
	offset := i * b.bpp
	p := make(Components, b.bpp)
	for c := range p {
		p[c] = b.buf[offset+b.order[c]]
	}
	return p
}

func (b *Buffer) setOne(i int, c Color) error {
	i, err := b.index(i)
	if err != nil {
		return err
	}
	v, err := resolve(c, b.bpp)
	if err != nil {
		return err
	}
	b.put(i, v)
	return nil
}

// Set stores c at pixel i. Negative indices count from the end. With
// auto-write on, the strip is flushed afterwards.
func (b *Buffer) Set(i int, c Color) error {
	if b.released {
		return ErrReleased
	}
	if err := b.setOne(i, c); err != nil {
		return err
	}
	return b.autoShow()
}

// Get returns pixel i in R, G, B[, W] order.
func (b *Buffer) Get(i int) (Components, error) {
	if b.released {
		return nil, ErrReleased
	}
	i, err := b.index(i)
	if err != nil {
		return nil, err
	}
	return b.pixel(i), nil
}

// SetSlice assigns colors to the pixels addressed by start:stop:step, using
// Python slice semantics. The whole call fails without touching the buffer
// if the lengths differ or any colour is invalid.
func (b *Buffer) SetSlice(start, stop, step int, colors []Color) error {
	if b.released {
		return ErrReleased
	}
	idx, err := indices(start, stop, step, b.numPixels)
	if err != nil {
		return err
	}
	if len(colors) != len(idx) {
		return errors.Wrapf(ErrValue, "slice and input sequence size do not match (%d != %d)", len(idx), len(colors))
	}
	vals := make([][4]uint8, len(colors))
	for k, c := range colors {
		if vals[k], err = resolve(c, b.bpp); err != nil {
			return errors.WithMessagef(err, "element %d", k)
		}
	}
	for k, i := range idx {
		b.put(i, vals[k])
	}
	return b.autoShow()
}

// GetSlice returns the pixels addressed by start:stop:step.
func (b *Buffer) GetSlice(start, stop, step int) ([]Components, error) {
	if b.released {
		return nil, ErrReleased
	}
	idx, err := indices(start, stop, step, b.numPixels)
	if err != nil {
		return nil, err
	}
	out := make([]Components, len(idx))
	for k, i := range idx {
		out[k] = b.pixel(i)
	}
	return out, nil
}

// Fill sets every pixel to c and flushes at most once.
func (b *Buffer) Fill(c Color) error {
	if b.released {
		return ErrReleased
	}
	autoWrite := b.autoWrite
	b.autoWrite = false
	defer func() { b.autoWrite = autoWrite }()
	for i := 0; i < b.numPixels; i++ {
		if err := b.Set(i, c); err != nil {
			return err
		}
	}
	if autoWrite {
		return b.Show()
	}
	return nil
}

// Brightness returns the current brightness in [0, 1].
func (b *Buffer) Brightness() float64 {
	return b.brightness
}

// SetBrightness clamps v to [0, 1] and, with auto-write on, flushes so the
// strip reflects the new level. The stored pixel values are not changed.
func (b *Buffer) SetBrightness(v float64) error {
	if b.released {
		return ErrReleased
	}
	b.brightness = clamp(v)
	return b.autoShow()
}

// AutoWrite reports whether mutating calls flush immediately.
func (b *Buffer) AutoWrite() bool {
	return b.autoWrite
}

// SetAutoWrite toggles auto-write. Turning it off lets callers batch
// several writes before an explicit Show.
func (b *Buffer) SetAutoWrite(on bool) {
	b.autoWrite = on
}

// Show transmits the buffer scaled by the current brightness.
func (b *Buffer) Show() error {
	if b.released {
		return ErrReleased
	}
	return b.transmit(b.frame())
}

// Write is an alias for Show.
func (b *Buffer) Write() error {
	return b.Show()
}

func (b *Buffer) autoShow() error {
	if !b.autoWrite {
		return nil
	}
	return b.Show()
}

func (b *Buffer) frame() []byte {
	if b.brightness > UnityThreshold {
		return b.buf
	}
	scaled := make([]byte, len(b.buf))
	for i, v := range b.buf {
		scaled[i] = byte(float64(v) * b.brightness)
	}
	return scaled
}

func (b *Buffer) transmit(p []byte) error {
	return AsTransmissionError(b.tx.Transmit(b.pin, p))
}

// Release turns every pixel off, sends the dark frame and halts the pin.
// The Buffer is unusable afterwards.
func (b *Buffer) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true
	for i := range b.buf {
		b.buf[i] = 0
	}
	txErr := b.transmit(b.buf)
	haltErr := b.pin.Halt()
	log.Debug().Str("pin", b.pin.String()).AnErr("transmit", txErr).AnErr("halt", haltErr).Msg("pixel buffer released")
	if txErr != nil {
		return txErr
	}
	if haltErr != nil {
		return errors.Wrapf(haltErr, "couldn't release %s", b.pin)
	}
	return nil
}

func (b *Buffer) String() string {
	parts := make([]string, b.numPixels)
	for i := range parts {
		parts[i] = b.pixel(i).String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}
