package neopixel_test

import (
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/coreman2200/neopixel/internal/driver/fake"
	. "github.com/coreman2200/neopixel/neopixel"
)

// countingPin records the lifecycle calls the buffer makes on its pin.
type countingPin struct {
	*gpiotest.Pin
	outs   int
	halts  int
	outErr error
}

func (p *countingPin) Out(l gpio.Level) error {
	p.outs++
	if p.outErr != nil {
		return p.outErr
	}
	return p.Pin.Out(l)
}

func (p *countingPin) Halt() error {
	p.halts++
	return nil
}

func newPin() *countingPin {
	return &countingPin{Pin: &gpiotest.Pin{N: "GPIO18", Num: 18}}
}

func newBuffer(t *testing.T, o Opts) (*Buffer, *fake.Recorder, *countingPin) {
	t.Helper()
	pin := newPin()
	rec := &fake.Recorder{}
	b, err := New(pin, rec, &o)
	require.NoError(t, err)
	return b, rec, pin
}

func opts(n int, order Order, autoWrite bool) Opts {
	o := DefaultOpts
	o.NumPixels = n
	o.Order = order
	o.AutoWrite = autoWrite
	return o
}

var TestRoundTrip = []struct {
	Order Order
	Value Components
}{
	{RGB, NewRGB(10, 20, 30)},
	{GRB, NewRGB(10, 20, 30)},
	{BRG, NewRGB(1, 2, 3)},
	{BGR, NewRGB(255, 0, 128)},
	{GBR, NewRGB(0, 0, 0)},
	{RBG, NewRGB(7, 8, 9)},
	{RGBW, NewRGBW(10, 20, 30, 40)},
	{GRBW, NewRGBW(255, 254, 253, 252)},
}

func TestNewDefaults(t *testing.T) {
	b, rec, pin := newBuffer(t, opts(10, nil, true))

	assert.Equal(t, 10, b.Len())
	assert.Equal(t, 3, b.BPP())
	assert.Equal(t, GRB, b.Order(), "default GRBW order truncated to 3 channels")
	assert.Equal(t, 1.0, b.Brightness())
	assert.True(t, b.AutoWrite())
	assert.Len(t, b.Bytes(), 30)
	assert.Equal(t, make([]byte, 30), b.Bytes())
	assert.Equal(t, 0, rec.Count(), "construction must not transmit")
	assert.Equal(t, 1, pin.outs)
	assert.Equal(t, gpio.Low, pin.L)
}

func TestNewChannelCount(t *testing.T) {
	o := DefaultOpts
	o.NumPixels = 4
	o.BPP = 4
	b, _, _ := newBuffer(t, o)
	assert.Equal(t, 4, b.BPP())
	assert.Equal(t, GRBW, b.Order())
	assert.Len(t, b.Bytes(), 16)

	// An explicit order wins over BPP.
	o.Order = RGB
	b, _, _ = newBuffer(t, o)
	assert.Equal(t, 3, b.BPP())
	assert.Len(t, b.Bytes(), 12)
}

func TestNewRejects(t *testing.T) {
	tests := []struct {
		name string
		o    Opts
	}{
		{"negative count", Opts{NumPixels: -1, BPP: 3}},
		{"bpp 2", Opts{NumPixels: 1, BPP: 2}},
		{"bpp 5", Opts{NumPixels: 1, BPP: 5}},
		{"duplicate offsets", Opts{NumPixels: 1, Order: Order{0, 0, 1}}},
		{"offset out of range", Opts{NumPixels: 1, Order: Order{0, 1, 3}}},
		{"short order", Opts{NumPixels: 1, Order: Order{0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin := newPin()
			_, err := New(pin, &fake.Recorder{}, &tt.o)
			assert.True(t, errors.Is(err, ErrValue), "got %v", err)
			assert.Equal(t, 0, pin.outs, "pin must not be touched on invalid options")
		})
	}

	_, err := New(nil, &fake.Recorder{}, nil)
	assert.Error(t, err)
	_, err = New(newPin(), nil, nil)
	assert.Error(t, err)
}

func TestNewPinFailure(t *testing.T) {
	pin := newPin()
	pin.outErr = fmt.Errorf("busy")
	_, err := New(pin, &fake.Recorder{}, &DefaultOpts)
	assert.Error(t, err)
}

func TestSetGetRoundTrip(t *testing.T) {
	for k, v := range TestRoundTrip {
		t.Run("Order"+strconv.Itoa(k)+"_"+v.Order.String(), func(t *testing.T) {
			b, _, _ := newBuffer(t, opts(5, v.Order, false))
			require.NoError(t, b.Set(3, v.Value))
			got, err := b.Get(3)
			require.NoError(t, err)
			assert.Equal(t, v.Value, got, "should be same val")

			// Neighbours stay dark.
			for _, i := range []int{2, 4} {
				p, err := b.Get(i)
				require.NoError(t, err)
				assert.Equal(t, make(Components, b.BPP()), p)
			}
		})
	}
}

func TestPhysicalLayout(t *testing.T) {
	tests := []struct {
		order Order
		value Components
		want  []byte
	}{
		{RGB, NewRGB(1, 2, 3), []byte{1, 2, 3}},
		{GRB, NewRGB(1, 2, 3), []byte{2, 1, 3}},
		{BGR, NewRGB(1, 2, 3), []byte{3, 2, 1}},
		{GRBW, NewRGBW(1, 2, 3, 4), []byte{2, 1, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			b, _, _ := newBuffer(t, opts(2, tt.order, false))
			require.NoError(t, b.Set(1, tt.value))
			raw := b.Bytes()
			assert.Equal(t, tt.want, raw[len(tt.want):])
			assert.Equal(t, make([]byte, len(tt.want)), raw[:len(tt.want)])
		})
	}
}

func TestOrderIndependentReads(t *testing.T) {
	rgb, _, _ := newBuffer(t, opts(3, RGB, false))
	grb, _, _ := newBuffer(t, opts(3, GRB, false))
	v := NewRGB(0x11, 0x22, 0x33)
	require.NoError(t, rgb.Set(0, v))
	require.NoError(t, grb.Set(0, v))

	assert.NotEqual(t, rgb.Bytes(), grb.Bytes())
	a, _ := rgb.Get(0)
	b, _ := grb.Get(0)
	assert.Equal(t, a, b)
}

func TestSetPacked(t *testing.T) {
	b, _, _ := newBuffer(t, opts(4, RGB, false))
	require.NoError(t, b.Set(0, Packed(0x112233)))
	got, _ := b.Get(0)
	assert.Equal(t, NewRGB(0x11, 0x22, 0x33), got)

	// Grey stays RGB on a 3-channel strip.
	require.NoError(t, b.Set(1, Packed(0x202020)))
	got, _ = b.Get(1)
	assert.Equal(t, NewRGB(0x20, 0x20, 0x20), got)

	require.NoError(t, b.Set(2, MaxPacked))
	got, _ = b.Get(2)
	assert.Equal(t, NewRGB(0xFF, 0xFF, 0xFF), got)
}

func TestGrayscaleCollapse(t *testing.T) {
	b, _, _ := newBuffer(t, opts(2, GRBW, false))
	require.NoError(t, b.Set(0, Packed(0x202020)))
	got, _ := b.Get(0)
	assert.Equal(t, NewRGBW(0, 0, 0, 0x20), got)

	require.NoError(t, b.Set(1, Packed(0x202021)))
	got, _ = b.Get(1)
	assert.Equal(t, NewRGBW(0x20, 0x20, 0x21, 0), got)
}

func TestThreeTupleOnFourChannels(t *testing.T) {
	b, _, _ := newBuffer(t, opts(1, RGBW, false))
	require.NoError(t, b.Set(0, NewRGBW(9, 9, 9, 9)))
	require.NoError(t, b.Set(0, NewRGB(1, 2, 3)))
	got, _ := b.Get(0)
	assert.Equal(t, NewRGBW(1, 2, 3, 0), got)
}

func TestSetRejectsValues(t *testing.T) {
	b3, rec, _ := newBuffer(t, opts(2, RGB, true))
	b4, _, _ := newBuffer(t, opts(2, RGBW, true))

	tests := []struct {
		name string
		b    *Buffer
		c    Color
	}{
		{"packed overflow", b3, Packed(0x1000000)},
		{"packed high bits", b4, Packed(0xFF000000)},
		{"two tuple", b3, Components{1, 2}},
		{"four tuple on rgb", b3, NewRGBW(1, 2, 3, 4)},
		{"five tuple on rgbw", b4, Components{1, 2, 3, 4, 5}},
		{"empty tuple", b3, Components{}},
		{"nil", b3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.b.Bytes()
			err := tt.b.Set(0, tt.c)
			assert.True(t, errors.Is(err, ErrValue), "got %v", err)
			assert.Equal(t, before, tt.b.Bytes(), "rejected write must not mutate")
		})
	}
	assert.Equal(t, 0, rec.Count(), "rejected writes must not flush")
}

func TestNegativeIndex(t *testing.T) {
	a, _, _ := newBuffer(t, opts(10, GRB, false))
	b, _, _ := newBuffer(t, opts(10, GRB, false))
	v := NewRGB(1, 2, 3)
	require.NoError(t, a.Set(-1, v))
	require.NoError(t, b.Set(9, v))
	assert.Equal(t, a.Bytes(), b.Bytes())

	got, err := a.Get(-10)
	require.NoError(t, err)
	assert.Equal(t, NewRGB(0, 0, 0), got)
}

func TestIndexOutOfRange(t *testing.T) {
	b, _, _ := newBuffer(t, opts(10, GRB, false))
	for _, i := range []int{10, 11, -11, -100} {
		err := b.Set(i, NewRGB(1, 1, 1))
		assert.True(t, errors.Is(err, ErrIndex), "set %d: %v", i, err)
		_, err = b.Get(i)
		assert.True(t, errors.Is(err, ErrIndex), "get %d: %v", i, err)
	}

	err := b.Set(-11, NewRGB(1, 1, 1))
	assert.EqualError(t, err, "index -11, length 10: pixel index out of range")

	empty, _, _ := newBuffer(t, opts(0, GRB, false))
	_, err = empty.Get(0)
	assert.True(t, errors.Is(err, ErrIndex))
}

func TestAutoWrite(t *testing.T) {
	b, rec, pin := newBuffer(t, opts(3, GRB, true))
	require.NoError(t, b.Set(0, NewRGB(1, 2, 3)))
	require.NoError(t, b.Set(1, NewRGB(4, 5, 6)))
	assert.Equal(t, 2, rec.Count())
	assert.Equal(t, []byte{2, 1, 3, 5, 4, 6, 0, 0, 0}, rec.Last())
	assert.Equal(t, []string{pin.String(), pin.String()}, rec.Pins())

	b.SetAutoWrite(false)
	require.NoError(t, b.Set(2, NewRGB(7, 8, 9)))
	assert.Equal(t, 2, rec.Count())
	require.NoError(t, b.Show())
	assert.Equal(t, 3, rec.Count())
	require.NoError(t, b.Write())
	assert.Equal(t, 4, rec.Count())
}

func TestFillBatches(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(10, GRBW, true))
	require.NoError(t, b.Fill(NewRGBW(1, 2, 3, 4)))
	assert.Equal(t, 1, rec.Count(), "fill must flush exactly once")
	assert.True(t, b.AutoWrite(), "fill must restore auto-write")
	for i := 0; i < b.Len(); i++ {
		got, _ := b.Get(i)
		assert.Equal(t, NewRGBW(1, 2, 3, 4), got)
	}
	assert.Equal(t, b.Bytes(), rec.Last())

	b.SetAutoWrite(false)
	require.NoError(t, b.Fill(Packed(0x101010)))
	assert.Equal(t, 1, rec.Count())
	assert.False(t, b.AutoWrite())
	got, _ := b.Get(5)
	assert.Equal(t, NewRGBW(0, 0, 0, 0x10), got)
}

func TestFillRejects(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(4, GRB, true))
	err := b.Fill(Packed(0x1000000))
	assert.True(t, errors.Is(err, ErrValue))
	assert.Equal(t, 0, rec.Count())
	assert.True(t, b.AutoWrite())
	assert.Equal(t, make([]byte, 12), b.Bytes())
}

func TestBrightnessScaling(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(1, RGB, false))
	require.NoError(t, b.Set(0, NewRGB(200, 100, 1)))
	require.NoError(t, b.SetBrightness(0.5))
	require.NoError(t, b.Show())
	assert.Equal(t, []byte{100, 50, 0}, rec.Last())
	assert.Equal(t, []byte{200, 100, 1}, b.Bytes(), "scaling must not touch stored values")

	// Idempotent at the same level.
	require.NoError(t, b.Show())
	assert.Equal(t, []byte{100, 50, 0}, rec.Last())

	require.NoError(t, b.SetBrightness(1))
	require.NoError(t, b.Show())
	assert.Equal(t, []byte{200, 100, 1}, rec.Last())
}

func TestBrightnessUnityThreshold(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(1, RGB, false))
	require.NoError(t, b.Set(0, NewRGB(200, 100, 10)))

	require.NoError(t, b.SetBrightness(0.991))
	require.NoError(t, b.Show())
	assert.Equal(t, []byte{200, 100, 10}, rec.Last(), "above the threshold frames go out unscaled")

	require.NoError(t, b.SetBrightness(0.98))
	require.NoError(t, b.Show())
	assert.Equal(t, []byte{196, 98, 9}, rec.Last())

	require.NoError(t, b.SetBrightness(0))
	require.NoError(t, b.Show())
	assert.Equal(t, []byte{0, 0, 0}, rec.Last())
}

func TestSetBrightness(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(2, GRB, true))
	tests := []struct {
		in, want float64
	}{
		{0.25, 0.25},
		{2, 1},
		{-1, 0},
		{math.Inf(1), 1},
		{math.NaN(), 0},
	}
	for i, tt := range tests {
		require.NoError(t, b.SetBrightness(tt.in))
		assert.Equal(t, tt.want, b.Brightness(), "brightness(%v)", tt.in)
		assert.Equal(t, i+1, rec.Count(), "auto-write must flush on brightness change")
	}

	b.SetAutoWrite(false)
	require.NoError(t, b.SetBrightness(0.5))
	assert.Equal(t, len(tests), rec.Count())

	o := opts(1, nil, false)
	o.Brightness = 3
	c, _, _ := newBuffer(t, o)
	assert.Equal(t, 1.0, c.Brightness())
}

func TestSetSlice(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(10, GRB, true))
	colors := []Color{NewRGB(1, 1, 1), Packed(0x020202), NewRGB(3, 3, 3), NewRGB(4, 4, 4)}
	require.NoError(t, b.SetSlice(0, 10, 3, colors))
	assert.Equal(t, 1, rec.Count(), "slice assignment flushes once")

	got, err := b.GetSlice(0, 10, 1)
	require.NoError(t, err)
	want := make([]Components, 10)
	for i := range want {
		want[i] = NewRGB(0, 0, 0)
	}
	want[0], want[3], want[6], want[9] = NewRGB(1, 1, 1), NewRGB(2, 2, 2), NewRGB(3, 3, 3), NewRGB(4, 4, 4)
	assert.Equal(t, want, got)
}

func TestSetSliceNegativeStep(t *testing.T) {
	b, _, _ := newBuffer(t, opts(5, RGB, false))
	require.NoError(t, b.SetSlice(4, -6, -2, []Color{NewRGB(4, 4, 4), NewRGB(2, 2, 2), NewRGB(0, 0, 0)}))
	got, err := b.GetSlice(-1, -6, -1)
	require.NoError(t, err)
	assert.Equal(t, []Components{NewRGB(4, 4, 4), NewRGB(0, 0, 0), NewRGB(2, 2, 2), NewRGB(0, 0, 0), NewRGB(0, 0, 0)}, got)
}

func TestSetSliceLengthMismatch(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(10, GRB, true))
	require.NoError(t, b.Fill(NewRGB(9, 9, 9)))
	before := b.Bytes()

	err := b.SetSlice(0, 5, 1, []Color{NewRGB(1, 1, 1), NewRGB(2, 2, 2), NewRGB(3, 3, 3), NewRGB(4, 4, 4)})
	assert.True(t, errors.Is(err, ErrValue), "got %v", err)
	assert.Equal(t, before, b.Bytes())
	assert.Equal(t, 1, rec.Count())
}

func TestSetSliceBadElement(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(4, GRB, true))
	err := b.SetSlice(0, 3, 1, []Color{NewRGB(1, 1, 1), NewRGB(2, 2, 2), Packed(0x1000000)})
	assert.True(t, errors.Is(err, ErrValue))
	assert.Equal(t, make([]byte, 12), b.Bytes(), "no element may be written")
	assert.Equal(t, 0, rec.Count())
}

func TestSliceBounds(t *testing.T) {
	b, _, _ := newBuffer(t, opts(5, RGB, false))
	tests := []struct {
		start, stop, step int
		want              int
	}{
		{0, 5, 1, 5},
		{0, 100, 1, 5},
		{-100, 100, 2, 3},
		{3, 1, 1, 0},
		{-2, 5, 1, 2},
		{4, 0, -1, 4},
		{1, 4, 2, 2},
	}
	for _, tt := range tests {
		got, err := b.GetSlice(tt.start, tt.stop, tt.step)
		require.NoError(t, err)
		assert.Len(t, got, tt.want, "[%d:%d:%d]", tt.start, tt.stop, tt.step)
	}

	// Empty slices accept an empty sequence.
	require.NoError(t, b.SetSlice(3, 1, 1, nil))

	_, err := b.GetSlice(0, 5, 0)
	assert.True(t, errors.Is(err, ErrValue))
	err = b.SetSlice(0, 5, 0, nil)
	assert.True(t, errors.Is(err, ErrValue))
}

func TestTransmissionError(t *testing.T) {
	b, rec, _ := newBuffer(t, opts(2, GRB, true))
	cause := fmt.Errorf("pin fault")
	rec.Err = cause

	err := b.Set(0, NewRGB(1, 2, 3))
	assert.True(t, errors.Is(err, ErrTransmission), "got %v", err)
	assert.True(t, errors.Is(err, cause))

	// The logical write happened; only the flush failed.
	got, _ := b.Get(0)
	assert.Equal(t, NewRGB(1, 2, 3), got)

	rec.Err = nil
	require.NoError(t, b.Show())
	assert.Equal(t, []byte{2, 1, 3, 0, 0, 0}, rec.Last())
}

func TestRelease(t *testing.T) {
	b, rec, pin := newBuffer(t, opts(10, GRBW, true))
	require.NoError(t, b.Fill(NewRGBW(1, 2, 3, 4)))
	require.NoError(t, b.SetBrightness(0.5))

	require.NoError(t, b.Release())
	assert.Equal(t, make([]byte, 40), rec.Last())
	assert.Equal(t, 1, pin.halts)

	assert.Equal(t, ErrReleased, b.Release())
	assert.Equal(t, 1, pin.halts, "pin released exactly once")
	assert.Equal(t, ErrReleased, b.Set(0, NewRGB(1, 1, 1)))
	assert.Equal(t, ErrReleased, b.Fill(NewRGB(1, 1, 1)))
	assert.Equal(t, ErrReleased, b.Show())
	assert.Equal(t, ErrReleased, b.SetBrightness(1))
	assert.Equal(t, ErrReleased, b.SetSlice(0, 1, 1, []Color{NewRGB(1, 1, 1)}))
	_, err := b.Get(0)
	assert.Equal(t, ErrReleased, err)
	_, err = b.GetSlice(0, 1, 1)
	assert.Equal(t, ErrReleased, err)
}

func TestReleaseTransmissionError(t *testing.T) {
	b, rec, pin := newBuffer(t, opts(2, GRB, false))
	rec.Err = fmt.Errorf("timing")
	err := b.Release()
	assert.True(t, errors.Is(err, ErrTransmission))
	assert.Equal(t, 1, pin.halts, "pin is released even when the dark frame fails")
}

func TestUse(t *testing.T) {
	pin := newPin()
	rec := &fake.Recorder{}
	o := opts(3, GRB, true)
	err := Use(pin, rec, &o, func(b *Buffer) error {
		return b.Fill(NewRGB(5, 5, 5))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count())
	assert.Equal(t, make([]byte, 9), rec.Last())
	assert.Equal(t, 1, pin.halts)

	boom := fmt.Errorf("boom")
	pin = newPin()
	rec.Reset()
	err = Use(pin, rec, &o, func(b *Buffer) error {
		require.NoError(t, b.Set(0, NewRGB(1, 1, 1)))
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, make([]byte, 9), rec.Last())
	assert.Equal(t, 1, pin.halts)

	pin = newPin()
	assert.Panics(t, func() {
		_ = Use(pin, rec, &o, func(b *Buffer) error { panic("oops") })
	})
	assert.Equal(t, 1, pin.halts, "release runs while unwinding")
}

func TestString(t *testing.T) {
	b, _, _ := newBuffer(t, opts(2, GRB, false))
	require.NoError(t, b.Set(1, NewRGB(1, 2, 3)))
	assert.Equal(t, "[(0, 0, 0), (1, 2, 3)]", b.String())
}
