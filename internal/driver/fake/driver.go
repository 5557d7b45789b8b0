// Package fake provides a Transmitter that records frames instead of driving
// hardware, for headless runs and tests.
package fake

import (
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
)

// Recorder keeps a copy of every frame it is asked to transmit.
type Recorder struct {
	mu     sync.Mutex
	frames [][]byte
	pins   []string

	// Err, when set, is returned by Transmit and the frame is not recorded.
	Err error
}

// Transmit records b.
func (r *Recorder) Transmit(pin gpio.PinOut, b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.frames = append(r.frames, append([]byte(nil), b...))
	name := ""
	if pin != nil {
		name = pin.String()
	}
	r.pins = append(r.pins, name)

	// compute simple average for log
	var sum int
	for _, v := range b {
		sum += int(v)
	}
	n := len(b)
	if n == 0 {
		n = 1
	}
	log.Debug().Int("frame", len(r.frames)).Int("bytes", len(b)).Float64("avg", float64(sum)/float64(n)).Str("pin", name).Msg("frame")
	return nil
}

// Count returns the number of recorded frames.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Last returns the most recent frame, or nil if none was sent.
func (r *Recorder) Last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return append([]byte(nil), r.frames[len(r.frames)-1]...)
}

// Frames returns every recorded frame in order.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	for i, f := range r.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Pins returns the name of the pin each frame was sent on.
func (r *Recorder) Pins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pins...)
}

// Reset forgets all recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.pins = nil
}
