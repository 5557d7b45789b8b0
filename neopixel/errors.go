package neopixel

import (
	"github.com/pkg/errors"
)

var (
	// ErrIndex is returned when a pixel index falls outside the strip.
	ErrIndex = errors.New("pixel index out of range")
	// ErrValue is returned for malformed colours, orders and slices.
	ErrValue = errors.New("invalid value")
	// ErrTransmission wraps any failure reported by a Transmitter.
	ErrTransmission = errors.New("transmission failed")
	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("pixel buffer released")
)

type transmissionError struct {
	err error
}

func (e *transmissionError) Error() string {
	return ErrTransmission.Error() + ": " + e.err.Error()
}

func (e *transmissionError) Unwrap() error { return e.err }

func (e *transmissionError) Is(target error) bool { return target == ErrTransmission }

// AsTransmissionError marks err as a transmission failure. Transmitters may
// use it so callers can test with errors.Is(err, ErrTransmission) while the
// underlying cause stays reachable. A nil err stays nil.
func AsTransmissionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransmission) {
		return err
	}
	return &transmissionError{err: err}
}
