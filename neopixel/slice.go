package neopixel

import (
	"github.com/pkg/errors"
)

// indices resolves start:stop:step against a sequence of length n the way a
// Python slice does: negative bounds count from the end and out-of-range
// bounds are clamped. It returns the addressed indices in order.
func indices(start, stop, step, n int) ([]int, error) {
	if step == 0 {
		return nil, errors.Wrap(ErrValue, "slice step cannot be zero")
	}
	start = adjust(start, step, n)
	stop = adjust(stop, step, n)

	count := 0
	if step > 0 && start < stop {
		count = (stop-start-1)/step + 1
	} else if step < 0 && stop < start {
		count = (start-stop-1)/(-step) + 1
	}
	out := make([]int, count)
	for i := range out {
		out[i] = start + i*step
	}
	return out, nil
}

func adjust(i, step, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			if step < 0 {
				return -1
			}
			return 0
		}
		return i
	}
	if i >= n {
		if step < 0 {
			return n - 1
		}
		return n
	}
	return i
}
