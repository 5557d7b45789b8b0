package control

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/neopixel/internal/patterns"
)

// Play shows the frames of r at fps until the pattern completes or ctx is
// done. Each frame is written with auto-write suspended and flushed once.
func (s *Session) Play(ctx context.Context, r *patterns.Runner, fps int) error {
	ticker := time.NewTicker(time.Second / time.Duration(max(1, fps)))
	defer ticker.Stop()
	frames := 0
	for {
		done, err := s.frame(r)
		if err != nil {
			return err
		}
		if done {
			log.Debug().Str("pattern", string(r.Kind())).Int("frames", frames).Msg("pattern complete")
			return nil
		}
		frames++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) frame(r *patterns.Runner) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.buf
	f := r.Next(b.Len(), b.BPP())
	if f == nil {
		return true, nil
	}
	autoWrite := b.AutoWrite()
	b.SetAutoWrite(false)
	defer b.SetAutoWrite(autoWrite)
	if err := b.SetSlice(0, b.Len(), 1, f); err != nil {
		return false, err
	}
	return false, b.Show()
}

