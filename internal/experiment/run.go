package experiment

import (
	"context"
	"fmt"
)

// Run drives s on a polling surface until the session is done: each frame
// is rendered and presented, queued keys are applied in arrival order and
// timers are checked. Cancelling ctx aborts the session. Failures, panics
// included, are handed to s.Fail before Run returns.
func Run(ctx context.Context, s *Session, surface Surface, clock Clock) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("experiment panicked: %v", r)
			s.Fail(err)
		}
		if cerr := surface.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close surface: %w", cerr)
		}
	}()

	s.Start(clock.Now())
	for !s.Done() {
		if ctx.Err() != nil {
			s.Abort()
			return ctx.Err()
		}
		surface.Render(s.Frame(clock.Now()))
		if perr := surface.Present(); perr != nil {
			err = fmt.Errorf("failed to present frame: %w", perr)
			s.Fail(err)
			return err
		}
		for _, ev := range surface.PollInputEvents() {
			s.HandleKey(ev)
			if s.Done() {
				break
			}
		}
		s.Tick(clock.Now())
	}
	return nil
}
