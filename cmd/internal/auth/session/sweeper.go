package session

import (
	"context"
	"time"
)

// RunSweeper calls SweepExpiredTokens every interval until ctx ends.
// Sweep errors are logged and the loop continues.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.SweepExpiredTokens(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Error("session.sweep.fail", "err", err)
				continue
			}
			s.log.Debug("session.sweep.done", "deleted", n)
		}
	}
}
