package auth

import (
	"context"
	"log"
	"time"
)

// SweepInterval is how often expired sessions are reaped.
const SweepInterval = 1 * time.Hour

// RunSweeper deletes expired sessions on a fixed interval until ctx is
// cancelled. A failed iteration logs and waits for the next tick; it never
// takes down the process or blocks request handling.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.CleanupExpiredSessions(ctx); err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
			}
		}
	}
}
