package jobs

import (
	"context"
	"log"
	"time"

	"github.com/adarsh745/etaxmentor-sub000/internal/repository"
)

// StartSessionSweep deletes expired session rows on an interval. Read-time
// eviction already keeps expired sessions unusable; this only reclaims rows.
// Disabled unless an interval is configured.
func StartSessionSweep(ctx context.Context, store *repository.Store, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				deleted, err := store.DeleteExpiredSessions(tickCtx, time.Now().UTC())
				cancel()
				if err != nil {
					log.Printf("session sweep error: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("session sweep removed %d expired sessions", deleted)
				}
			}
		}
	}()
}
