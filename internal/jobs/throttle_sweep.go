package jobs

import (
	"context"
	"log"
	"time"

	"opencampus/api/internal/ratelimit"
)

// StartThrottleSweepJob periodically evicts expired origin windows from the
// in-memory limiter so the map cannot grow without bound under sustained
// attack traffic. The redis backing expires keys on its own and does not need
// this.
func StartThrottleSweepJob(ctx context.Context, limiter *ratelimit.Memory, interval time.Duration) {
	if limiter == nil {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := limiter.Sweep(time.Now().UTC()); removed > 0 {
					log.Printf("throttle sweep evicted %d expired windows", removed)
				}
			}
		}
	}()
}
