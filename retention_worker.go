package petpal

import (
	"context"
	"log"
	"time"
)

// startRetentionWorker runs a background goroutine that periodically trims
// each user's fact log down to the configured cap, oldest entries first.
func (c *Companion) startRetentionWorker(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRetention = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				users, err := c.store.ActiveUserIDs()
				if err != nil {
					log.Printf("[petpal] Retention sweep error: %v", err)
					continue
				}
				for _, userID := range users {
					if err := c.store.EnforceFactLimit(userID, c.config.MaxFactsPerUser); err != nil {
						log.Printf("[petpal] Fact limit for %s: %v", userID, err)
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
