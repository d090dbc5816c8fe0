package main

import (
	"context"
	"log"
	"time"
)

const evictEveryTicks = 600

// startTickLoop drives every open session at the given period until ctx ends.
func startTickLoop(ctx context.Context, sessions *SessionManager, period time.Duration) {
	ticker := time.NewTicker(period)

	go func() {
		defer ticker.Stop()
		tickCount := 0
		for {
			select {
			case <-ctx.Done():
				log.Println("Tick: stopped after", tickCount, "ticks")
				return
			case <-ticker.C:
				sessions.TickAll()

				tickCount++
				if tickCount%evictEveryTicks == 0 {
					if n := sessions.EvictIdle(ctx); n > 0 {
						log.Println("Tick: evicted", n, "idle sessions, open now", sessions.Len())
					}
				}
			}
		}
	}()
}
