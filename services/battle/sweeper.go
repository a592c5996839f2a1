package battle

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartStaleQueueSweeper schedules a periodic job cancelling waiting
// sessions older than maxAge, so abandoned queuers do not sit in the queue
// forever. Cancelling publishes the status change, which resets the queued
// clients to idle through their normal subscription path.
//
// The age threshold is a product decision with no built-in default; callers
// only start the sweeper when QUEUE_STALE_MINUTES is configured.
func StartStaleQueueSweeper(store *Store, maxAge time.Duration) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	interval := maxAge / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			sweepStaleSessions(store, maxAge)
		}),
	)
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	log.Printf("[SWEEP] Stale queue sweeper started (max age %s, every %s)", maxAge, interval)
	return scheduler, nil
}

func sweepStaleSessions(store *Store, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	sessions, err := store.StaleWaitingSessions(cutoff)
	if err != nil {
		log.Printf("[SWEEP] Error listing stale sessions: %v", err)
		return
	}

	for _, session := range sessions {
		cancelled, err := store.CancelSession(session.ID)
		if err != nil {
			log.Printf("[SWEEP] Error cancelling stale session %s: %v", session.ID, err)
			continue
		}
		if cancelled {
			log.Printf("[SWEEP] Cancelled stale session %s (waiting since %s)",
				session.ID, session.CreatedAt.Format(time.RFC3339))
		}
	}
}
