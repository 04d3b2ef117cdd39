// Package poll implements the sleep-and-recheck loop used to wait on the engine.
// The engine offers no push notification, so every wait in enginectl is a poll.
package poll

import "time"

// DefaultInterval is used when a caller passes a non-positive interval
const DefaultInterval = 500 * time.Millisecond

// Result describes how a poll ended
type Result struct {
	Satisfied bool
	Elapsed   time.Duration
	Attempts  int
}

// Until evaluates cond immediately and then every interval until it returns true
// or timeout has elapsed. The condition is always evaluated at least once, and a
// failed poll returns only after the full timeout has passed. onTick, when not
// nil, runs before every evaluation.
func Until(timeout, interval time.Duration, cond func() bool, onTick func()) Result {
	start := time.Now()
	deadline := start.Add(timeout)
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		if onTick != nil {
			onTick()
		}
		attempts++
		if cond() {
			return Result{Satisfied: true, Elapsed: time.Since(start), Attempts: attempts}
		}
		if !time.Now().Before(deadline) {
			return Result{Satisfied: false, Elapsed: time.Since(start), Attempts: attempts}
		}

		wait := time.Until(deadline)
		if wait > interval {
			<-ticker.C
			continue
		}
		// last sleep is clipped to the deadline so the final check happens on time
		time.Sleep(wait)
	}
}
