package ioc

import "time"

// DefaultPollInterval is the interval WaitFor uses when given a
// non-positive interval.
const DefaultPollInterval = 100 * time.Millisecond

// WaitFor evaluates pred every interval until it returns true or timeout
// elapses, and reports whether pred was satisfied. The predicate is checked
// once before the first tick. A negative timeout waits forever.
func WaitFor(pred func() bool, interval, timeout time.Duration) bool {
	if pred() {
		return true
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ticker.C:
			if pred() {
				return true
			}
		case <-deadline:
			return pred()
		}
	}
}
