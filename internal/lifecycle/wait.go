package lifecycle

import "time"

// WaitUntil polls predicate up to maxAttempts times, sleeping interval between
// attempts. It reports whether predicate ever returned true. No lock may be
// held by the caller across this call.
func WaitUntil(predicate func() bool, interval time.Duration, maxAttempts int) bool {
	for i := 0; i < maxAttempts; i++ {
		if predicate() {
			return true
		}
		if i < maxAttempts-1 {
			time.Sleep(interval)
		}
	}
	return false
}

// WaitFor polls predicate every interval until it holds or timeout elapses.
func WaitFor(predicate func() bool, interval, timeout time.Duration) bool {
	if interval <= 0 {
		interval = time.Millisecond
	}
	attempts := int(timeout/interval) + 1
	return WaitUntil(predicate, interval, attempts)
}
