package app

import "time"

// nextDelay returns the time until the next multiple of period, so passes line
// up with the wall clock (every 30s on :00 and :30, every 5m on :00, :05 ...).
func nextDelay(now time.Time, period time.Duration) time.Duration {
	next := now.Truncate(period).Add(period)
	return next.Sub(now)
}
