package auth

import "time"

// InCoolDown reports whether a failed login at lastAttempt still counts
// against the account at now. The window is CoolDownPeriod.
func InCoolDown(now, lastAttempt time.Time) (bool, error) {
	return withinPeriod(now, lastAttempt, CoolDownPeriod)
}

// withinPeriod is true when t falls strictly inside the period that ends at now
func withinPeriod(now, t time.Time, period string) (bool, error) {
	duration, err := time.ParseDuration(period)
	if err != nil {
		return false, err
	}

	return t.After(now.Add(-duration)), nil
}
