package service

import (
	"time"
)

// Clock returns the current time. Services hold one so tests can pin "now".
type Clock func() time.Time

// SystemClock reads the wall clock in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

// GetCurrentDayStart returns midnight of the current calendar day in loc
func GetCurrentDayStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
