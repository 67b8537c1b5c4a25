package util

import "time"

var loc = time.UTC

func SetLocation(l *time.Location) {
	loc = l
}

func Now() time.Time {
	return time.Now().In(loc)
}

// DayWindow returns the half-open interval covering the trailing n days
// ending now.
func DayWindow(n int) (start, end time.Time) {
	end = Now()
	start = end.Add(-time.Duration(n) * 24 * time.Hour)
	return
}
