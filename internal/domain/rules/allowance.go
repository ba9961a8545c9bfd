package rules

import "time"

// The free comment allowance is counted per UTC calendar day.

func AllowanceDay(now time.Time) string {
	return now.UTC().Format(time.DateOnly)
}

// AllowanceResetAt is the next UTC midnight after now.
func AllowanceResetAt(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func AllowanceLeft(free, used int) int {
	if left := free - used; left > 0 {
		return left
	}
	return 0
}
