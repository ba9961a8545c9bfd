package rules

import (
	"testing"
	"time"
)

func TestAllowanceDayRollsOverAtUTCMidnight(t *testing.T) {
	justBefore := time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC)
	if got := AllowanceDay(justBefore); got != "2026-03-08" {
		t.Fatalf("unexpected day: got %s", got)
	}
	if got := AllowanceDay(justBefore.Add(time.Second)); got != "2026-03-09" {
		t.Fatalf("allowance should roll over at UTC midnight, got %s", got)
	}

	// 01:30 at UTC+3 is still Mar 8 in UTC.
	local := time.Date(2026, 3, 9, 1, 30, 0, 0, time.FixedZone("UTC+3", 3*60*60))
	if got := AllowanceDay(local); got != "2026-03-08" {
		t.Fatalf("offset time: got %s want 2026-03-08", got)
	}
}

func TestAllowanceResetAt(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 8, 21, 30, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 9, 1, 30, 0, 0, time.FixedZone("UTC+3", 3*60*60)), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := AllowanceResetAt(tc.now); !got.Equal(tc.want) {
			t.Fatalf("reset for %s: got %s want %s", tc.now, got.Format(time.RFC3339), tc.want.Format(time.RFC3339))
		}
	}
}

func TestAllowanceLeft(t *testing.T) {
	if got := AllowanceLeft(3, 1); got != 2 {
		t.Fatalf("got %d want 2", got)
	}
	if got := AllowanceLeft(3, 5); got != 0 {
		t.Fatalf("overspent allowance must clamp to zero, got %d", got)
	}
}
