package occurrence

import (
	"fmt"
	"time"

	"github.com/remindkit/remindkit/internal/domain"
)

// Advance returns the calendar date one frequency step after date.
// Daily advances one day, weekly seven days, monthly one calendar month
// with the day-of-month clamped to the end of the target month
// (Jan 31 -> Feb 28/29).
func Advance(date string, frequency domain.Frequency) (string, error) {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidDate, date)
	}

	switch frequency {
	case domain.FrequencyDaily:
		t = t.AddDate(0, 0, 1)
	case domain.FrequencyWeekly:
		t = t.AddDate(0, 0, 7)
	case domain.FrequencyMonthly:
		t = addMonthClamped(t)
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}
	return t.Format(domain.DateLayout), nil
}

// addMonthClamped advances one calendar month, preserving the day of
// month where valid. AddDate would normalize Jan 31 into March; clamping
// to the last day of the target month keeps monthly series on the month
// they belong to.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, time.UTC)
}
