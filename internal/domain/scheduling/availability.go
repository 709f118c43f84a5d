package scheduling

import (
	"fmt"
	"time"
)

// ComputeDisabledDates returns the days of year/month whose flag is not
// available. Flags naming a day that does not exist in the month (0, 31 in a
// 30-day month, ...) are skipped; they are never rolled into a neighbouring
// month. Use ValidateAvailability to find them.
func ComputeDisabledDates(year int, month time.Month, flags []DayAvailability) DateSet {
	disabled := make(DateSet)
	for _, f := range flags {
		if f.Available {
			continue
		}
		d := Date{Year: year, Month: month, Day: f.Day}
		if !d.Valid() {
			continue
		}
		disabled[d] = struct{}{}
	}
	return disabled
}

// InvalidDayError reports flags whose day is outside the month.
type InvalidDayError struct {
	Year  int
	Month time.Month
	Days  []int
}

func (e *InvalidDayError) Error() string {
	return fmt.Sprintf("availability for %04d-%02d has days outside the month: %v", e.Year, int(e.Month), e.Days)
}

// ValidateAvailability returns an *InvalidDayError listing out-of-range days,
// or nil when every flag names a real day of year/month.
func ValidateAvailability(year int, month time.Month, flags []DayAvailability) error {
	var bad []int
	for _, f := range flags {
		if !(Date{Year: year, Month: month, Day: f.Day}).Valid() {
			bad = append(bad, f.Day)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &InvalidDayError{Year: year, Month: month, Days: bad}
}
