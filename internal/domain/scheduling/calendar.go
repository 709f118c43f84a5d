package scheduling

import (
	"fmt"
	"time"
)

// DayCell is one square of the month calendar.
type DayCell struct {
	Date        Date
	InMonth     bool
	Weekend     bool
	Unavailable bool
	Disabled    bool
	Selected    bool
	Today       bool
}

// MonthView is the calendar grid for one month, Sunday first.
type MonthView struct {
	Month Date
	Weeks [][7]DayCell
}

// IsWeekend reports whether d falls on a Saturday or Sunday. Weekends are
// never bookable.
func IsWeekend(d Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// BuildMonthView lays out month as full weeks. Unavailable days and weekends
// are disabled; days of adjacent months are filled in but never selectable.
func BuildMonthView(month, selected, today Date, unavailable DateSet) MonthView {
	first := month.FirstOfMonth()
	start := first.AddDays(-int(first.Weekday()))
	last := Date{Year: first.Year, Month: first.Month, Day: DaysIn(first.Year, first.Month)}

	view := MonthView{Month: first}
	for d := start; !last.Before(d); {
		var week [7]DayCell
		for i := 0; i < 7; i++ {
			cell := DayCell{
				Date:        d,
				InMonth:     d.SameMonth(first),
				Weekend:     IsWeekend(d),
				Unavailable: unavailable.Contains(d),
				Selected:    d == selected,
				Today:       d == today,
			}
			cell.Disabled = !cell.InMonth || cell.Weekend || cell.Unavailable
			week[i] = cell
			d = d.AddDays(1)
		}
		view.Weeks = append(view.Weeks, week)
	}
	return view
}

// Cell returns the in-month cell for d.
func (v MonthView) Cell(d Date) (DayCell, bool) {
	for _, week := range v.Weeks {
		for _, c := range week {
			if c.InMonth && c.Date == d {
				return c, true
			}
		}
	}
	return DayCell{}, false
}

// CanSelect reports whether d is a bookable weekday of this month that the
// provider has not marked unavailable.
func (v MonthView) CanSelect(d Date) bool {
	c, ok := v.Cell(d)
	return ok && !c.Disabled
}

// DisabledDates returns every disabled in-month day, weekends included.
func (v MonthView) DisabledDates() DateSet {
	out := make(DateSet)
	for _, week := range v.Weeks {
		for _, c := range week {
			if c.InMonth && c.Disabled {
				out[c.Date] = struct{}{}
			}
		}
	}
	return out
}

// LongDate renders d as "Day 05 of March".
func LongDate(d Date) string {
	return fmt.Sprintf("Day %02d of %s", d.Day, d.Month)
}
