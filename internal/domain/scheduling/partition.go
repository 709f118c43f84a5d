package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// noon splits the day: hours before it are morning, noon onwards is afternoon.
const noon = 12

// HourLayout is the display format of an appointment's time.
const HourLayout = "15:04"

var ErrEmptyTimestamp = errors.New("empty timestamp")

// Layouts without an offset are read in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Timestamps with a zone offset
// are converted to loc; timestamps without one are taken to be in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ScheduledAppointment is an appointment with its parsed time.
type ScheduledAppointment struct {
	Appointment
	At            time.Time
	HourFormatted string
}

// InvalidAppointment is a record dropped because its timestamp did not parse.
type InvalidAppointment struct {
	Appointment
	Err error
}

// DaySchedule is the partition of one day's appointments.
type DaySchedule struct {
	Morning   []ScheduledAppointment
	Afternoon []ScheduledAppointment
	Next      *ScheduledAppointment
	Invalid   []InvalidAppointment
}

// Len returns the number of valid appointments.
func (s DaySchedule) Len() int { return len(s.Morning) + len(s.Afternoon) }

// Partition splits appointments into morning and afternoon buckets, keeping
// input order, and picks the first appointment strictly after now. Hours are
// read in now's location. Records with a bad timestamp go to Invalid only.
func Partition(appointments []Appointment, now time.Time) DaySchedule {
	loc := now.Location()

	var sched DaySchedule
	for _, a := range appointments {
		at, err := ParseTimestamp(a.Date, loc)
		if err != nil {
			sched.Invalid = append(sched.Invalid, InvalidAppointment{Appointment: a, Err: err})
			continue
		}

		sa := ScheduledAppointment{Appointment: a, At: at, HourFormatted: at.Format(HourLayout)}
		if at.Hour() < noon {
			sched.Morning = append(sched.Morning, sa)
		} else {
			sched.Afternoon = append(sched.Afternoon, sa)
		}

		if sched.Next == nil && at.After(now) {
			next := sa
			sched.Next = &next
		}
	}
	return sched
}
