package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gobarber/gobarber/internal/domain/github"
	"github.com/gobarber/gobarber/internal/domain/scheduling"
)

const noAppointments = "No appointments in this period"

// renderDashboard draws one snapshot of the appointment screen.
func renderDashboard(w io.Writer, userName string, snap scheduling.Snapshot) {
	fmt.Fprintf(w, "GoBarber | Welcome, %s\n\n", userName)

	fmt.Fprintln(w, "Scheduled times")
	var header []string
	if snap.IsToday() {
		header = append(header, "Today")
	}
	header = append(header, scheduling.LongDate(snap.Selected), snap.Selected.Weekday().String())
	fmt.Fprintln(w, strings.Join(header, " | "))
	fmt.Fprintln(w)

	switch {
	case snap.DateStatus == scheduling.StatusLoading:
		fmt.Fprintln(w, "Loading appointments...")
	case snap.DateErr != nil:
		fmt.Fprintf(w, "Could not load appointments: %v\n", snap.DateErr)
	default:
		if snap.ShowNext() {
			fmt.Fprintln(w, "Next appointment")
			fmt.Fprintf(w, "  %s\n\n", appointmentLine(*snap.Schedule.Next))
		}
		renderPeriod(w, "Morning", snap.Schedule.Morning)
		renderPeriod(w, "Afternoon", snap.Schedule.Afternoon)
	}
	fmt.Fprintln(w)

	renderCalendar(w, snap.Calendar)
	switch {
	case snap.MonthStatus == scheduling.StatusLoading:
		fmt.Fprintln(w, "Loading availability...")
	case snap.MonthErr != nil:
		fmt.Fprintf(w, "Could not load availability: %v\n", snap.MonthErr)
	}
}

func renderPeriod(w io.Writer, title string, appts []scheduling.ScheduledAppointment) {
	fmt.Fprintln(w, title)
	if len(appts) == 0 {
		fmt.Fprintf(w, "  %s\n", noAppointments)
		return
	}
	for _, a := range appts {
		fmt.Fprintf(w, "  %s\n", appointmentLine(a))
	}
}

func appointmentLine(a scheduling.ScheduledAppointment) string {
	line := a.HourFormatted + "  " + a.ClientName()
	if avatar := a.ClientAvatarURL(); avatar != "" {
		line += " (" + avatar + ")"
	}
	return line
}

// renderCalendar prints the month grid. [d] is the selected day, <d> today,
// and a trailing - marks a day that cannot be selected.
func renderCalendar(w io.Writer, view scheduling.MonthView) {
	title := fmt.Sprintf("%s %d", view.Month.Month, view.Month.Year)
	fmt.Fprintf(w, "%*s\n", (28+len(title))/2, title)
	fmt.Fprintln(w, " Su  Mo  Tu  We  Th  Fr  Sa")
	for _, week := range view.Weeks {
		var b strings.Builder
		for _, c := range week {
			b.WriteString(calendarCell(c))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func calendarCell(c scheduling.DayCell) string {
	if !c.InMonth {
		return "    "
	}
	open, closing := " ", " "
	switch {
	case c.Selected:
		open, closing = "[", "]"
	case c.Today:
		open, closing = "<", ">"
	case c.Disabled:
		closing = "-"
	}
	return fmt.Sprintf("%s%2d%s", open, c.Date.Day, closing)
}

func renderRepository(w io.Writer, r github.Repository) {
	fmt.Fprintf(w, "%s\n", r.FullName)
	if r.Description.Valid && r.Description.String != "" {
		fmt.Fprintf(w, "  %s\n", r.Description.String)
	}
	fmt.Fprintf(w, "  stars %d | forks %d | open issues %d\n", r.StargazersCount, r.ForksCount, r.OpenIssuesCount)
}

func renderDetails(w io.Writer, d github.Details) {
	renderRepository(w, d.Repository)
	fmt.Fprintf(w, "  %s\n\n", d.Repository.HTMLURL)
	if len(d.Issues) == 0 {
		fmt.Fprintln(w, "No open issues")
		return
	}
	fmt.Fprintln(w, "Issues")
	for _, is := range d.Issues {
		fmt.Fprintf(w, "  #%d %s (%s)\n", is.Number, is.Title, is.User.Login)
	}
}
