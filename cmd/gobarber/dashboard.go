package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gobarber/gobarber/internal/domain/scheduling"
)

var errQuit = errors.New("quit")

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the provider's appointments and calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			s, err := a.requireSession()
			if err != nil {
				return err
			}

			opts := []scheduling.DashboardOption{
				scheduling.WithLocation(a.loc),
				scheduling.WithLogger(a.logger),
			}
			today := scheduling.DateOf(time.Now().In(a.loc))
			if v, _ := cmd.Flags().GetString("date"); v != "" {
				day, err := scheduling.ParseDate(v)
				if err != nil {
					return err
				}
				opts = append(opts, scheduling.WithInitialDate(day))
			}
			if v, _ := cmd.Flags().GetString("month"); v != "" {
				month, err := scheduling.ParseMonth(v)
				if err != nil {
					return err
				}
				if month.Before(today.FirstOfMonth()) {
					return fmt.Errorf("%w: %s", scheduling.ErrMonthBeforeCurrent, v)
				}
				opts = append(opts, scheduling.WithInitialMonth(month))
			}

			source := scheduling.NewAPISource(a.api, a.logger)
			d := scheduling.NewDashboard(source, s.User.ID, opts...)
			defer d.Close()

			ctx := cmd.Context()
			// Fetch failures are shown on screen.
			_ = d.Load(ctx)

			interactive, _ := cmd.Flags().GetBool("interactive")
			if !interactive {
				renderDashboard(a.out, s.User.Name, d.Snapshot())
				return nil
			}
			return runInteractive(ctx, d, s.User.Name, a.in, a.out)
		},
	}
	cmd.Flags().String("date", "", "Selected day (YYYY-MM-DD), defaults to today")
	cmd.Flags().String("month", "", "Displayed month (YYYY-MM), defaults to the selected day's month")
	cmd.Flags().BoolP("interactive", "i", false, "Navigate with n/p (month), d <day>, t (today), q (quit)")
	return cmd
}

const interactiveHelp = "n: next month | p: previous month | d <day>: select day | t: today | q: quit"

// runInteractive renders the dashboard after every command read from in until
// q or end of input.
func runInteractive(ctx context.Context, d *scheduling.Dashboard, userName string, in io.Reader, out io.Writer) error {
	renderDashboard(out, userName, d.Snapshot())
	fmt.Fprintln(out, interactiveHelp)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}

		err := applyCommand(ctx, d, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		d.Wait()
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out)
		renderDashboard(out, userName, d.Snapshot())
	}
}

func applyCommand(ctx context.Context, d *scheduling.Dashboard, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	snap := d.Snapshot()

	switch fields[0] {
	case "q", "quit":
		return errQuit
	case "n":
		return d.SetMonth(ctx, snap.Month.AddMonths(1))
	case "p":
		return d.SetMonth(ctx, snap.Month.AddMonths(-1))
	case "d":
		if len(fields) != 2 {
			return errors.New("usage: d <day>")
		}
		day, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid day %q", fields[1])
		}
		return d.SelectDate(ctx, scheduling.Date{Year: snap.Month.Year, Month: snap.Month.Month, Day: day})
	case "t":
		if !snap.Month.SameMonth(snap.Today) {
			if err := d.SetMonth(ctx, snap.Today); err != nil {
				return err
			}
			// Availability decides whether today is selectable.
			d.Wait()
		}
		return d.SelectDate(ctx, snap.Today)
	}
	return fmt.Errorf("unknown command %q (%s)", fields[0], interactiveHelp)
}
