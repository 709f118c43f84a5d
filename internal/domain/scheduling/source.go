package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gobarber/gobarber/internal/platform/apiclient"
)

var ErrMissingProviderID = errors.New("provider id is required")

// Source is the remote data the dashboard is built from.
type Source interface {
	MonthAvailability(ctx context.Context, providerID string, year int, month time.Month) ([]DayAvailability, error)
	DayAppointments(ctx context.Context, day Date) ([]Appointment, error)
}

// APISource reads availability and appointments from the appointment API.
type APISource struct {
	client *apiclient.Client
	logger zerolog.Logger
}

// NewAPISource creates a Source over client.
func NewAPISource(client *apiclient.Client, logger zerolog.Logger) *APISource {
	return &APISource{client: client, logger: logger}
}

// MonthAvailability handles GET providers/{id}/month-availability. The month
// is sent 1-based. Flags for days outside the month are dropped here.
func (s *APISource) MonthAvailability(ctx context.Context, providerID string, year int, month time.Month) ([]DayAvailability, error) {
	if providerID == "" {
		return nil, ErrMissingProviderID
	}

	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(int(month)))

	var flags []DayAvailability
	path := fmt.Sprintf("providers/%s/month-availability", url.PathEscape(providerID))
	if err := s.client.Get(ctx, path, q, &flags); err != nil {
		return nil, fmt.Errorf("fetch month availability: %w", err)
	}

	var bad *InvalidDayError
	if err := ValidateAvailability(year, month, flags); errors.As(err, &bad) {
		s.logger.Warn().
			Str("provider_id", providerID).
			Ints("days", bad.Days).
			Msg("dropping availability flags outside the month")

		kept := flags[:0]
		for _, f := range flags {
			if (Date{Year: year, Month: month, Day: f.Day}).Valid() {
				kept = append(kept, f)
			}
		}
		flags = kept
	}
	return flags, nil
}

// DayAppointments handles GET appointments/me for the signed-in provider.
func (s *APISource) DayAppointments(ctx context.Context, day Date) ([]Appointment, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(day.Year))
	q.Set("month", strconv.Itoa(int(day.Month)))
	q.Set("day", strconv.Itoa(day.Day))

	var appts []Appointment
	if err := s.client.Get(ctx, "appointments/me", q, &appts); err != nil {
		return nil, fmt.Errorf("fetch appointments: %w", err)
	}
	return appts, nil
}
