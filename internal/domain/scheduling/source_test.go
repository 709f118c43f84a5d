package scheduling

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"github.com/rs/zerolog"

	"github.com/gobarber/gobarber/internal/platform/apiclient"
	"github.com/gobarber/gobarber/internal/platform/apitest"
)

// ---------- Helper ----------

type fixture struct {
	api      *apitest.Server
	provider apitest.User
	client   *apiclient.Client
	source   *APISource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := apitest.New()
	srv := api.Start(t)
	provider := api.AddUser("Provider", "provider@gobarber.com", "123456")

	token, err := api.IssueToken(provider.ID, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	client, err := apiclient.New(srv.URL, apiclient.WithToken(token))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return &fixture{
		api:      api,
		provider: provider,
		client:   client,
		source:   NewAPISource(client, zerolog.Nop()),
	}
}

// ---------- Tests ----------

func TestAPISource_MonthAvailability(t *testing.T) {
	f := newFixture(t)
	f.api.SetAvailability(f.provider.ID, 2024, time.March, []apitest.DayAvailability{
		{Day: 5, Available: false},
		{Day: 6, Available: true},
	})

	flags, err := f.source.MonthAvailability(context.Background(), f.provider.ID, 2024, time.March)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 2 || flags[0] != (DayAvailability{Day: 5, Available: false}) || flags[1] != (DayAvailability{Day: 6, Available: true}) {
		t.Errorf("unexpected flags %+v", flags)
	}
	// The server keys by the 1-based month it received.
	if n := f.api.Requests(apitest.MonthKey(f.provider.ID, 2024, time.March)); n != 1 {
		t.Errorf("expected 1 request for 2024-03, got %d", n)
	}
}

func TestAPISource_MonthAvailability_DropsOutOfRangeDays(t *testing.T) {
	f := newFixture(t)
	f.api.SetAvailability(f.provider.ID, 2024, time.April, []apitest.DayAvailability{
		{Day: 30, Available: false},
		{Day: 31, Available: false},
		{Day: 0, Available: false},
	})

	flags, err := f.source.MonthAvailability(context.Background(), f.provider.ID, 2024, time.April)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 1 || flags[0].Day != 30 {
		t.Errorf("expected only day 30 to survive, got %+v", flags)
	}
}

func TestAPISource_MonthAvailability_MissingProvider(t *testing.T) {
	f := newFixture(t)
	_, err := f.source.MonthAvailability(context.Background(), "", 2024, time.March)
	if !errors.Is(err, ErrMissingProviderID) {
		t.Errorf("expected ErrMissingProviderID, got %v", err)
	}
}

func TestAPISource_DayAppointments(t *testing.T) {
	f := newFixture(t)
	f.api.AddAppointment(f.provider.ID, 2024, time.March, 5, apitest.Appointment{
		ID:     "a1",
		Date:   "2024-03-05T09:00:00",
		Client: apitest.Client{Name: "John", AvatarURL: null.StringFrom("http://avatars/john.png")},
	})
	f.api.AddAppointment(f.provider.ID, 2024, time.March, 5, apitest.Appointment{
		ID:     "a2",
		Date:   "2024-03-05T14:30:00",
		Client: apitest.Client{Name: "Jane"},
	})

	appts, err := f.source.DayAppointments(context.Background(), Date{Year: 2024, Month: time.March, Day: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appts) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(appts))
	}
	if appts[0].ClientName() != "John" || appts[0].ClientAvatarURL() != "http://avatars/john.png" {
		t.Errorf("unexpected first appointment %+v", appts[0])
	}
	if appts[1].ClientAvatarURL() != "" {
		t.Errorf("expected null avatar to read as empty, got %q", appts[1].ClientAvatarURL())
	}
}

func TestAPISource_Unauthorized(t *testing.T) {
	f := newFixture(t)
	f.client.SetToken("")

	_, err := f.source.DayAppointments(context.Background(), Date{Year: 2024, Month: time.March, Day: 5})
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAPISource_ServerError(t *testing.T) {
	f := newFixture(t)
	f.api.SetFailure(apitest.MonthKey(f.provider.ID, 2024, time.March), http.StatusInternalServerError, "boom")

	_, err := f.source.MonthAvailability(context.Background(), f.provider.ID, 2024, time.March)
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiclient.APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "boom" {
		t.Errorf("unexpected api error %+v", apiErr)
	}
}
