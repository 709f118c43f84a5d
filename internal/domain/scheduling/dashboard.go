package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDateNotSelectable  = errors.New("date is not selectable")
	ErrMonthBeforeCurrent = errors.New("month is before the current month")
)

// Status is the load state of one dashboard resource.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// resource tracks the latest request for one kind of data. Only a result
// carrying the current generation may replace data.
type resource[T any] struct {
	status Status
	gen    uint64
	cancel context.CancelFunc
	data   T
	err    error
}

// begin supersedes any in-flight request and returns the new generation. The
// previous data belongs to another month or day, so it is dropped.
func (r *resource[T]) begin(parent context.Context) (context.Context, uint64) {
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	var zero T
	r.cancel = cancel
	r.gen++
	r.status = StatusLoading
	r.data = zero
	r.err = nil
	return ctx, r.gen
}

// settle stores a result if gen is still current. It reports false for stale results.
func (r *resource[T]) settle(gen uint64, data T, err error) bool {
	if gen != r.gen {
		return false
	}
	var zero T
	if err != nil {
		data = zero
	}
	r.data = data
	r.err = err
	r.status = StatusLoaded
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return true
}

// Snapshot is an immutable view of the dashboard.
type Snapshot struct {
	Now      time.Time
	Today    Date
	Month    Date
	Selected Date

	MonthStatus Status
	DateStatus  Status
	MonthErr    error
	DateErr     error

	Availability []DayAvailability
	Unavailable  DateSet
	Calendar     MonthView
	Schedule     DaySchedule
}

// IsToday reports whether the selected day is today.
func (s Snapshot) IsToday() bool { return s.Selected == s.Today }

// LastError returns the failure of the most recent fetch, if any.
func (s Snapshot) LastError() error {
	if s.DateErr != nil {
		return s.DateErr
	}
	return s.MonthErr
}

// ShowNext reports whether the next-appointment card is shown. It only
// appears when looking at today.
func (s Snapshot) ShowNext() bool { return s.IsToday() && s.Schedule.Next != nil }

// DashboardOption configures a Dashboard.
type DashboardOption func(*Dashboard)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) DashboardOption {
	return func(d *Dashboard) { d.now = now }
}

// WithLocation sets the zone used for calendar days and hour-of-day.
func WithLocation(loc *time.Location) DashboardOption {
	return func(d *Dashboard) { d.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) DashboardOption {
	return func(d *Dashboard) { d.logger = l }
}

// WithInitialDate opens the dashboard on day instead of today.
func WithInitialDate(day Date) DashboardOption {
	return func(d *Dashboard) { d.initial = &day }
}

// WithInitialMonth opens the calendar on month. The selected day is unchanged.
func WithInitialMonth(month Date) DashboardOption {
	return func(d *Dashboard) { d.initialMonth = &month }
}

// Dashboard drives the appointment screen: the displayed month and its
// unavailable days, and the selected day and its appointments. Each change
// refetches its resource; a newer request supersedes an older one and late
// results from superseded requests are dropped.
type Dashboard struct {
	source       Source
	providerID   string
	now          func() time.Time
	loc          *time.Location
	logger       zerolog.Logger
	initial      *Date
	initialMonth *Date

	// notifyMu serialises listener calls.
	notifyMu sync.Mutex
	mu       sync.Mutex
	month    Date
	selected Date
	avail    resource[[]DayAvailability]
	appts    resource[[]Appointment]

	onChange []func(Snapshot)
	onError  []func(error)

	wg sync.WaitGroup
}

// NewDashboard creates a Dashboard for providerID, opened on today.
func NewDashboard(source Source, providerID string, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		source:     source,
		providerID: providerID,
		now:        time.Now,
		loc:        time.Local,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	start := d.today()
	if d.initial != nil {
		start = *d.initial
	}
	d.selected = start
	d.month = start.FirstOfMonth()
	if d.initialMonth != nil {
		d.month = d.initialMonth.FirstOfMonth()
	}
	return d
}

// OnChange registers fn to be called with a fresh snapshot after every state change.
func (d *Dashboard) OnChange(fn func(Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = append(d.onChange, fn)
}

// OnError registers fn to be called when a fetch fails.
func (d *Dashboard) OnError(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = append(d.onError, fn)
}

func (d *Dashboard) clock() time.Time { return d.now().In(d.loc) }

func (d *Dashboard) today() Date { return DateOf(d.clock()) }

// Load fetches the current month and selected day concurrently and waits for
// both. The returned error is the first fetch failure, if any.
func (d *Dashboard) Load(ctx context.Context) error {
	d.mu.Lock()
	monthCtx, monthGen := d.avail.begin(ctx)
	dateCtx, dateGen := d.appts.begin(ctx)
	month, day := d.month, d.selected
	d.mu.Unlock()
	d.notify(nil)

	g := new(errgroup.Group)
	g.Go(func() error { return d.fetchMonth(monthCtx, monthGen, month) })
	g.Go(func() error { return d.fetchDay(dateCtx, dateGen, day) })
	return g.Wait()
}

// SetMonth changes the displayed month and refetches its availability in
// the background. Months before the current one cannot be shown.
func (d *Dashboard) SetMonth(ctx context.Context, month Date) error {
	month = month.FirstOfMonth()
	if month.Before(d.today().FirstOfMonth()) {
		return ErrMonthBeforeCurrent
	}

	d.mu.Lock()
	d.month = month
	fetchCtx, gen := d.avail.begin(ctx)
	d.mu.Unlock()
	d.notify(nil)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.fetchMonth(fetchCtx, gen, month)
	}()
	return nil
}

// SelectDate changes the selected day and refetches its appointments in the
// background. Only enabled weekdays of the displayed month can be selected.
func (d *Dashboard) SelectDate(ctx context.Context, day Date) error {
	d.mu.Lock()
	view := BuildMonthView(d.month, d.selected, d.today(), d.unavailableLocked())
	if !view.CanSelect(day) {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDateNotSelectable, day)
	}
	d.selected = day
	fetchCtx, gen := d.appts.begin(ctx)
	d.mu.Unlock()
	d.notify(nil)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.fetchDay(fetchCtx, gen, day)
	}()
	return nil
}

// Wait blocks until every background fetch has finished.
func (d *Dashboard) Wait() {
	d.wg.Wait()
}

// Close cancels in-flight fetches and waits for them.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.avail.cancel != nil {
		d.avail.cancel()
	}
	if d.appts.cancel != nil {
		d.appts.cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Snapshot derives the current view.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Dashboard) unavailableLocked() DateSet {
	return ComputeDisabledDates(d.month.Year, d.month.Month, d.avail.data)
}

func (d *Dashboard) snapshotLocked() Snapshot {
	now := d.clock()
	today := DateOf(now)
	unavailable := d.unavailableLocked()

	return Snapshot{
		Now:          now,
		Today:        today,
		Month:        d.month,
		Selected:     d.selected,
		MonthStatus:  d.avail.status,
		DateStatus:   d.appts.status,
		MonthErr:     d.avail.err,
		DateErr:      d.appts.err,
		Availability: append([]DayAvailability(nil), d.avail.data...),
		Unavailable:  unavailable,
		Calendar:     BuildMonthView(d.month, d.selected, today, unavailable),
		Schedule:     Partition(d.appts.data, now),
	}
}

func (d *Dashboard) fetchMonth(ctx context.Context, gen uint64, month Date) error {
	flags, err := d.source.MonthAvailability(ctx, d.providerID, month.Year, month.Month)

	d.mu.Lock()
	applied := d.avail.settle(gen, flags, err)
	d.mu.Unlock()

	if !applied {
		d.logger.Debug().Str("month", month.String()).Uint64("generation", gen).Msg("discarding stale availability")
		return nil
	}
	if err != nil {
		d.logger.Error().Err(err).Str("month", month.String()).Msg("month availability unavailable")
	}
	d.notify(err)
	return err
}

func (d *Dashboard) fetchDay(ctx context.Context, gen uint64, day Date) error {
	appts, err := d.source.DayAppointments(ctx, day)

	d.mu.Lock()
	applied := d.appts.settle(gen, appts, err)
	d.mu.Unlock()

	if !applied {
		d.logger.Debug().Str("date", day.String()).Uint64("generation", gen).Msg("discarding stale appointments")
		return nil
	}
	if err != nil {
		d.logger.Error().Err(err).Str("date", day.String()).Msg("appointments unavailable")
	} else {
		for _, bad := range Partition(appts, d.clock()).Invalid {
			d.logger.Warn().Err(bad.Err).Str("appointment_id", bad.ID).Msg("skipping appointment with malformed date")
		}
	}
	d.notify(err)
	return err
}

// notify hands a snapshot to listeners, and err to error listeners when set.
func (d *Dashboard) notify(err error) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	snap := d.snapshotLocked()
	changeFns := append([]func(Snapshot){}, d.onChange...)
	errorFns := append([]func(error){}, d.onError...)
	d.mu.Unlock()

	if err != nil {
		for _, fn := range errorFns {
			fn(err)
		}
	}
	for _, fn := range changeFns {
		fn(snap)
	}
}
