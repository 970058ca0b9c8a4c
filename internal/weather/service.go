package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/i474232898/forecast-tracker/internal/metrics"
)

var (
	// ErrNoData is returned when a location is tracked but has no forecast at or before the query time.
	ErrNoData = errors.New("no forecast data for requested time")
	// ErrBadTime is returned when a time-of-day string is not HH:MM.
	ErrBadTime = errors.New("invalid time of day; use HH:MM")
	// ErrSeriesMismatch is returned when a batched provider response does not line up with the request.
	ErrSeriesMismatch = errors.New("provider returned a different number of series than requested")
	// ErrInvalidCoordinates is returned when a latitude or longitude is out of range.
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

const clockLayout = "15:04"

// Options tune how the Service requests and interprets forecasts.
type Options struct {
	Variables    Variables
	Intervals    Intervals
	ForecastDays int

	// Location is the single clock all forecast times are compared in.
	Location *time.Location
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if len(o.Variables.Fine) == 0 && len(o.Variables.Coarse) == 0 {
		o.Variables = DefaultVariables
	}
	if o.Intervals.Fine <= 0 {
		o.Intervals.Fine = 15 * time.Minute
	}
	if o.Intervals.Coarse <= 0 {
		o.Intervals.Coarse = time.Hour
	}
	if o.ForecastDays <= 0 {
		o.ForecastDays = 1
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Service owns the tracked-location table and answers forecast queries from it.
type Service struct {
	log       *slog.Logger
	table     Tracker
	provider  Provider
	snapshots SnapshotStore
	metrics   *metrics.Metrics
	opts      Options

	// persistMu orders snapshot writes so the newest row is the newest table state.
	persistMu sync.Mutex
}

// NewService creates a new Service.
func NewService(
	log *slog.Logger,
	table Tracker,
	provider Provider,
	snapshots SnapshotStore,
	metrics *metrics.Metrics,
	opts Options,
) *Service {
	return &Service{
		log:       log,
		table:     table,
		provider:  provider,
		snapshots: snapshots,
		metrics:   metrics,
		opts:      opts.withDefaults(),
	}
}

// Restore loads the latest persisted snapshot into the table.
// Any failure leaves the table empty; startup is never aborted.
func (s *Service) Restore(ctx context.Context) {
	data, err := s.snapshots.LoadLatest(ctx)
	if err != nil {
		s.metrics.SnapshotErrors.WithLabelValues("load").Inc()
		s.log.WarnContext(ctx, "Failed to load snapshot, starting empty", "error", err)
		return
	}
	if data == nil {
		s.log.InfoContext(ctx, "No snapshot found, starting empty")
		return
	}
	if err := s.table.Restore(data); err != nil {
		s.metrics.SnapshotErrors.WithLabelValues("load").Inc()
		s.log.WarnContext(ctx, "Failed to decode snapshot, starting empty", "error", err)
		return
	}

	s.metrics.TrackedLocations.Set(float64(s.table.Len()))
	s.log.InfoContext(ctx, "Snapshot restored", "locations", s.table.Len())
}

// Track starts tracking label at coords and fetches its first series.
// A failed initial fetch is logged; the location stays tracked and is filled on the next cycle.
func (s *Service) Track(ctx context.Context, label string, coords Coordinates) (*TrackedLocation, error) {
	if !coords.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCoordinates, coords)
	}

	loc, err := s.table.Add(label, coords)
	if err != nil {
		return nil, err
	}
	s.metrics.TrackedLocations.Set(float64(s.table.Len()))
	s.log.InfoContext(ctx, "Location tracked", "label", label, "coordinates", coords.String())

	if err := s.RefreshOne(ctx, label); err != nil {
		s.log.ErrorContext(ctx, "Initial forecast fetch failed", "label", label, "error", err)
	}

	s.persist(ctx)
	return loc, nil
}

// Untrack stops tracking label.
func (s *Service) Untrack(ctx context.Context, label string) error {
	if err := s.table.Remove(label); err != nil {
		return err
	}
	s.metrics.TrackedLocations.Set(float64(s.table.Len()))
	s.log.InfoContext(ctx, "Location untracked", "label", label)

	s.persist(ctx)
	return nil
}

// List returns tracked labels in insertion order.
func (s *Service) List() []string {
	return s.table.List()
}

// RefreshOne fetches a fresh series for a single label. Provider errors are returned as is.
func (s *Service) RefreshOne(ctx context.Context, label string) error {
	loc, err := s.table.Get(label)
	if err != nil {
		return err
	}

	series, err := s.fetch(ctx, []Coordinates{loc.Coordinates()})
	if err != nil {
		return fmt.Errorf("refresh %s: %w", label, err)
	}

	forecasts, err := series[0].Forecasts()
	if err != nil {
		return fmt.Errorf("align %s: %w", label, err)
	}
	loc.Series().Replace(forecasts)
	s.log.DebugContext(ctx, "Forecast refreshed", "label", label, "forecasts", loc.Series().Len())
	return nil
}

// RefreshAll refreshes every tracked location with one batched provider call.
//
// The batch is built from a point-in-time copy of the table, and the i-th
// returned series is applied to the i-th location of that copy.
func (s *Service) RefreshAll(ctx context.Context) error {
	cycle := ulid.Make().String()
	locs := s.table.Locations()
	if len(locs) == 0 {
		s.log.DebugContext(ctx, "No tracked locations to refresh", "cycle", cycle)
		return nil
	}

	s.log.InfoContext(ctx, "Refreshing forecasts", "cycle", cycle, "locations", len(locs))

	coords := make([]Coordinates, len(locs))
	for i, loc := range locs {
		coords[i] = loc.Coordinates()
	}

	series, err := s.fetch(ctx, coords)
	if err != nil {
		s.metrics.RefreshCycles.WithLabelValues("failure").Inc()
		s.log.ErrorContext(ctx, "Refresh cycle abandoned", "cycle", cycle, "error", err)
		return fmt.Errorf("refresh all: %w", err)
	}

	for i, loc := range locs {
		forecasts, err := series[i].Forecasts()
		if err != nil {
			s.log.ErrorContext(ctx, "Skipping location with malformed series",
				"cycle", cycle, "label", loc.Label(), "error", err)
			continue
		}
		loc.Series().Replace(forecasts)
		s.log.DebugContext(ctx, "Forecast refreshed", "cycle", cycle, "label", loc.Label(), "forecasts", loc.Series().Len())
	}

	s.metrics.RefreshCycles.WithLabelValues("success").Inc()
	s.log.InfoContext(ctx, "Refresh cycle finished", "cycle", cycle)

	s.persist(ctx)
	return nil
}

func (s *Service) fetch(ctx context.Context, coords []Coordinates) ([]RawSeries, error) {
	req := ForecastRequest{
		Coordinates: coords,
		Variables:   s.opts.Variables,
		Intervals:   s.opts.Intervals,
		Days:        s.opts.ForecastDays,
	}

	start := time.Now()
	series, err := s.provider.Forecast(ctx, req)
	s.metrics.ProviderSeconds.WithLabelValues("forecast").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	if len(series) != len(coords) {
		return nil, fmt.Errorf("%w: requested %d, got %d", ErrSeriesMismatch, len(coords), len(series))
	}
	return series, nil
}

// persist saves the current table. Failures are logged and never returned.
func (s *Service) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	data, err := s.table.Snapshot()
	if err == nil {
		err = s.snapshots.Save(ctx, data)
	}
	if err != nil {
		s.metrics.SnapshotErrors.WithLabelValues("save").Inc()
		s.log.ErrorContext(ctx, "Failed to save snapshot", "error", err)
	}
}

// QueryNow returns an immediate reading for coords straight from the provider.
func (s *Service) QueryNow(ctx context.Context, coords Coordinates) (Reading, error) {
	start := time.Now()
	reading, err := s.provider.Current(ctx, coords)
	s.metrics.ProviderSeconds.WithLabelValues("current").Observe(time.Since(start).Seconds())
	if err != nil {
		return Reading{}, fmt.Errorf("current weather: %w", err)
	}
	return reading, nil
}

// QueryResult is a forecast projected onto the requested fields.
type QueryResult struct {
	Label string             `json:"city"`
	Time  time.Time          `json:"time"`
	Data  map[string]float64 `json:"data"`
}

// QueryAt returns the forecast for label that precedes the given time of day
// (HH:MM, today) or now when clock is empty, keeping only the requested fields.
func (s *Service) QueryAt(label, clock string, fields []Field) (QueryResult, error) {
	loc, err := s.table.Get(label)
	if err != nil {
		return QueryResult{}, err
	}

	at, err := s.resolveTime(clock)
	if err != nil {
		return QueryResult{}, err
	}

	forecast, ok := loc.Series().FindPreceding(at)
	if !ok {
		return QueryResult{}, fmt.Errorf("%w: %s at %s", ErrNoData, label, at.Format(time.DateTime))
	}

	if len(fields) == 0 {
		fields = AllFields
	}
	return QueryResult{
		Label: label,
		Time:  forecast.Time,
		Data:  forecast.Data.Project(fields),
	}, nil
}

func (s *Service) resolveTime(clock string) (time.Time, error) {
	now := s.opts.Now().In(s.opts.Location)
	if clock == "" {
		return now, nil
	}
	return ParseClock(clock, now)
}

// ParseClock combines an HH:MM time of day with the calendar date of day.
func ParseClock(clock string, day time.Time) (time.Time, error) {
	tod, err := time.Parse(clockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTime, clock)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, day.Location()), nil
}
