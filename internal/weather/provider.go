package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var errBadIntervals = errors.New("coarse interval must be a positive multiple of the fine interval")

// Intervals are the two sampling granularities a forecast is delivered in.
type Intervals struct {
	Fine   time.Duration
	Coarse time.Duration
}

// ratio is the number of fine steps covered by one coarse step.
func (iv Intervals) ratio() (int, error) {
	if iv.Fine <= 0 || iv.Coarse < iv.Fine || iv.Coarse%iv.Fine != 0 {
		return 0, fmt.Errorf("%w: fine=%s coarse=%s", errBadIntervals, iv.Fine, iv.Coarse)
	}
	return int(iv.Coarse / iv.Fine), nil
}

// Variables selects which fields are requested at which granularity.
type Variables struct {
	Fine   []Field
	Coarse []Field
}

// DefaultVariables requests pressure hourly and everything else every fine step.
var DefaultVariables = Variables{
	Fine: []Field{
		FieldTemperature,
		FieldHumidity,
		FieldPrecipitation,
		FieldWindSpeed,
		FieldWindDirection,
	},
	Coarse: []Field{FieldPressure},
}

// ForecastRequest is one batched provider call. Results are positional:
// the i-th series belongs to Coordinates[i].
type ForecastRequest struct {
	Coordinates []Coordinates
	Variables   Variables
	Intervals   Intervals
	Days        int
}

// RawSeries is a provider's per-location output before alignment.
// Fine values are indexed by fine step from Start; Coarse values by coarse step.
// A nil value means the provider had no data for that step.
type RawSeries struct {
	Start     time.Time
	Intervals Intervals
	// Steps is the number of fine steps; zero means the longest Fine array.
	Steps  int
	Fine   map[Field][]*float64
	Coarse map[Field][]*float64
}

// Forecasts expands the raw series into one Forecast per fine step,
// broadcasting each coarse value over the fine steps it covers.
func (r RawSeries) Forecasts() ([]Forecast, error) {
	ratio, err := r.Intervals.ratio()
	if err != nil {
		return nil, err
	}

	steps := r.Steps
	if steps == 0 {
		for _, vals := range r.Fine {
			steps = max(steps, len(vals))
		}
	}

	out := make([]Forecast, steps)
	for i := range out {
		out[i].Time = r.Start.Add(time.Duration(i) * r.Intervals.Fine)
		for f, vals := range r.Fine {
			if i < len(vals) && vals[i] != nil {
				out[i].Data.Set(f, *vals[i])
			}
		}
		j := i / ratio
		for f, vals := range r.Coarse {
			if j < len(vals) && vals[j] != nil {
				out[i].Data.Set(f, *vals[j])
			}
		}
	}
	return out, nil
}

// Provider abstracts the upstream weather source.
type Provider interface {
	Name() string
	Current(ctx context.Context, loc Coordinates) (Reading, error)
	Forecast(ctx context.Context, req ForecastRequest) ([]RawSeries, error)
}

// Tracker is the contract of the tracked-location table.
type Tracker interface {
	Add(label string, coords Coordinates) (*TrackedLocation, error)
	Get(label string) (*TrackedLocation, error)
	Remove(label string) error
	List() []string
	Locations() []*TrackedLocation
	Len() int
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// SnapshotStore persists serialized tracker snapshots.
// LoadLatest returns nil data and a nil error when nothing was saved yet.
type SnapshotStore interface {
	Save(ctx context.Context, data []byte) error
	LoadLatest(ctx context.Context) ([]byte, error)
}
