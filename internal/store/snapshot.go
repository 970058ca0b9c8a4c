package store

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/i474232898/forecast-tracker/internal/weather"
)

var (
	// ErrInvalidSnapshot is returned when a persisted snapshot cannot be decoded.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	validate = validator.New()
)

// Persisted snapshot layout:
//
//	{"<label>": {"coordinates": {...}, "forecasts": [{"time": "...", "data": {...}}]}, ...}
//
// Keys keep insertion order on both write and read.
type snapshotLocation struct {
	Coordinates *snapshotCoordinates `json:"coordinates" validate:"required"`
	Forecasts   []snapshotForecast   `json:"forecasts" validate:"dive"`
}

type snapshotCoordinates struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type snapshotForecast struct {
	Time *time.Time      `json:"time" validate:"required"`
	Data *weather.Sample `json:"data" validate:"required"`
}

func encodeSnapshot(locs []*weather.TrackedLocation) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, loc := range locs {
		key, err := json.Marshal(loc.Label())
		if err != nil {
			return nil, fmt.Errorf("encode label %q: %w", loc.Label(), err)
		}

		coords := loc.Coordinates()
		forecasts := loc.Series().Forecasts()
		rec := snapshotLocation{
			Coordinates: &snapshotCoordinates{
				Latitude:  &coords.Latitude,
				Longitude: &coords.Longitude,
			},
			Forecasts: make([]snapshotForecast, len(forecasts)),
		}
		for j := range forecasts {
			rec.Forecasts[j] = snapshotForecast{
				Time: &forecasts[j].Time,
				Data: &forecasts[j].Data,
			}
		}

		val, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode location %q: %w", loc.Label(), err)
		}

		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) ([]*weather.TrackedLocation, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var (
		locs []*weather.TrackedLocation
		seen = make(map[string]struct{})
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		label, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected label, got %v", ErrInvalidSnapshot, tok)
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidSnapshot, label)
		}
		seen[label] = struct{}{}

		var rec snapshotLocation
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("%w: location %q: %v", ErrInvalidSnapshot, label, err)
		}
		loc, err := rec.toTrackedLocation(label)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return locs, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrInvalidSnapshot, want, tok)
	}
	return nil
}

func (r snapshotLocation) toTrackedLocation(label string) (*weather.TrackedLocation, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: empty label", ErrInvalidSnapshot)
	}
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: location %q: %v", ErrInvalidSnapshot, label, err)
	}

	forecasts := make([]weather.Forecast, len(r.Forecasts))
	for i, f := range r.Forecasts {
		if i > 0 && f.Time.Before(*r.Forecasts[i-1].Time) {
			return nil, fmt.Errorf("%w: location %q: forecasts out of order at %d", ErrInvalidSnapshot, label, i)
		}
		forecasts[i] = weather.Forecast{Time: *f.Time, Data: *f.Data}
	}

	loc := weather.NewTrackedLocation(label, weather.Coordinates{
		Latitude:  *r.Coordinates.Latitude,
		Longitude: *r.Coordinates.Longitude,
	})
	loc.Series().Replace(forecasts)
	return loc, nil
}
