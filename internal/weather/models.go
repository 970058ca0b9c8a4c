package weather

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownField is returned when a field selection names a field we don't track.
var ErrUnknownField = errors.New("unknown weather field")

// Field names a single weather variable of a Sample.
type Field string

const (
	FieldTemperature   Field = "temperature"
	FieldHumidity      Field = "humidity"
	FieldPrecipitation Field = "precipitation"
	FieldPressure      Field = "pressure"
	FieldWindSpeed     Field = "wind_speed"
	FieldWindDirection Field = "wind_direction"
)

// AllFields lists every field in a stable order.
var AllFields = []Field{
	FieldTemperature,
	FieldHumidity,
	FieldPrecipitation,
	FieldPressure,
	FieldWindSpeed,
	FieldWindDirection,
}

// ParseFields converts raw field names into Fields. An empty input selects all fields.
func ParseFields(names []string) ([]Field, error) {
	if len(names) == 0 {
		return AllFields, nil
	}

	fields := make([]Field, 0, len(names))
	seen := make(map[Field]struct{}, len(names))
	for _, name := range names {
		f := Field(strings.ToLower(strings.TrimSpace(name)))
		if !f.valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		fields = append(fields, f)
	}
	return fields, nil
}

func (f Field) valid() bool {
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

// Coordinates is a geographic point. It never changes once attached to a tracked location.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Valid reports whether both components are within their geographic range.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// Sample holds the weather variables of a single moment.
// A nil field means "not requested or not available", never zero.
type Sample struct {
	Temperature   *float64 `json:"temperature,omitempty"`    // °C
	Humidity      *float64 `json:"humidity,omitempty"`       // %
	Precipitation *float64 `json:"precipitation,omitempty"`  // mm
	Pressure      *float64 `json:"pressure,omitempty"`       // hPa
	WindSpeed     *float64 `json:"wind_speed,omitempty"`     // km/h
	WindDirection *float64 `json:"wind_direction,omitempty"` // °
}

func (s *Sample) slot(f Field) **float64 {
	switch f {
	case FieldTemperature:
		return &s.Temperature
	case FieldHumidity:
		return &s.Humidity
	case FieldPrecipitation:
		return &s.Precipitation
	case FieldPressure:
		return &s.Pressure
	case FieldWindSpeed:
		return &s.WindSpeed
	case FieldWindDirection:
		return &s.WindDirection
	default:
		return nil
	}
}

// Get returns the value of f and whether it is present.
func (s Sample) Get(f Field) (float64, bool) {
	p := s.slot(f)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// Set stores v under f. Unknown fields are ignored.
func (s *Sample) Set(f Field, v float64) {
	if p := s.slot(f); p != nil {
		*p = &v
	}
}

// Project returns only the requested fields that are present in the sample.
func (s Sample) Project(fields []Field) map[string]float64 {
	out := make(map[string]float64, len(fields))
	for _, f := range fields {
		if v, ok := s.Get(f); ok {
			out[string(f)] = v
		}
	}
	return out
}

// Forecast is a sample valid from Time onwards.
type Forecast struct {
	Time time.Time `json:"time"`
	Data Sample    `json:"data"`
}

// Reading is an immediate, uncached observation for a point.
type Reading struct {
	Location Coordinates `json:"location"`
	Time     time.Time   `json:"time"`
	Sample
}

// TrackedLocation binds a unique label to fixed coordinates and their forecast series.
type TrackedLocation struct {
	label  string
	coords Coordinates
	series *Series
}

// NewTrackedLocation creates a location with an empty series.
func NewTrackedLocation(label string, coords Coordinates) *TrackedLocation {
	return &TrackedLocation{
		label:  label,
		coords: coords,
		series: &Series{},
	}
}

func (l *TrackedLocation) Label() string            { return l.label }
func (l *TrackedLocation) Coordinates() Coordinates { return l.coords }
func (l *TrackedLocation) Series() *Series          { return l.series }
