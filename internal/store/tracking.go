package store

import (
	"errors"
	"sync"

	"github.com/i474232898/forecast-tracker/internal/weather"
)

var (
	// ErrNotFound is returned when a label is not tracked.
	ErrNotFound = errors.New("location is not tracked")
	// ErrAlreadyExists is returned when a label is tracked already.
	ErrAlreadyExists = errors.New("location is already tracked")
)

var _ weather.Tracker = (*TrackingTable)(nil)

// TrackingTable is a concurrency-safe map of labels to tracked locations
// that remembers insertion order.
type TrackingTable struct {
	mu sync.RWMutex

	// key: label
	locations map[string]*weather.TrackedLocation
	order     []string
}

// NewTrackingTable creates an empty TrackingTable.
func NewTrackingTable() *TrackingTable {
	return &TrackingTable{
		locations: make(map[string]*weather.TrackedLocation),
	}
}

// Add tracks label at coords with an empty series.
// An existing label is left untouched and ErrAlreadyExists is returned.
func (t *TrackingTable) Add(label string, coords weather.Coordinates) (*weather.TrackedLocation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.locations[label]; ok {
		return nil, ErrAlreadyExists
	}

	loc := weather.NewTrackedLocation(label, coords)
	t.locations[label] = loc
	t.order = append(t.order, label)
	return loc, nil
}

// Get returns the tracked location for label.
func (t *TrackingTable) Get(label string) (*weather.TrackedLocation, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	loc, ok := t.locations[label]
	if !ok {
		return nil, ErrNotFound
	}
	return loc, nil
}

// Remove stops tracking label.
func (t *TrackingTable) Remove(label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.locations[label]; !ok {
		return ErrNotFound
	}
	delete(t.locations, label)
	for i, l := range t.order {
		if l == label {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns the tracked labels in insertion order.
func (t *TrackingTable) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Locations returns a point-in-time copy of all tracked locations in insertion order.
func (t *TrackingTable) Locations() []*weather.TrackedLocation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*weather.TrackedLocation, 0, len(t.order))
	for _, label := range t.order {
		out = append(out, t.locations[label])
	}
	return out
}

// Len returns the number of tracked locations.
func (t *TrackingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Snapshot serializes the table.
func (t *TrackingTable) Snapshot() ([]byte, error) {
	return encodeSnapshot(t.Locations())
}

// Restore replaces the table contents with a decoded snapshot.
// The table is left unchanged if data cannot be decoded.
func (t *TrackingTable) Restore(data []byte) error {
	locs, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	locations := make(map[string]*weather.TrackedLocation, len(locs))
	order := make([]string, 0, len(locs))
	for _, loc := range locs {
		locations[loc.Label()] = loc
		order = append(order, loc.Label())
	}

	t.mu.Lock()
	t.locations = locations
	t.order = order
	t.mu.Unlock()
	return nil
}
