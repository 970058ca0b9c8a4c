package weather

import (
	"sort"
	"sync/atomic"
	"time"
)

// Series is the time-ordered forecast sequence of one location.
//
// The backing slice is never modified after it is published: Replace builds a
// new slice and swaps the pointer, so concurrent readers see either the old or
// the new sequence in full.
type Series struct {
	forecasts atomic.Pointer[[]Forecast]
}

// Replace swaps the whole series. The input must be sorted ascending by Time.
func (s *Series) Replace(forecasts []Forecast) {
	next := make([]Forecast, len(forecasts))
	copy(next, forecasts)
	s.forecasts.Store(&next)
}

func (s *Series) load() []Forecast {
	if p := s.forecasts.Load(); p != nil {
		return *p
	}
	return nil
}

// Len returns the number of forecasts currently held.
func (s *Series) Len() int {
	return len(s.load())
}

// Forecasts returns a copy of the current sequence.
func (s *Series) Forecasts() []Forecast {
	cur := s.load()
	out := make([]Forecast, len(cur))
	copy(out, cur)
	return out
}

// FindPreceding returns the forecast with the greatest Time not after t.
// Among entries sharing that Time the rightmost one wins.
func (s *Series) FindPreceding(t time.Time) (Forecast, bool) {
	cur := s.load()
	i := sort.Search(len(cur), func(i int) bool {
		return cur[i].Time.After(t)
	})
	if i == 0 {
		return Forecast{}, false
	}
	return cur[i-1], true
}
