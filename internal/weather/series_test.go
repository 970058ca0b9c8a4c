package weather

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func ptr(v float64) *float64 { return &v }

func forecastsAt(times ...time.Time) []Forecast {
	out := make([]Forecast, len(times))
	for i, t := range times {
		out[i] = Forecast{Time: t, Data: Sample{Temperature: ptr(float64(i))}}
	}
	return out
}

func TestSeries_FindPreceding(t *testing.T) {
	var s Series
	s.Replace(forecastsAt(at(0, 0), at(0, 15), at(0, 30)))

	tests := []struct {
		name   string
		query  time.Time
		want   time.Time
		wantOK bool
	}{
		{"between entries", at(0, 20), at(0, 15), true},
		{"exact match", at(0, 15), at(0, 15), true},
		{"first entry", at(0, 0), at(0, 0), true},
		{"after last", at(23, 59), at(0, 30), true},
		{"before first", day.Add(-time.Minute), time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.FindPreceding(tt.query)

			require.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got.Time), "want %s, got %s", tt.want, got.Time)
		})
	}
}

func TestSeries_FindPreceding_AllAfter(t *testing.T) {
	var s Series
	s.Replace(forecastsAt(at(12, 0), at(12, 15), at(13, 0)))

	_, ok := s.FindPreceding(at(6, 0))

	assert.False(t, ok)
}

func TestSeries_FindPreceding_Empty(t *testing.T) {
	var s Series

	_, ok := s.FindPreceding(at(6, 0))
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	s.Replace(nil)
	_, ok = s.FindPreceding(at(6, 0))
	assert.False(t, ok)
}

func TestSeries_FindPreceding_DuplicateTimesReturnsRightmost(t *testing.T) {
	var s Series
	s.Replace(forecastsAt(at(0, 0), at(0, 15), at(0, 15), at(0, 30)))

	got, ok := s.FindPreceding(at(0, 15))

	require.True(t, ok)
	v, _ := got.Data.Get(FieldTemperature)
	assert.Equal(t, 2.0, v)
}

func TestSeries_FindPreceding_MatchesLinearScan(t *testing.T) {
	var times []time.Time
	for i := 0; i < 96; i++ {
		times = append(times, day.Add(time.Duration(i)*15*time.Minute))
	}
	var s Series
	s.Replace(forecastsAt(times...))

	for q := day.Add(-time.Hour); q.Before(day.Add(25 * time.Hour)); q = q.Add(7 * time.Minute) {
		wantIdx := -1
		for i, ts := range times {
			if !ts.After(q) {
				wantIdx = i
			}
		}

		got, ok := s.FindPreceding(q)
		if wantIdx < 0 {
			assert.False(t, ok, "query %s", q)
			continue
		}
		require.True(t, ok, "query %s", q)
		assert.True(t, times[wantIdx].Equal(got.Time), "query %s", q)
	}
}

func TestSeries_ReplaceCopiesInput(t *testing.T) {
	in := forecastsAt(at(0, 0), at(0, 15))
	var s Series
	s.Replace(in)

	in[0].Time = at(9, 0)
	out := s.Forecasts()
	out[1].Time = at(9, 0)

	got := s.Forecasts()
	assert.True(t, at(0, 0).Equal(got[0].Time))
	assert.True(t, at(0, 15).Equal(got[1].Time))
}

func TestSeries_ConcurrentReplaceAndFind(t *testing.T) {
	old := forecastsAt(at(0, 0), at(1, 0))
	next := forecastsAt(at(0, 0), at(0, 30), at(1, 0), at(1, 30))

	var s Series
	s.Replace(old)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if i%2 == 0 {
					s.Replace(next)
				} else {
					s.Replace(old)
				}
			}
		}()
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				n := s.Len()
				assert.Contains(t, []int{2, 4}, n)
				_, ok := s.FindPreceding(at(0, 45))
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
}
