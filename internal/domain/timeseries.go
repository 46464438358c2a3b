package domain

import (
	"sort"
	"time"
)

// TimePoint is one region-day observation on the update timeseries. Updates
// is the day's summed update count and DailyMVI the population-scaled rate
// the downstream engines operate on.
type TimePoint struct {
	Key      GeoKey
	State    string
	District string
	Date     time.Time
	Updates  float64
	DailyMVI float64
}

// Timeseries is a set of TimePoints, canonically sorted by key then date.
type Timeseries []TimePoint

// Sort orders the series by geographic key, then date ascending.
func (ts Timeseries) Sort() {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Key != ts[j].Key {
			return ts[i].Key < ts[j].Key
		}
		return ts[i].Date.Before(ts[j].Date)
	})
}

// ByKey splits the series per region, each sub-series date-ascending. Keys
// returns in sorted order via Keys.
func (ts Timeseries) ByKey() map[GeoKey]Timeseries {
	out := make(map[GeoKey]Timeseries)
	for _, p := range ts {
		out[p.Key] = append(out[p.Key], p)
	}
	for _, sub := range out {
		sort.Slice(sub, func(i, j int) bool { return sub[i].Date.Before(sub[j].Date) })
	}
	return out
}

// Keys returns the distinct region keys in sorted order.
func (ts Timeseries) Keys() []GeoKey {
	seen := make(map[GeoKey]struct{})
	var keys []GeoKey
	for _, p := range ts {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		keys = append(keys, p.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
