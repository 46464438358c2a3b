package accel

import (
	"strings"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
)

// Table encodes acceleration records as the acceleration snapshot.
func Table(records []Record) *dataset.Table {
	n := len(records)
	keys := make([]string, n)
	states := make([]string, n)
	districts := make([]string, n)
	recents := make([]float64, n)
	historicals := make([]float64, n)
	accels := make([]float64, n)
	statuses := make([]string, n)
	for i, r := range records {
		keys[i] = string(r.Key)
		states[i] = r.State
		districts[i] = r.District
		recents[i] = r.RecentSlope
		historicals[i] = r.HistoricalSlope
		accels[i] = r.Acceleration
		statuses[i] = string(r.Status)
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("state", states, nil),
		dataset.NewStringCol("district", districts, nil),
		dataset.NewFloatCol("recent_slope", recents, nil),
		dataset.NewFloatCol("historical_slope", historicals, nil),
		dataset.NewFloatCol("acceleration", accels, nil),
		dataset.NewStringCol("acceleration_status", statuses, nil),
	)
	return t
}

// FromTable decodes an acceleration snapshot back into records.
func FromTable(t *dataset.Table) []Record {
	if t == nil {
		return nil
	}
	col := func(name string) *dataset.Column {
		c, _ := t.Col(name)
		return c
	}
	keyCol, stateCol, districtCol := col("geo_key"), col("state"), col("district")
	recentCol, historicalCol := col("recent_slope"), col("historical_slope")
	accelCol, statusCol := col("acceleration"), col("acceleration_status")

	float := func(c *dataset.Column, i int) float64 {
		if c == nil {
			return 0
		}
		v, _ := c.AsFloat(i)
		return v
	}
	str := func(c *dataset.Column, i int) string {
		if c == nil {
			return ""
		}
		s, _ := c.StringAt(i)
		return strings.TrimSpace(s)
	}

	out := make([]Record, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, Record{
			Key:             domain.GeoKey(str(keyCol, i)),
			State:           str(stateCol, i),
			District:        str(districtCol, i),
			RecentSlope:     float(recentCol, i),
			HistoricalSlope: float(historicalCol, i),
			Acceleration:    float(accelCol, i),
			Status:          domain.AccelerationStatus(str(statusCol, i)),
		})
	}
	return out
}
