package anomaly

import (
	"strings"
	"time"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
)

// Table encodes anomaly records as the anomalies snapshot.
func Table(records []Record) *dataset.Table {
	n := len(records)
	keys := make([]string, n)
	states := make([]string, n)
	districts := make([]string, n)
	dates := make([]time.Time, n)
	values := make([]float64, n)
	means := make([]float64, n)
	stds := make([]float64, n)
	zs := make([]float64, n)
	flags := make([]bool, n)
	types := make([]string, n)
	severities := make([]string, n)
	for i, r := range records {
		keys[i] = string(r.Key)
		states[i] = r.State
		districts[i] = r.District
		dates[i] = r.Date
		values[i] = r.Value
		means[i] = r.RollingMean
		stds[i] = r.RollingStd
		zs[i] = r.ZScore
		flags[i] = r.IsAnomaly
		types[i] = string(r.Type)
		severities[i] = string(r.Severity)
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("state", states, nil),
		dataset.NewStringCol("district", districts, nil),
		dataset.NewTimeCol("date", dates, nil),
		dataset.NewFloatCol("mvi", values, nil),
		dataset.NewFloatCol("rolling_mean", means, nil),
		dataset.NewFloatCol("rolling_std", stds, nil),
		dataset.NewFloatCol("z_score", zs, nil),
		dataset.NewBoolCol("is_anomaly", flags, nil),
		dataset.NewStringCol("anomaly_type", types, nil),
		dataset.NewStringCol("severity", severities, nil),
	)
	return t
}

// FromTable decodes an anomalies snapshot back into records.
func FromTable(t *dataset.Table) []Record {
	if t == nil {
		return nil
	}
	col := func(name string) *dataset.Column {
		c, _ := t.Col(name)
		return c
	}
	keyCol, stateCol, districtCol := col("geo_key"), col("state"), col("district")
	dateCol, valueCol := col("date"), col("mvi")
	meanCol, stdCol, zCol := col("rolling_mean"), col("rolling_std"), col("z_score")
	flagCol, typeCol, severityCol := col("is_anomaly"), col("anomaly_type"), col("severity")

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
		r := Record{
			Key:         domain.GeoKey(str(keyCol, i)),
			State:       str(stateCol, i),
			District:    str(districtCol, i),
			Value:       float(valueCol, i),
			RollingMean: float(meanCol, i),
			RollingStd:  float(stdCol, i),
			ZScore:      float(zCol, i),
			Type:        domain.AnomalyType(str(typeCol, i)),
			Severity:    domain.Severity(str(severityCol, i)),
		}
		if dateCol != nil {
			r.Date, _ = dateCol.TimeAt(i)
		}
		if flagCol != nil {
			r.IsAnomaly, _ = flagCol.BoolAt(i)
		}
		out = append(out, r)
	}
	return out
}
