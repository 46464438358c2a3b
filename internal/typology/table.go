package typology

import (
	"strings"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
)

// Table encodes typology records as the trend_typology snapshot.
func Table(records []Record) *dataset.Table {
	n := len(records)
	keys := make([]string, n)
	states := make([]string, n)
	districts := make([]string, n)
	values := make([]float64, n)
	zones := make([]string, n)
	confidences := make([]string, n)
	slopes := make([]float64, n)
	variances := make([]float64, n)
	accels := make([]float64, n)
	trends := make([]string, n)
	explanations := make([]string, n)
	for i, r := range records {
		keys[i] = string(r.Key)
		states[i] = r.State
		districts[i] = r.District
		values[i] = r.MVI
		zones[i] = string(r.ZoneType)
		confidences[i] = string(r.Confidence)
		slopes[i] = r.Slope
		variances[i] = r.Variance
		accels[i] = r.Acceleration
		trends[i] = string(r.TrendType)
		explanations[i] = r.Explanation
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("state", states, nil),
		dataset.NewStringCol("district", districts, nil),
		dataset.NewFloatCol("mvi", values, nil),
		dataset.NewStringCol("zone_type", zones, nil),
		dataset.NewStringCol("confidence", confidences, nil),
		dataset.NewFloatCol("slope", slopes, nil),
		dataset.NewFloatCol("variance", variances, nil),
		dataset.NewFloatCol("acceleration", accels, nil),
		dataset.NewStringCol("trend_type", trends, nil),
		dataset.NewStringCol("explanation", explanations, nil),
	)
	return t
}

// FromTable decodes a trend_typology snapshot back into records.
func FromTable(t *dataset.Table) []Record {
	if t == nil {
		return nil
	}
	col := func(name string) *dataset.Column {
		c, _ := t.Col(name)
		return c
	}
	keyCol, stateCol, districtCol := col("geo_key"), col("state"), col("district")
	mviCol, zoneCol, confCol := col("mvi"), col("zone_type"), col("confidence")
	slopeCol, varCol, accelCol := col("slope"), col("variance"), col("acceleration")
	trendCol, explCol := col("trend_type"), col("explanation")

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
		return s
	}

	out := make([]Record, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		out = append(out, Record{
			Key:          domain.GeoKey(strings.TrimSpace(str(keyCol, i))),
			State:        str(stateCol, i),
			District:     str(districtCol, i),
			MVI:          float(mviCol, i),
			ZoneType:     domain.ZoneType(str(zoneCol, i)),
			Confidence:   domain.Confidence(str(confCol, i)),
			Slope:        float(slopeCol, i),
			Variance:     float(varCol, i),
			Acceleration: float(accelCol, i),
			TrendType:    domain.TrendType(str(trendCol, i)),
			Explanation:  str(explCol, i),
		})
	}
	return out
}
