package policy

import (
	"strings"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
)

// Table encodes recommendations as the policy_recommendations snapshot.
func Table(records []Recommendation) *dataset.Table {
	n := len(records)
	keys := make([]string, n)
	states := make([]string, n)
	districts := make([]string, n)
	values := make([]float64, n)
	zones := make([]string, n)
	trends := make([]string, n)
	priorities := make([]string, n)
	actionTypes := make([]string, n)
	actions := make([]string, n)
	reasons := make([]string, n)
	for i, r := range records {
		keys[i] = string(r.Key)
		states[i] = r.State
		districts[i] = r.District
		values[i] = r.MVI
		zones[i] = string(r.ZoneType)
		trends[i] = string(r.TrendType)
		priorities[i] = string(r.Priority)
		actionTypes[i] = r.ActionType
		actions[i] = r.PrimaryAction
		reasons[i] = r.Reasoning
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("state", states, nil),
		dataset.NewStringCol("district", districts, nil),
		dataset.NewFloatCol("mvi", values, nil),
		dataset.NewStringCol("zone_type", zones, nil),
		dataset.NewStringCol("trend_type", trends, nil),
		dataset.NewStringCol("priority", priorities, nil),
		dataset.NewStringCol("action_type", actionTypes, nil),
		dataset.NewStringCol("primary_action", actions, nil),
		dataset.NewStringCol("reasoning", reasons, nil),
	)
	return t
}

// FromTable decodes a policy_recommendations snapshot back into records.
func FromTable(t *dataset.Table) []Recommendation {
	if t == nil {
		return nil
	}
	col := func(name string) *dataset.Column {
		c, _ := t.Col(name)
		return c
	}
	keyCol, stateCol, districtCol := col("geo_key"), col("state"), col("district")
	mviCol, zoneCol, trendCol := col("mvi"), col("zone_type"), col("trend_type")
	priorityCol, actionTypeCol := col("priority"), col("action_type")
	actionCol, reasonCol := col("primary_action"), col("reasoning")

	str := func(c *dataset.Column, i int) string {
		if c == nil {
			return ""
		}
		s, _ := c.StringAt(i)
		return strings.TrimSpace(s)
	}

	out := make([]Recommendation, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		r := Recommendation{
			Key:           domain.GeoKey(str(keyCol, i)),
			State:         str(stateCol, i),
			District:      str(districtCol, i),
			ZoneType:      domain.ZoneType(str(zoneCol, i)),
			TrendType:     domain.TrendType(str(trendCol, i)),
			Priority:      domain.Priority(str(priorityCol, i)),
			ActionType:    str(actionTypeCol, i),
			PrimaryAction: str(actionCol, i),
			Reasoning:     str(reasonCol, i),
		}
		if mviCol != nil {
			r.MVI, _ = mviCol.AsFloat(i)
		}
		out = append(out, r)
	}
	return out
}
