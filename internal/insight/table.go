package insight

import (
	"strings"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
)

// Table encodes briefings as the decision_insights snapshot.
func Table(records []Record) *dataset.Table {
	n := len(records)
	keys := make([]string, n)
	summaries := make([]string, n)
	findings := make([]string, n)
	actions := make([]string, n)
	confidences := make([]string, n)
	for i, r := range records {
		keys[i] = string(r.Key)
		summaries[i] = r.Summary
		findings[i] = r.KeyFindings
		actions[i] = r.RecommendedAction
		confidences[i] = r.ConfidenceStatement
	}
	t, _ := dataset.New(
		dataset.NewStringCol("geo_key", keys, nil),
		dataset.NewStringCol("summary", summaries, nil),
		dataset.NewStringCol("key_findings", findings, nil),
		dataset.NewStringCol("recommended_action", actions, nil),
		dataset.NewStringCol("confidence_statement", confidences, nil),
	)
	return t
}

// FromTable decodes a decision_insights snapshot back into records.
func FromTable(t *dataset.Table) []Record {
	if t == nil {
		return nil
	}
	col := func(name string) *dataset.Column {
		c, _ := t.Col(name)
		return c
	}
	keyCol, summaryCol := col("geo_key"), col("summary")
	findingsCol, actionCol, confCol := col("key_findings"), col("recommended_action"), col("confidence_statement")

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
			Key:                 domain.GeoKey(str(keyCol, i)),
			Summary:             str(summaryCol, i),
			KeyFindings:         str(findingsCol, i),
			RecommendedAction:   str(actionCol, i),
			ConfidenceStatement: str(confCol, i),
		})
	}
	return out
}
