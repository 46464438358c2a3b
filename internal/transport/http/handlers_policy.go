package httptransport

import (
	"encoding/json"
	"net/http"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
	"fluxmap/internal/insight"
	"fluxmap/internal/pipeline"
	"fluxmap/internal/policy"
	dErrors "fluxmap/pkg/domainerrors"
	"fluxmap/pkg/httputil"
)

// recommendationBody is the wire shape of one policy recommendation.
type recommendationBody struct {
	GeoKey        domain.GeoKey    `json:"geo_key"`
	State         string           `json:"state"`
	District      string           `json:"district"`
	MVI           float64          `json:"mvi"`
	ZoneType      domain.ZoneType  `json:"zone_type"`
	TrendType     domain.TrendType `json:"trend_type"`
	Priority      domain.Priority  `json:"priority"`
	ActionType    string           `json:"action_type"`
	PrimaryAction string           `json:"primary_action"`
	Reasoning     string           `json:"reasoning"`
}

func (h *Handlers) handlePolicyRecommendations(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Store.Load(r.Context(), dataset.SnapshotPolicy)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	records := policy.FromTable(t)

	q := r.URL.Query()
	priority := q.Get("priority")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if limit > 0 {
		records = policy.Top(records, limit)
	}

	out := make([]recommendationBody, 0, len(records))
	for _, rec := range records {
		if priority != "" && string(rec.Priority) != priority {
			continue
		}
		out = append(out, recommendationBody{
			GeoKey:        rec.Key,
			State:         rec.State,
			District:      rec.District,
			MVI:           rec.MVI,
			ZoneType:      rec.ZoneType,
			TrendType:     rec.TrendType,
			Priority:      rec.Priority,
			ActionType:    rec.ActionType,
			PrimaryAction: rec.PrimaryAction,
			Reasoning:     rec.Reasoning,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":           len(out),
		"recommendations": out,
		"summary":         policy.Summarize(records),
	})
}

func (h *Handlers) handlePolicySimulate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GeoKey       domain.GeoKey `json:"geo_key"`
		State        string        `json:"state"`
		District     string        `json:"district"`
		PolicyType   string        `json:"action_type"`
		InvestmentCr float64       `json:"investment_cr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid JSON body", err))
		return
	}
	key := req.GeoKey
	if key == "" {
		key = domain.NewGeoKey(req.State, req.District)
	}
	if key == "_" || key == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "geo_key or state and district required"))
		return
	}

	records, err := h.loadMVI(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	result, err := policy.Simulate(records, key, req.InvestmentCr, req.PolicyType)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// insightBody is the wire shape of one region's briefing.
type insightBody struct {
	GeoKey              domain.GeoKey `json:"geo_key"`
	Summary             string        `json:"summary"`
	KeyFindings         string        `json:"key_findings"`
	RecommendedAction   string        `json:"recommended_action"`
	ConfidenceStatement string        `json:"confidence_statement"`
}

func (h *Handlers) handleInsightZones(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Store.Load(r.Context(), dataset.SnapshotInsights)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	records := insight.FromTable(t)

	if geo := domain.GeoKey(r.URL.Query().Get("geo")); geo != "" {
		rec, ok := insight.Regional(records, geo)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no insight for region"))
			return
		}
		records = []insight.Record{rec}
	}

	out := make([]insightBody, 0, len(records))
	for _, rec := range records {
		out = append(out, insightBody{
			GeoKey:              rec.Key,
			Summary:             rec.Summary,
			KeyFindings:         rec.KeyFindings,
			RecommendedAction:   rec.RecommendedAction,
			ConfidenceStatement: rec.ConfidenceStatement,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"insights": out,
	})
}

func (h *Handlers) handleInsightExecutive(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadMVI(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.insight.Executive(records))
}

func (h *Handlers) handleTrustLineage(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"pipeline_version": pipeline.Version,
		"stages":           pipeline.Lineage(),
	})
}

func (h *Handlers) handleTrustQuality(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.deps.Orchestrator.Status(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pipeline.Quality(manifest))
}
