package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fluxmap/internal/accel"
	"fluxmap/internal/anomaly"
	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
	"fluxmap/internal/mvi"
	"fluxmap/internal/seasonal"
	"fluxmap/internal/spatial"
	"fluxmap/internal/typology"
	dErrors "fluxmap/pkg/domainerrors"
	"fluxmap/pkg/httputil"
)

// mviRecordBody is the wire shape of one MVI analytics row.
type mviRecordBody struct {
	GeoKey         domain.GeoKey     `json:"geo_key"`
	State          string            `json:"state"`
	District       string            `json:"district"`
	MVI            float64           `json:"mvi"`
	ZoneType       domain.ZoneType   `json:"zone_type"`
	Confidence     domain.Confidence `json:"confidence"`
	PopulationBase float64           `json:"population_base"`
	OrganicSignal  float64           `json:"organic_signal"`
	RawUpdates     float64           `json:"raw_updates"`
	NoiseRatio     float64           `json:"noise_ratio"`
}

func toMVIBody(r mvi.Record) mviRecordBody {
	return mviRecordBody{
		GeoKey:         r.Key,
		State:          r.State,
		District:       r.District,
		MVI:            r.MVI,
		ZoneType:       r.ZoneType,
		Confidence:     r.Confidence,
		PopulationBase: r.PopulationBase,
		OrganicSignal:  r.OrganicSignal,
		RawUpdates:     r.RawUpdates,
		NoiseRatio:     r.NoiseRatio,
	}
}

// loadMVI reads the last run's MVI snapshot.
func (h *Handlers) loadMVI(ctx context.Context) ([]mvi.Record, error) {
	t, err := h.deps.Store.Load(ctx, dataset.SnapshotMVI)
	if err != nil {
		return nil, err
	}
	return mvi.FromTable(t), nil
}

// loadTimeseries reads the last run's daily MVI series.
func (h *Handlers) loadTimeseries(ctx context.Context) (domain.Timeseries, error) {
	t, err := h.deps.Store.Load(ctx, dataset.SnapshotTimeseries)
	if err != nil {
		return nil, err
	}
	return mvi.TimeseriesFromTable(t), nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" must be a non-negative integer")
	}
	return v, nil
}

func (h *Handlers) handleMVI(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadMVI(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}

	q := r.URL.Query()
	zone := q.Get("zone")
	state := strings.ToLower(strings.TrimSpace(q.Get("state")))
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]mviRecordBody, 0, len(records))
	for _, rec := range records {
		if zone != "" && string(rec.ZoneType) != zone {
			continue
		}
		if state != "" && strings.ToLower(rec.State) != state {
			continue
		}
		out = append(out, toMVIBody(rec))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"records": out,
	})
}

func (h *Handlers) handleMVISummary(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadMVI(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mvi.Summarize(records))
}

func (h *Handlers) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	ts, err := h.loadTimeseries(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}

	geo := domain.GeoKey(r.URL.Query().Get("geo"))
	days, err := queryInt(r, "days", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var cutoff time.Time
	if days > 0 && len(ts) > 0 {
		anchor := ts[0].Date
		for _, p := range ts {
			if p.Date.After(anchor) {
				anchor = p.Date
			}
		}
		cutoff = anchor.AddDate(0, 0, -days)
	}

	type pointBody struct {
		GeoKey   domain.GeoKey `json:"geo_key"`
		State    string        `json:"state"`
		District string        `json:"district"`
		Date     string        `json:"date"`
		Updates  float64       `json:"updates"`
		DailyMVI float64       `json:"daily_mvi"`
	}
	out := make([]pointBody, 0, len(ts))
	for _, p := range ts {
		if geo != "" && p.Key != geo {
			continue
		}
		if !cutoff.IsZero() && !p.Date.After(cutoff) {
			continue
		}
		out = append(out, pointBody{
			GeoKey:   p.Key,
			State:    p.State,
			District: p.District,
			Date:     p.Date.Format("2006-01-02"),
			Updates:  p.Updates,
			DailyMVI: p.DailyMVI,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":  len(out),
		"points": out,
	})
}

func (h *Handlers) loadAnomalies(ctx context.Context) ([]anomaly.Record, error) {
	t, err := h.deps.Store.Load(ctx, dataset.SnapshotAnomalies)
	if err != nil {
		return nil, err
	}
	return anomaly.FromTable(t), nil
}

func (h *Handlers) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadAnomalies(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}

	q := r.URL.Query()
	severity := q.Get("severity")
	geo := domain.GeoKey(q.Get("geo"))

	type anomalyBody struct {
		GeoKey      domain.GeoKey      `json:"geo_key"`
		State       string             `json:"state"`
		District    string             `json:"district"`
		Date        string             `json:"date"`
		Value       float64            `json:"value"`
		RollingMean float64            `json:"rolling_mean"`
		RollingStd  float64            `json:"rolling_std"`
		ZScore      float64            `json:"z_score"`
		Type        domain.AnomalyType `json:"type"`
		Severity    domain.Severity    `json:"severity"`
	}
	out := make([]anomalyBody, 0, len(records))
	for _, rec := range records {
		if !rec.IsAnomaly {
			continue
		}
		if severity != "" && string(rec.Severity) != severity {
			continue
		}
		if geo != "" && rec.Key != geo {
			continue
		}
		out = append(out, anomalyBody{
			GeoKey:      rec.Key,
			State:       rec.State,
			District:    rec.District,
			Date:        rec.Date.Format("2006-01-02"),
			Value:       rec.Value,
			RollingMean: rec.RollingMean,
			RollingStd:  rec.RollingStd,
			ZScore:      rec.ZScore,
			Type:        rec.Type,
			Severity:    rec.Severity,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":     len(out),
		"anomalies": out,
	})
}

func (h *Handlers) handleAlerts(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadAnomalies(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	alerts := anomaly.GenerateAlerts(records)
	httputil.WriteJSON(w, http.StatusOK, anomaly.SummarizeAlerts(alerts))
}

func (h *Handlers) handleTypology(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Store.Load(r.Context(), dataset.SnapshotTypology)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	records := typology.FromTable(t)

	type typologyBody struct {
		GeoKey       domain.GeoKey     `json:"geo_key"`
		State        string            `json:"state"`
		District     string            `json:"district"`
		MVI          float64           `json:"mvi"`
		ZoneType     domain.ZoneType   `json:"zone_type"`
		Confidence   domain.Confidence `json:"confidence"`
		Slope        float64           `json:"slope"`
		Variance     float64           `json:"variance"`
		Acceleration float64           `json:"acceleration"`
		TrendType    domain.TrendType  `json:"trend_type"`
		Explanation  string            `json:"explanation"`
	}
	out := make([]typologyBody, 0, len(records))
	for _, rec := range records {
		out = append(out, typologyBody{
			GeoKey:       rec.Key,
			State:        rec.State,
			District:     rec.District,
			MVI:          rec.MVI,
			ZoneType:     rec.ZoneType,
			Confidence:   rec.Confidence,
			Slope:        rec.Slope,
			Variance:     rec.Variance,
			Acceleration: rec.Acceleration,
			TrendType:    rec.TrendType,
			Explanation:  rec.Explanation,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":        len(out),
		"records":      out,
		"distribution": typology.Distribution(records),
	})
}

func (h *Handlers) handleAcceleration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.deps.Store.Load(ctx, dataset.SnapshotAcceleration)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	records := accel.FromTable(t)

	mviRecords, err := h.loadMVI(ctx)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}

	type accelBody struct {
		GeoKey          domain.GeoKey             `json:"geo_key"`
		State           string                    `json:"state"`
		District        string                    `json:"district"`
		RecentSlope     float64                   `json:"recent_slope"`
		HistoricalSlope float64                   `json:"historical_slope"`
		Acceleration    float64                   `json:"acceleration"`
		Status          domain.AccelerationStatus `json:"status"`
	}
	out := make([]accelBody, 0, len(records))
	for _, rec := range records {
		out = append(out, accelBody{
			GeoKey:          rec.Key,
			State:           rec.State,
			District:        rec.District,
			RecentSlope:     rec.RecentSlope,
			HistoricalSlope: rec.HistoricalSlope,
			Acceleration:    rec.Acceleration,
			Status:          rec.Status,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":          len(out),
		"records":        out,
		"summary":        accel.Summarize(records),
		"early_warnings": accel.EarlyWarnings(records, mviRecords),
	})
}

func (h *Handlers) handleSpatial(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadMVI(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"hotspots":          h.spatial.DetectHotspots(records),
		"autocorrelation":   h.spatial.ComputeAutocorrelation(records),
		"zone_distribution": spatial.CountZones(records),
		"state_comparison":  spatial.CompareStates(records),
		"heatmap":           spatial.Heatmap(records),
	})
}

func (h *Handlers) handleSeasonality(w http.ResponseWriter, r *http.Request) {
	ts, err := h.loadTimeseries(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	months := h.seasonal.Detect(ts)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"months":  months,
		"summary": seasonal.Summarize(months),
	})
}

func (h *Handlers) handleCompare(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if days == 0 {
		days = 30
	}
	ts, err := h.loadTimeseries(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.analytics.ComparePeriods(ts, days))
}

func (h *Handlers) handleForecast(w http.ResponseWriter, r *http.Request) {
	geo := domain.GeoKey(r.URL.Query().Get("geo"))
	if geo == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "geo is required"))
		return
	}
	horizon, err := queryInt(r, "horizon", 30)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if horizon == 0 {
		horizon = 30
	}

	ts, err := h.loadTimeseries(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	forecast, ok := h.analytics.ForecastRegion(ts, geo, horizon)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not enough history for region"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, forecast)
}

func (h *Handlers) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	ts, err := h.loadTimeseries(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	pairs := h.analytics.StateCorrelation(ts)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count": len(pairs),
		"pairs": pairs,
	})
}

func (h *Handlers) handleNomads(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadMVI(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	estimates := h.analytics.SeasonalNomads(records)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":     len(estimates),
		"estimates": estimates,
	})
}

func (h *Handlers) handleHidden(w http.ResponseWriter, r *http.Request) {
	records, err := h.loadMVI(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	estimates := h.analytics.HiddenMigration(records)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":     len(estimates),
		"estimates": estimates,
	})
}
