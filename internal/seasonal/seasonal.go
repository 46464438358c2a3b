// Package seasonal finds recurring calendar patterns in migration activity.
// Daily MVI points are folded onto their calendar month; a month's mean
// relative to the overall mean is its seasonal index.
package seasonal

import (
	"log/slog"
	"math"
	"sort"

	"fluxmap/internal/domain"
	"fluxmap/internal/stats"
)

const (
	// PeakIndexMin and TroughIndexMax bound the band of ordinary months.
	PeakIndexMin   = 1.1
	TroughIndexMax = 0.9

	// seasonalAmplitudeMin is the peak-to-trough spread above which the
	// series counts as seasonal at all.
	seasonalAmplitudeMin = 0.2
)

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// MonthStat aggregates every observation falling on one calendar month.
type MonthStat struct {
	Month         int     `json:"month"`
	MonthName     string  `json:"month_name"`
	AvgValue      float64 `json:"avg_value"`
	StdValue      float64 `json:"std_value"`
	Count         int     `json:"count"`
	SeasonalIndex float64 `json:"seasonal_index"`
}

// PeakInfo names the months outside the ordinary band.
type PeakInfo struct {
	PeakMonths   []string `json:"peak_months"`
	TroughMonths []string `json:"trough_months"`
	Amplitude    float64  `json:"amplitude"`
	MaxIndex     float64  `json:"max_index"`
	MinIndex     float64  `json:"min_index"`
}

// Summary is the API-facing seasonality digest.
type Summary struct {
	MonthlyIndices map[string]float64 `json:"monthly_indices"`
	PeakMonths     []string           `json:"peak_months"`
	TroughMonths   []string           `json:"trough_months"`
	Amplitude      float64            `json:"amplitude"`
	HasSeasonality bool               `json:"has_seasonality"`
}

// Engine folds time series onto the calendar.
type Engine struct {
	log *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine builds a seasonality engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect aggregates all points by calendar month, in month order. The
// seasonal index divides by the overall mean, or by one when the series
// averages to zero.
func (e *Engine) Detect(ts domain.Timeseries) []MonthStat {
	if len(ts) == 0 {
		return nil
	}

	byMonth := map[int][]float64{}
	all := make([]float64, 0, len(ts))
	for _, p := range ts {
		m := int(p.Date.Month())
		byMonth[m] = append(byMonth[m], p.DailyMVI)
		all = append(all, p.DailyMVI)
	}

	overall := stats.Mean(all)
	if overall == 0 {
		overall = 1
	}

	months := make([]int, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Ints(months)

	out := make([]MonthStat, 0, len(months))
	for _, m := range months {
		values := byMonth[m]
		avg := stats.Mean(values)
		out = append(out, MonthStat{
			Month:         m,
			MonthName:     monthNames[m-1],
			AvgValue:      avg,
			StdValue:      math.Sqrt(stats.SampleVariance(values)),
			Count:         len(values),
			SeasonalIndex: avg / overall,
		})
	}

	e.log.Info("seasonality detected", "months", len(out), "points", len(ts))
	return out
}

// Indices maps month names to their seasonal index, rounded to three
// decimals.
func Indices(months []MonthStat) map[string]float64 {
	out := make(map[string]float64, len(months))
	for _, m := range months {
		out[m.MonthName] = round3(m.SeasonalIndex)
	}
	return out
}

// Peaks names months beyond the peak and trough bounds and measures the
// index spread between the strongest and weakest month.
func Peaks(months []MonthStat) PeakInfo {
	info := PeakInfo{PeakMonths: []string{}, TroughMonths: []string{}}
	if len(months) == 0 {
		return info
	}

	maxIdx := math.Inf(-1)
	minIdx := math.Inf(1)
	for _, m := range months {
		if m.SeasonalIndex > PeakIndexMin {
			info.PeakMonths = append(info.PeakMonths, m.MonthName)
		}
		if m.SeasonalIndex < TroughIndexMax {
			info.TroughMonths = append(info.TroughMonths, m.MonthName)
		}
		maxIdx = math.Max(maxIdx, m.SeasonalIndex)
		minIdx = math.Min(minIdx, m.SeasonalIndex)
	}

	info.Amplitude = round3(maxIdx - minIdx)
	info.MaxIndex = round3(maxIdx)
	info.MinIndex = round3(minIdx)
	return info
}

// Summarize bundles indices and peak months with the seasonality verdict.
func Summarize(months []MonthStat) Summary {
	peaks := Peaks(months)
	return Summary{
		MonthlyIndices: Indices(months),
		PeakMonths:     peaks.PeakMonths,
		TroughMonths:   peaks.TroughMonths,
		Amplitude:      peaks.Amplitude,
		HasSeasonality: peaks.Amplitude > seasonalAmplitudeMin,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
