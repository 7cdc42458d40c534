package forecast

import (
	"encoding/json"
	"math"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

const week = 7 * 24 * time.Hour

// Method names recorded on each forecast.
const (
	MethodEWMA     = "ema4+momentum"
	MethodFallback = "no-history-fallback"
)

const (
	historyWeeks    = 26
	span            = 4
	momentumWindow  = 4
	projectionWeeks = 12
	fallbackProb    = 0.30
	minProb         = 0.10
	maxProb         = 0.95
	minPoints       = 4
)

// Features are the intermediate values behind a forecast.
type Features struct {
	RoleFamily      string  `json:"role_family,omitempty"`
	HistoryWeeks    int     `json:"history_weeks"`
	Sum             int     `json:"sum"`
	LevelNow        float64 `json:"level_now"`
	MomentumPerWeek float64 `json:"momentum_per_week"`
	FuturePeakMonth string  `json:"future_peak_month,omitempty"`
	Series          []int   `json:"series"`
}

// Result is a company's near-term hiring forecast.
type Result struct {
	ProbNext8W  float64
	LikelyMonth string
	Method      string
	Features    Features
}

// FeaturesJSON marshals the features for persistence.
func (r Result) FeaturesJSON() ([]byte, error) {
	return json.Marshal(r.Features)
}

// WeeklySeries counts OPEN postings created before the end of each week,
// for the 27 weeks starting 26 weeks before now. Each point is a cumulative
// snapshot, not a weekly delta.
func WeeklySeries(postings []model.JobPosting, now time.Time) []int {
	start := now.Add(-historyWeeks * week)
	series := make([]int, historyWeeks+1)
	for w := range series {
		end := start.Add(time.Duration(w+1) * week)
		for _, p := range postings {
			if p.Status == model.StatusOpen && p.CreatedAt.Before(end) {
				series[w]++
			}
		}
	}
	return series
}

// Compute builds the weekly series for postings and forecasts from it.
func Compute(postings []model.JobPosting, roleFamily string, now time.Time) Result {
	r := FromSeries(WeeklySeries(postings, now), now)
	r.Features.RoleFamily = roleFamily
	return r
}

// FromSeries forecasts from an already built weekly series.
func FromSeries(series []int, now time.Time) Result {
	sum := 0
	for _, v := range series {
		sum += v
	}

	feats := Features{HistoryWeeks: len(series), Sum: sum, Series: series}
	if sum == 0 || len(series) < minPoints {
		return Result{
			ProbNext8W:  fallbackProb,
			LikelyMonth: monthAhead(now, 10),
			Method:      MethodFallback,
			Features:    feats,
		}
	}

	values := make([]float64, len(series))
	for i, v := range series {
		values[i] = float64(v)
	}
	smoothed := EWMA(values, span)

	level := smoothed[len(smoothed)-1]
	momentum := Momentum(smoothed, momentumWindow)
	prob := Probability(level, momentum)

	likelyWeeks := 10
	if prob >= 0.5 {
		likelyWeeks = 6
	}

	feats.LevelNow = round(level, 2)
	feats.MomentumPerWeek = round(momentum, 3)
	feats.FuturePeakMonth = monthAhead(now, peakWeek(level, momentum))

	return Result{
		ProbNext8W:  prob,
		LikelyMonth: monthAhead(now, likelyWeeks),
		Method:      MethodEWMA,
		Features:    feats,
	}
}

// EWMA smooths values recursively with alpha = 2/(span+1), seeded with the
// first value.
func EWMA(values []float64, span int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Momentum is the average weekly change over the last min(window, len-1) points.
func Momentum(smoothed []float64, window int) float64 {
	tail := min(window, len(smoothed)-1)
	if tail <= 0 {
		return 0
	}
	last := smoothed[len(smoothed)-1]
	return (last - smoothed[len(smoothed)-1-tail]) / float64(tail)
}

// Probability maps level and momentum to a ramp probability in [0.10, 0.95].
func Probability(level, momentum float64) float64 {
	p := 0.25 + math.Min(0.5, 0.04*level+0.06*math.Max(0, momentum))
	return math.Max(minProb, math.Min(maxProb, round(p, 2)))
}

// Projection extends level linearly by momentum for n weeks, floored at 0.
func Projection(level, momentum float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Max(0, level+float64(i+1)*momentum)
	}
	return out
}

// peakWeek returns how many weeks ahead the 12-week projection peaks. The
// first maximum wins.
func peakWeek(level, momentum float64) int {
	future := Projection(level, momentum, projectionWeeks)
	best := 0
	for i, v := range future {
		if v > future[best] {
			best = i
		}
	}
	return best + 1
}

func monthAhead(now time.Time, weeks int) string {
	return now.Add(time.Duration(weeks) * week).Month().String()
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
