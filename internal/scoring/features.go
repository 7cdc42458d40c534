package scoring

import (
	"math"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

const day = 24 * time.Hour

// Windows and decay constants for the relative features.
const (
	freshWindow       = 7 * day
	velocityWindow    = 14 * day
	hnWindow          = 45 * day
	layoffHalfLifeDay = 90.0
)

// Features are the raw per-company inputs of the relative score.
type Features struct {
	Fresh7d         int      `json:"fresh_7d"`
	Updates14d      int      `json:"updates_14d"`
	UpdatesPrior14d int      `json:"updates_prior_14d"`
	VelPos          int      `json:"vel_pos"`
	OpenCount       int      `json:"open_count"`
	HNPresence      int      `json:"hn_presence"`
	LayoffDays      *float64 `json:"layoff_days,omitempty"`
	LayoffPenalty   float64  `json:"layoff_penalty"`
}

// ComputeFeatures derives the raw features from one company's postings
// (already limited to the tracked role family) and signals.
func ComputeFeatures(postings []model.JobPosting, signals []model.Signal, now time.Time) Features {
	var f Features

	freshSince := now.Add(-freshWindow)
	recentSince := now.Add(-velocityWindow)
	priorSince := now.Add(-2 * velocityWindow)

	for _, p := range postings {
		if !p.UpdatedAt.Before(freshSince) || !p.CreatedAt.Before(freshSince) {
			f.Fresh7d++
		}
		switch {
		case !p.UpdatedAt.Before(recentSince):
			f.Updates14d++
		case !p.UpdatedAt.Before(priorSince):
			f.UpdatesPrior14d++
		}
		if p.Status == model.StatusOpen {
			f.OpenCount++
		}
	}
	f.VelPos = max(0, f.Updates14d-f.UpdatesPrior14d)

	hnSince := now.Add(-hnWindow)
	var lastLayoff *time.Time
	for i := range signals {
		s := signals[i]
		switch s.Kind {
		case model.SignalHNWhosHiring:
			if !s.HappenedAt.Before(hnSince) {
				f.HNPresence = 1
			}
		case model.SignalLayoff:
			if lastLayoff == nil || s.HappenedAt.After(*lastLayoff) {
				at := s.HappenedAt
				lastLayoff = &at
			}
		}
	}
	if lastLayoff != nil {
		days := math.Max(0, now.Sub(*lastLayoff).Hours()/24)
		f.LayoffDays = &days
		f.LayoffPenalty = LayoffPenalty(days)
	}

	return f
}

// LayoffPenalty decays with a 90-day half-life: 1 on the day of the layoff,
// 0.5 after 90 days. Negative ages count as zero.
func LayoffPenalty(daysSince float64) float64 {
	if daysSince < 0 {
		daysSince = 0
	}
	return math.Pow(0.5, daysSince/layoffHalfLifeDay)
}
