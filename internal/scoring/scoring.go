package scoring

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// Scoring mode names recorded in details.
const (
	ModeRelative = "relative"
	ModeAbsolute = "absolute"
)

// Relative-mode weights.
const (
	WeightFresh  = 0.35
	WeightVel    = 0.30
	WeightOpen   = 0.20
	WeightHN     = 0.10
	WeightLayoff = 0.15
)

// Company is one scoring input.
type Company struct {
	ID       int64
	Name     string
	Postings []model.JobPosting
	Signals  []model.Signal
}

// Range is the min/max of a feature across the company set.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Normalized holds the min-max scaled features.
type Normalized struct {
	Fresh7d   float64 `json:"fresh_7d"`
	VelPos    float64 `json:"vel_pos"`
	OpenCount float64 `json:"open_count"`
}

// Details is the auditable breakdown of a relative score. Raw counts,
// ranges and weights are enough to recompute Score.
type Details struct {
	Mode       string             `json:"mode"`
	Raw        Features           `json:"raw"`
	Normalized Normalized         `json:"normalized"`
	Ranges     map[string]Range   `json:"ranges"`
	Weights    map[string]float64 `json:"weights"`
	Blend      float64            `json:"blend"`
}

// Result is one company's relative score.
type Result struct {
	CompanyID int64
	Name      string
	Score     int
	Details   Details
}

// DetailsJSON marshals the breakdown for persistence.
func (r Result) DetailsJSON() ([]byte, error) {
	return json.Marshal(r.Details)
}

func weights() map[string]float64 {
	return map[string]float64{
		"fresh_7d":       WeightFresh,
		"vel_pos":        WeightVel,
		"open_count":     WeightOpen,
		"hn_presence":    WeightHN,
		"layoff_penalty": WeightLayoff,
	}
}

// Relative scores every company against the others and returns the results
// ranked by score descending, then name ascending.
func Relative(companies []Company, now time.Time) []Result {
	feats := make([]Features, len(companies))
	for i, c := range companies {
		feats[i] = ComputeFeatures(c.Postings, c.Signals, now)
	}

	fresh := rangeOf(feats, func(f Features) int { return f.Fresh7d })
	vel := rangeOf(feats, func(f Features) int { return f.VelPos })
	open := rangeOf(feats, func(f Features) int { return f.OpenCount })
	ranges := map[string]Range{"fresh_7d": fresh, "vel_pos": vel, "open_count": open}

	results := make([]Result, len(companies))
	for i, c := range companies {
		f := feats[i]
		norm := Normalized{
			Fresh7d:   normalize(f.Fresh7d, fresh),
			VelPos:    normalize(f.VelPos, vel),
			OpenCount: normalize(f.OpenCount, open),
		}
		score, blend := Blend(norm, f.HNPresence, f.LayoffPenalty)
		results[i] = Result{
			CompanyID: c.ID,
			Name:      c.Name,
			Score:     score,
			Details: Details{
				Mode:       ModeRelative,
				Raw:        f,
				Normalized: norm,
				Ranges:     ranges,
				Weights:    weights(),
				Blend:      blend,
			},
		}
	}

	Rank(results)
	return results
}

// Blend combines normalized features into a score in [0,100]. It also
// returns the unclamped weighted sum.
func Blend(norm Normalized, hnPresence int, layoffPenalty float64) (int, float64) {
	raw := WeightFresh*norm.Fresh7d +
		WeightVel*norm.VelPos +
		WeightOpen*norm.OpenCount +
		WeightHN*float64(hnPresence) -
		WeightLayoff*layoffPenalty
	return int(math.Round(100 * clamp(0, 1, raw))), raw
}

// Rank orders results by score descending, then name ascending.
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
}

func rangeOf(feats []Features, get func(Features) int) Range {
	if len(feats) == 0 {
		return Range{}
	}
	r := Range{Min: get(feats[0]), Max: get(feats[0])}
	for _, f := range feats[1:] {
		v := get(f)
		r.Min = min(r.Min, v)
		r.Max = max(r.Max, v)
	}
	return r
}

// normalize min-max scales v; a degenerate range maps everything to 0.
func normalize(v int, r Range) float64 {
	if r.Max == r.Min {
		return 0
	}
	return float64(v-r.Min) / float64(r.Max-r.Min)
}

func clamp(lo, hi, v float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
