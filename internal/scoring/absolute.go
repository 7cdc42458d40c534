package scoring

import (
	"encoding/json"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

const absoluteWindow = 28 * day

// AbsoluteDetails is the breakdown of a single-company score.
type AbsoluteDetails struct {
	Mode      string `json:"mode"`
	OpenNow   int    `json:"open_now"`
	NewLast28 int    `json:"new_last_28d"`
}

// JSON marshals the breakdown for persistence or API output.
func (d AbsoluteDetails) JSON() ([]byte, error) {
	return json.Marshal(d)
}

// Absolute scores one company on its own: 10 points per new posting (up to 4)
// plus 8 per open posting (up to 5). A posting is new when it was created or
// updated within 28 days.
func Absolute(postings []model.JobPosting, now time.Time) (int, AbsoluteDetails) {
	since := now.Add(-absoluteWindow)
	d := AbsoluteDetails{Mode: ModeAbsolute}

	for _, p := range postings {
		if p.Status != model.StatusOpen {
			continue
		}
		d.OpenNow++
		if !p.CreatedAt.Before(since) || !p.UpdatedAt.Before(since) {
			d.NewLast28++
		}
	}

	score := 10*min(4, d.NewLast28) + 8*min(5, d.OpenNow)
	return int(clamp(0, 100, float64(score))), d
}
