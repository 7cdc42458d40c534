package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// maxBodyBytes caps how much of a vendor response we are willing to decode.
const maxBodyBytes = 32 << 20

// getJSON issues a GET bounded by timeout and returns the raw body of a 200
// response. Non-200 statuses come back as *model.HTTPError.
func getJSON(ctx context.Context, client *http.Client, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// rawTime keeps a vendor timestamp verbatim. It accepts JSON strings and
// numbers (epoch seconds or milliseconds) so parsing can happen in one place.
type rawTime string

func (t *rawTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = rawTime(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = rawTime(n.String())
	return nil
}

// flexID accepts ids that vendors emit either as numbers or strings.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	var t rawTime
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*id = flexID(t)
	return nil
}

// namedField accepts either "Engineering" or {"name": "Engineering"}.
type namedField string

func (f *namedField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = namedField(s)
		return nil
	}
	var obj struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Name != "" {
		*f = namedField(obj.Name)
	} else {
		*f = namedField(obj.Label)
	}
	return nil
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
