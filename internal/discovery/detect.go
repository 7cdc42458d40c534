// Package discovery finds ATS boards for a company from URLs and careers pages.
package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/hiringradar/internal/model"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; HiringRadarBot/1.0)"
	fetchTimeout = 15 * time.Second
)

// careersPaths are probed, in order, by DetectFromDomain.
var careersPaths = []string{"/careers", "/jobs", "/company/careers", "/about/careers", "/join-us"}

// Hit is one detected board.
type Hit struct {
	Kind   model.ATSKind `json:"kind"`
	Handle string        `json:"handle"`
}

var boardPatterns = []struct {
	kind model.ATSKind
	re   *regexp.Regexp
}{
	{model.KindGreenhouse, regexp.MustCompile(`(?:job-)?boards(?:-api)?\.greenhouse\.io/(?:v1/boards/)?([^/?#]+)`)},
	{model.KindLever, regexp.MustCompile(`jobs\.lever\.co/([^/?#]+)`)},
	{model.KindAshby, regexp.MustCompile(`jobs\.ashbyhq\.com/([^/?#]+)`)},
	{model.KindSmartRecruiters, regexp.MustCompile(`(?:careers|jobs)\.smartrecruiters\.com/([^/?#]+)`)},
}

// ParseATSURL reports the board a URL points at directly. Greenhouse embed
// links carry the board token in the "for" query parameter.
func ParseATSURL(raw string) (Hit, bool) {
	low := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range boardPatterns {
		m := p.re.FindStringSubmatch(low)
		if m == nil {
			continue
		}
		handle := m[1]
		if p.kind == model.KindGreenhouse && handle == "embed" {
			u, err := url.Parse(low)
			if err != nil || u.Query().Get("for") == "" {
				return Hit{}, false
			}
			handle = u.Query().Get("for")
		}
		return Hit{Kind: p.kind, Handle: handle}, true
	}
	return Hit{}, false
}

// DetectFromHTML scans anchors and iframes for board links. Results are
// deduplicated and keep document order.
func DetectFromHTML(r io.Reader) ([]Hit, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var hits []Hit
	seen := make(map[Hit]bool)
	doc.Find("a[href], iframe[src]").Each(func(_ int, s *goquery.Selection) {
		link, ok := s.Attr("href")
		if !ok {
			link, _ = s.Attr("src")
		}
		hit, ok := ParseATSURL(link)
		if !ok || seen[hit] {
			return
		}
		seen[hit] = true
		hits = append(hits, hit)
	})
	return hits, nil
}

// Detector fetches pages to look for board links.
type Detector struct {
	client *http.Client
	logger *slog.Logger
}

// NewDetector creates a detector using client for page fetches.
func NewDetector(client *http.Client, logger *slog.Logger) *Detector {
	return &Detector{client: client, logger: logger}
}

// DetectFromURL returns the board a URL names directly, or else scans the
// page it serves.
func (d *Detector) DetectFromURL(ctx context.Context, pageURL string) ([]Hit, error) {
	if hit, ok := ParseATSURL(pageURL); ok {
		return []Hit{hit}, nil
	}
	body, err := d.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return DetectFromHTML(body)
}

// DetectFromDomain probes the common careers paths of domain and merges
// every board found. Unreachable paths are skipped.
func (d *Detector) DetectFromDomain(ctx context.Context, domain string) ([]Hit, error) {
	base, err := baseURL(domain)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	seen := make(map[Hit]bool)
	for _, path := range careersPaths {
		if ctx.Err() != nil {
			return hits, ctx.Err()
		}
		found, err := d.DetectFromURL(ctx, base+path)
		if err != nil {
			d.logger.Debug("careers path skipped", "url", base+path, "error", err)
			continue
		}
		for _, h := range found {
			if !seen[h] {
				seen[h] = true
				hits = append(hits, h)
			}
		}
	}
	return hits, nil
}

func (d *Detector) fetch(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		cancel()
		return nil, &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("fetching %s", pageURL)}
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelOnClose releases the request context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// baseURL accepts "example.com" or a full URL and returns scheme://host.
func baseURL(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", fmt.Errorf("empty domain")
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid domain %q", domain)
	}
	return u.Scheme + "://" + u.Host, nil
}
