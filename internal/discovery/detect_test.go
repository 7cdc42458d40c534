package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amishk599/hiringradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(srv *httptest.Server) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
}

func TestParseATSURL(t *testing.T) {
	tests := []struct {
		url  string
		want Hit
		ok   bool
	}{
		{"https://boards.greenhouse.io/Acme", Hit{model.KindGreenhouse, "acme"}, true},
		{"https://job-boards.greenhouse.io/acme/jobs/123", Hit{model.KindGreenhouse, "acme"}, true},
		{"https://boards-api.greenhouse.io/v1/boards/acme/jobs?content=true", Hit{model.KindGreenhouse, "acme"}, true},
		{"https://boards.greenhouse.io/embed/job_board?for=acme", Hit{model.KindGreenhouse, "acme"}, true},
		{"https://boards.greenhouse.io/embed/job_board", Hit{}, false},
		{"https://jobs.lever.co/globex/abc-123", Hit{model.KindLever, "globex"}, true},
		{"https://jobs.ashbyhq.com/initech?utm=x", Hit{model.KindAshby, "initech"}, true},
		{"https://careers.smartrecruiters.com/Umbrella1", Hit{model.KindSmartRecruiters, "umbrella1"}, true},
		{"https://example.com/careers", Hit{}, false},
		{"", Hit{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseATSURL(tt.url)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseATSURL(%q) = %+v, %v; want %+v, %v", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDetectFromHTML(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="https://jobs.lever.co/globex">Open roles</a>
		<a href="https://jobs.lever.co/globex/123">Backend Engineer</a>
		<iframe src="https://boards.greenhouse.io/embed/job_board?for=acme"></iframe>
	</body></html>`

	hits, err := DetectFromHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Hit{{model.KindLever, "globex"}, {model.KindGreenhouse, "acme"}}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %+v", len(want), hits)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("hit %d = %+v, want %+v", i, hits[i], want[i])
		}
	}
}

func TestDetectFromURL_DirectBoardSkipsFetch(t *testing.T) {
	d := NewDetector(&http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("unexpected fetch")
		return nil, nil
	})}, discardLogger())

	hits, err := d.DetectFromURL(context.Background(), "https://jobs.ashbyhq.com/initech")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Handle != "initech" {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestDetectFromURL_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDetector(testClient(srv), discardLogger())
	if _, err := d.DetectFromURL(context.Background(), "https://example.com/careers"); err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestDetectFromDomain(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		switch r.URL.Path {
		case "/careers":
			fmt.Fprint(w, `<a href="https://boards.greenhouse.io/acme">Jobs</a>`)
		case "/jobs":
			fmt.Fprint(w, `<a href="https://boards.greenhouse.io/acme">Jobs</a><a href="https://jobs.ashbyhq.com/acme">More</a>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewDetector(testClient(srv), discardLogger())
	hits, err := d.DetectFromDomain(context.Background(), "acme.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Hit{{model.KindGreenhouse, "acme"}, {model.KindAshby, "acme"}}
	if len(hits) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, hits)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("hit %d = %+v, want %+v", i, hits[i], want[i])
		}
	}
	if len(paths) != len(careersPaths) {
		t.Errorf("expected every careers path probed, got %v", paths)
	}
}

func TestBaseURL(t *testing.T) {
	tests := map[string]string{
		"acme.com":                 "https://acme.com",
		"https://acme.com/careers": "https://acme.com",
		" http://acme.com:8080/x ": "http://acme.com:8080",
	}
	for in, want := range tests {
		got, err := baseURL(in)
		if err != nil || got != want {
			t.Errorf("baseURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := baseURL(""); err == nil {
		t.Error("expected error for empty domain")
	}
}
