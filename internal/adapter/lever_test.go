package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLeverFetch_Success(t *testing.T) {
	payload := `[
		{
			"id": "ff7ef527-b0d3-4c44-836a-8d6b58ac321e",
			"text": "Software Engineer",
			"categories": {
				"team": "Engineering",
				"department": "Platform",
				"location": "San Francisco, CA"
			},
			"createdAt": 1769784074110,
			"updatedAt": 1769870474110,
			"hostedUrl": "https://jobs.lever.co/acme/ff7ef527",
			"applyUrl": "https://jobs.lever.co/acme/ff7ef527/apply"
		},
		{
			"id": "a1b2c3d4",
			"text": "Account Executive",
			"categories": {"location": "Remote"},
			"createdAt": 1769870474110,
			"hostedUrl": "https://jobs.lever.co/acme/a1b2c3d4"
		}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/acme" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("mode") != "json" {
			t.Errorf("expected mode=json, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	postings, err := NewLeverAdapter(testClient(srv)).Fetch(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.Title != "Software Engineer" {
		t.Errorf("unexpected title %q", p.Title)
	}
	if p.Department != "Engineering" {
		t.Errorf("expected department from team, got %q", p.Department)
	}
	if p.ApplyURL != "https://jobs.lever.co/acme/ff7ef527" {
		t.Errorf("expected hostedUrl, got %q", p.ApplyURL)
	}
	if p.CreatedAt != "1769784074110" {
		t.Errorf("expected raw epoch millis, got %q", p.CreatedAt)
	}
	if p.UpdatedAt != "1769870474110" {
		t.Errorf("unexpected updated_at %q", p.UpdatedAt)
	}

	// Missing updatedAt falls back to createdAt; missing team stays empty.
	if postings[1].UpdatedAt != "1769870474110" {
		t.Errorf("expected updated_at fallback, got %q", postings[1].UpdatedAt)
	}
	if postings[1].Department != "" {
		t.Errorf("expected empty department, got %q", postings[1].Department)
	}
}

func TestLeverFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewLeverAdapter(testClient(srv)).Fetch(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for HTTP 404, got nil")
	}
}

func TestLeverFetch_ObjectInsteadOfArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "error": "Document not found"}`))
	}))
	defer srv.Close()

	_, err := NewLeverAdapter(testClient(srv)).Fetch(context.Background(), "acme")
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}
}
