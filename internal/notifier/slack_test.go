package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amishk599/hiringradar/internal/model"
)

func TestSlackNotifier_SendsSummary(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.NotifyRun(context.Background(), sampleRun(), sampleRecompute()); err != nil {
		t.Fatalf("NotifyRun() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	header := payload.Blocks[0]
	if header.Text.Text != "Hiring radar run: 5 postings touched, 1 sources failed" {
		t.Errorf("header text = %q", header.Text.Text)
	}
	if got := payload.Blocks[2].Fields[0].Text; got != "*By ATS:*\ngreenhouse 5, lever 0" {
		t.Errorf("by-kind field = %q", got)
	}
	if got := payload.Blocks[2].Fields[1].Text; got != "*Duration:*\n12s" {
		t.Errorf("duration field = %q", got)
	}
	if !strings.Contains(payload.Blocks[3].Text.Text, "4 scores") {
		t.Errorf("recompute block = %q", payload.Blocks[3].Text.Text)
	}
	if !strings.Contains(payload.Blocks[4].Text.Text, "`lever/globex`: HTTP 404") {
		t.Errorf("error block = %q", payload.Blocks[4].Text.Text)
	}
	if last := payload.Blocks[len(payload.Blocks)-1]; last.Type != "divider" {
		t.Errorf("last block type = %q, want divider", last.Type)
	}
}

func TestSlackNotifier_TruncatesErrors(t *testing.T) {
	run := sampleRun()
	run.Errors = nil
	for i := 0; i < 8; i++ {
		run.Errors = append(run.Errors, model.SourceError{SourceID: int64(i), Kind: model.KindAshby, Handle: fmt.Sprintf("org%d", i), Reason: "timeout"})
	}

	payload := buildPayload(run, nil)
	errBlock := payload.Blocks[len(payload.Blocks)-2].Text.Text
	if strings.Count(errBlock, "timeout") != maxErrorLines {
		t.Errorf("expected %d listed errors, got:\n%s", maxErrorLines, errBlock)
	}
	if !strings.HasSuffix(errBlock, "and 3 more") {
		t.Errorf("expected overflow line, got:\n%s", errBlock)
	}
}

func TestSlackNotifier_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.NotifyRun(context.Background(), sampleRun(), nil); err == nil {
		t.Fatal("expected error for 500")
	}
}

func TestSlackNotifier_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.NotifyRun(context.Background(), sampleRun(), nil); err != nil {
		t.Fatalf("NotifyRun() = %v, want nil", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls, got %d", c)
	}
}

func TestSendTestMessage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := SendTestMessage(context.Background(), NewSlackNotifier(srv.URL, srv.Client(), discardLogger())); err != nil {
		t.Fatalf("SendTestMessage() = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}
