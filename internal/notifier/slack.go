package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// maxErrorLines caps how many failed sources are listed in one message.
const maxErrorLines = 5

// Ensure SlackNotifier implements model.RunNotifier.
var _ model.RunNotifier = (*SlackNotifier)(nil)

// SlackNotifier posts run summaries to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each run to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// NotifyRun sends one Block Kit message per run. A 429 is retried once after
// Retry-After.
func (s *SlackNotifier) NotifyRun(ctx context.Context, run model.RunSummary, recompute *model.RecomputeSummary) error {
	body, err := json.Marshal(buildPayload(run, recompute))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack message sent", "run_id", run.RunID, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack message sent", "run_id", run.RunID)
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a dummy run summary to verify the integration works.
func SendTestMessage(ctx context.Context, n model.RunNotifier) error {
	now := time.Now().UTC()
	return n.NotifyRun(ctx, model.RunSummary{
		RunID:            "test-run",
		StartedAt:        now,
		FinishedAt:       now,
		SourcesProcessed: 1,
		UpsertsByKind:    map[model.ATSKind]int{model.KindGreenhouse: 0},
	}, nil)
}

func buildPayload(run model.RunSummary, recompute *model.RecomputeSummary) slackPayload {
	header := fmt.Sprintf("Hiring radar run: %d postings touched", run.Touched)
	if len(run.Errors) > 0 {
		header += fmt.Sprintf(", %d sources failed", len(run.Errors))
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: header},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Sources:*\n" + strconv.Itoa(run.SourcesProcessed)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*New / updated:*\n%d / %d", run.Inserted, run.Updated)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*By ATS:*\n" + formatKinds(run.UpsertsByKind)},
				{Type: "mrkdwn", Text: "*Duration:*\n" + run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()},
			},
		},
	}

	if recompute != nil {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("Recomputed %d scores and %d forecasts across %d companies",
				recompute.Scores, recompute.Forecasts, recompute.Companies)},
		})
	}

	if len(run.Errors) > 0 {
		var b strings.Builder
		for i, e := range run.Errors {
			if i == maxErrorLines {
				fmt.Fprintf(&b, "• and %d more", len(run.Errors)-maxErrorLines)
				break
			}
			fmt.Fprintf(&b, "• `%s/%s`: %s\n", e.Kind, e.Handle, e.Reason)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.TrimRight(b.String(), "\n")},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}

func formatKinds(byKind map[model.ATSKind]int) string {
	if len(byKind) == 0 {
		return "-"
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d", k, byKind[model.ATSKind(k)]))
	}
	return strings.Join(parts, ", ")
}
