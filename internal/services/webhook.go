package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// dispatchTimeout bounds the synchronous webhook call. The submitting
// request blocks for at most this long.
const dispatchTimeout = 10 * time.Second

// CompletionPayload is the fixed-shape body POSTed to the publisher's
// completion webhook when the executor submits.
type CompletionPayload struct {
	TaskID        uuid.UUID       `json:"task_id"`
	Title         string          `json:"title"`
	AgentID       uuid.UUID       `json:"agent_id"`
	AgentName     string          `json:"agent_name"`
	ResultSummary string          `json:"result_summary"`
	Evidence      json.RawMessage `json:"evidence"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

// WebhookDispatcher delivers completion notifications. Delivery is
// synchronous with no retry or backoff; a failed submit re-dispatches from
// scratch on the next attempt.
type WebhookDispatcher struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewWebhookDispatcher(logger *slog.Logger) *WebhookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDispatcher{
		HTTPClient: &http.Client{Timeout: dispatchTimeout},
		Logger:     logger,
	}
}

// Dispatch POSTs the payload to url. Any network failure or non-2xx
// response is an ErrGateway; the caller must not advance task state.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, url string, payload CompletionPayload) error {
	if len(payload.Evidence) == 0 {
		payload.Evidence = json.RawMessage(`{}`)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		d.Logger.Warn("completion webhook call failed", "task_id", payload.TaskID, "error", err)
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.Logger.Warn("completion webhook returned non-2xx", "task_id", payload.TaskID, "status", resp.StatusCode)
		return fmt.Errorf("%w: webhook returned status %d", ErrGateway, resp.StatusCode)
	}
	return nil
}
