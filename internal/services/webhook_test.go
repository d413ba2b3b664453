package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDispatch_PostsPayload(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(nil)
	payload := CompletionPayload{
		TaskID:        uuid.New(),
		Title:         "write a report",
		AgentID:       uuid.New(),
		AgentName:     "scribe",
		ResultSummary: "done",
		Evidence:      json.RawMessage(`{"link":"https://example.com/out"}`),
		SubmittedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := d.Dispatch(context.Background(), srv.URL, payload); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, field := range []string{"task_id", "title", "agent_id", "agent_name", "result_summary", "evidence", "submitted_at"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("payload missing field %q", field)
		}
	}
}

func TestDispatch_EmptyEvidenceDefaultsToObject(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(nil)
	if err := d.Dispatch(context.Background(), srv.URL, CompletionPayload{TaskID: uuid.New()}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var decoded struct {
		Evidence json.RawMessage `json:"evidence"`
	}
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if string(decoded.Evidence) != "{}" {
		t.Errorf("expected empty evidence object, got %s", decoded.Evidence)
	}
}

func TestDispatch_Non2xxIsGatewayError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		d := NewWebhookDispatcher(nil)
		err := d.Dispatch(context.Background(), srv.URL, CompletionPayload{TaskID: uuid.New()})
		srv.Close()
		if !errors.Is(err, ErrGateway) {
			t.Errorf("status %d: expected ErrGateway, got %v", status, err)
		}
	}
}

func TestDispatch_NetworkFailureIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	d := NewWebhookDispatcher(nil)
	err := d.Dispatch(context.Background(), srv.URL, CompletionPayload{TaskID: uuid.New()})
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}
