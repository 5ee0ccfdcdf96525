package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andoma/nora-core/core/actions"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
)

func TestWebhookRejectsEmptyBody(t *testing.T) {
	o := New(WithSessionStore(newFakeStore()))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/fulfillment", bytes.NewReader(nil))
	o.WebhookHandler().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}

	var response webhookError
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if response.Error != ErrEmptyBody {
		t.Fatalf("expected %s, got %q", ErrEmptyBody, response.Error)
	}
}

func TestWebhookResolvesActionAndEchoesContexts(t *testing.T) {
	registry := actions.NewRegistry()
	registry.Register("lights", "on", func(context.Context, *nlu.DetectResponse, *sessions.Session, actions.Bag) (actions.Result, error) {
		return actions.Text("lights are on"), nil
	})

	store := newFakeStore()
	o := New(WithSessionStore(store), WithActionRegistry(registry), WithInstanceUID("uid-1"))

	payload, err := json.Marshal(nlu.WebhookRequest{
		Session: "projects/p/agent/sessions/web-42",
		QueryResult: nlu.QueryResult{
			Action: "lights.on",
			OutputContexts: []nlu.Context{
				{Name: "contexts/home", LifespanCount: 2},
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/fulfillment", bytes.NewReader(payload))
	o.WebhookHandler().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var response fulfillment.Fulfillment
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode fulfillment: %v", err)
	}
	if response.Text != "lights are on" {
		t.Fatalf("expected action result, got %q", response.Text)
	}
	if len(response.OutputContexts) != 1 || response.OutputContexts[0].Name != "contexts/home" {
		t.Fatalf("expected output contexts echoed, got %+v", response.OutputContexts)
	}
	if !response.TransformedBy("uid-1") {
		t.Fatalf("expected the response to pass through the transformer")
	}

	registered, _ := store.Get(context.Background(), "web-42")
	if registered == nil || registered.Channel != "webhook" {
		t.Fatalf("expected a webhook session registered for the path's session id, got %+v", registered)
	}
}

func TestWebhookBusinessErrorsStillAnswer200(t *testing.T) {
	registry := actions.NewRegistry()
	registry.Register("broken", "index", func(context.Context, *nlu.DetectResponse, *sessions.Session, actions.Bag) (actions.Result, error) {
		return nil, &actions.Error{Message: "it_broke"}
	})

	o := New(WithSessionStore(newFakeStore()), WithActionRegistry(registry))

	payload, _ := json.Marshal(nlu.WebhookRequest{
		Session:     "sessions/web-1",
		QueryResult: nlu.QueryResult{Action: "broken.index"},
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/fulfillment", bytes.NewReader(payload))
	o.WebhookHandler().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected business errors to answer 200, got %d", recorder.Code)
	}

	var response fulfillment.Fulfillment
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode fulfillment: %v", err)
	}
	if _, ok := response.Payload[fulfillment.PayloadError]; !ok {
		t.Fatalf("expected error payload, got %+v", response.Payload)
	}
}
