package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andoma/nora-core/core/actions"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
)

// ErrEmptyBody is the error code returned for empty or malformed webhook
// bodies.
const ErrEmptyBody = "ERR_EMPTY_BODY"

type webhookError struct {
	Error string `json:"error"`
}

// WebhookHandler returns the handler for the backend's fulfillment webhook.
// The route lives on an external router; only the handler is owned here.
// Business errors still answer 200 with an error-carrying fulfillment; only
// malformed requests are 400.
func (o *Orchestrator) WebhookHandler() http.Handler {
	return otelhttp.NewHandler(http.HandlerFunc(o.serveWebhook), "fulfillment webhook")
}

func (o *Orchestrator) serveWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.InfoContext(ctx, "webhook request received")

	w.Header().Set("Content-Type", "application/json")

	var request nlu.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Session == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(webhookError{Error: ErrEmptyBody})
		return
	}

	session, err := o.webhookSession(ctx, request.Session)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(webhookError{Error: err.Error()})
		return
	}

	body := &nlu.DetectResponse{ResponseID: request.ResponseID, QueryResult: request.QueryResult}
	var bag actions.Bag
	if request.OriginalRequest != nil {
		bag = request.OriginalRequest.Payload
	}

	f, err := o.ParseBody(ctx, body, session, bag)
	if err != nil {
		f = o.ErrorFulfillment(body, err)
	}
	f, err = o.TransformFulfillment(ctx, f, session)
	if err != nil {
		f = o.ErrorFulfillment(body, err)
	}

	f.OutputContexts = outputContexts(request.QueryResult.OutputContexts)

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(f)
}

// webhookSession resolves the session embedded in the request's session
// path, registering a webhook-channel session on first contact.
func (o *Orchestrator) webhookSession(ctx context.Context, sessionPath string) (*sessions.Session, error) {
	segments := strings.Split(sessionPath, "/")
	sessionID := segments[len(segments)-1]

	existing, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return o.store.Register(ctx, "webhook", sessionID, nil)
}

func outputContexts(contexts []nlu.Context) []fulfillment.Context {
	if len(contexts) == 0 {
		return nil
	}

	converted := make([]fulfillment.Context, 0, len(contexts))
	for _, c := range contexts {
		converted = append(converted, fulfillment.Context{
			Name:          c.Name,
			LifespanCount: c.LifespanCount,
			Parameters:    c.Parameters,
		})
	}
	return converted
}
