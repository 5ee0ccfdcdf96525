// Package nlu defines the contract towards the external natural-language
// backend: the detect-intent round trip, the shapes it returns and the
// webhook request it may forward for local resolution.
package nlu

import "context"

// TextInput is a text query, already translated into the language the
// backend expects.
type TextInput struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

// EventInput is a named event query with optional structured parameters.
type EventInput struct {
	Name         string         `json:"name"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	LanguageCode string         `json:"languageCode"`
}

// QueryInput carries exactly one populated variant.
type QueryInput struct {
	Text  *TextInput  `json:"text,omitempty"`
	Event *EventInput `json:"event,omitempty"`
}

// Intent describes the intent the backend matched, if any.
type Intent struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	IsFallback  bool   `json:"isFallback,omitempty"`
}

// Message is one declared fulfillment message on the matched intent. Only
// the payload variant is consulted by this core (localized error templates
// live there).
type Message struct {
	Payload map[string]any `json:"payload,omitempty"`
}

// Context is an input/output context attached to the query result.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// QueryResult is the backend's resolution of one query.
type QueryResult struct {
	QueryText           string         `json:"queryText,omitempty"`
	Action              string         `json:"action,omitempty"`
	Parameters          map[string]any `json:"parameters,omitempty"`
	Intent              *Intent        `json:"intent,omitempty"`
	FulfillmentText     string         `json:"fulfillmentText,omitempty"`
	FulfillmentMessages []Message      `json:"fulfillmentMessages,omitempty"`
	WebhookPayload      map[string]any `json:"webhookPayload,omitempty"`
	OutputContexts      []Context      `json:"outputContexts,omitempty"`
}

// Status reports whether server-side webhook enrichment ran and succeeded.
// A nil Status means no enrichment was attempted; Code zero means it ran and
// the response is already fully resolved.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// DetectResponse is the backend's answer to a detect-intent round trip.
type DetectResponse struct {
	ResponseID    string      `json:"responseId,omitempty"`
	QueryResult   QueryResult `json:"queryResult"`
	WebhookStatus *Status     `json:"webhookStatus,omitempty"`
	OutputAudio   []byte      `json:"outputAudio,omitempty"`
}

// FromWebhook reports whether the response was already resolved by
// server-side enrichment.
func (r *DetectResponse) FromWebhook() bool {
	return r.WebhookStatus != nil && r.WebhookStatus.Code == 0
}

// OriginalRequest carries the channel bag the originating adapter attached
// to the detect request, forwarded verbatim by the backend.
type OriginalRequest struct {
	Source  string         `json:"source,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WebhookRequest is the body the backend POSTs when it needs local
// resolution. Session is a path whose last segment is the session id.
type WebhookRequest struct {
	Session         string           `json:"session"`
	ResponseID      string           `json:"responseId,omitempty"`
	QueryResult     QueryResult      `json:"queryResult"`
	OriginalRequest *OriginalRequest `json:"originalDetectIntentRequest,omitempty"`
}

// TrainingExample is a new utterance/answer pair submitted back to the
// backend as training data.
type TrainingExample struct {
	QueryText    string `json:"queryText"`
	Answer       string `json:"answer"`
	LanguageCode string `json:"languageCode"`
}

// Backend is the external NLU service.
type Backend interface {
	// DetectIntent resolves one query for the given backend session id.
	// payload carries the encodable part of the channel bag.
	DetectIntent(ctx context.Context, sessionID string, query QueryInput, payload map[string]any) (*DetectResponse, error)

	// Train submits a new training example. Implementations should enable
	// webhook enrichment on the created intent.
	Train(ctx context.Context, example TrainingExample) error
}
