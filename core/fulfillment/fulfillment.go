// Package fulfillment defines the normalized response object that every
// request, action and scheduled program ultimately resolves into before it is
// handed to an output channel.
package fulfillment

// Payload keys written by the orchestration pipeline. Anything else in the
// payload is opaque channel- or action-specific data and is passed through
// unmodified.
const (
	PayloadError           = "error"
	PayloadTransformerUID  = "transformerUid"
	PayloadTransformedAt   = "transformedAt"
	PayloadTranslatedTo    = "translatedTo"
	PayloadTranslateFrom   = "translateFrom"
	PayloadHandledByStream = "handledByStream"
	PayloadLanguage        = "language"
)

// Audio is a synthesized audio buffer paired with its container extension.
type Audio struct {
	Data      []byte `json:"data,omitempty"`
	Extension string `json:"extension,omitempty"`
}

// Event is a follow-up event request addressed back to the NLU backend.
type Event struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Context is an output context echoed back on the webhook response.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// Fulfillment is the normalized response delivered to a session's channel.
//
// JSON field names follow the webhook wire contract.
type Fulfillment struct {
	Text           string         `json:"fulfillmentText,omitempty"`
	Audio          *Audio         `json:"audio,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	FollowupEvent  *Event         `json:"followupEventInput,omitempty"`
	OutputContexts []Context      `json:"outputContexts,omitempty"`
}

// EnsurePayload initializes the payload map if absent and returns it.
func (f *Fulfillment) EnsurePayload() map[string]any {
	if f.Payload == nil {
		f.Payload = map[string]any{}
	}
	return f.Payload
}

// TransformedBy reports whether f already carries uid as its transformer
// provenance marker.
func (f *Fulfillment) TransformedBy(uid string) bool {
	if f.Payload == nil {
		return false
	}
	marker, ok := f.Payload[PayloadTransformerUID].(string)
	return ok && marker == uid
}
