// Package actions implements the static action registry: dotted action names
// resolved to statically registered handlers, capability enforcement against
// the session's grants, and single-value or streamed results.
package actions

import (
	"context"
	"fmt"

	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
)

// Bag is the opaque channel-specific context forwarded to handlers
// unmodified.
type Bag map[string]any

// Result is the value an action handler resolves into: a plain Text, a
// partial Response, or a Stream of fulfillments produced over time.
type Result interface {
	isResult()
}

// Text is a plain-text result; the orchestrator wraps it into a fulfillment.
type Text string

// Response is a partial fulfillment returned as-is to the pipeline.
type Response struct {
	Fulfillment *fulfillment.Fulfillment
}

// StreamItem is one element of a streamed result. A non-nil Err is terminal:
// the producer must close the channel after sending it.
type StreamItem struct {
	Fulfillment *fulfillment.Fulfillment
	Err         error
}

// Stream is a lazily produced sequence of fulfillments. The producer closes
// the channel when done.
type Stream <-chan StreamItem

func (Text) isResult()     {}
func (Response) isResult() {}
func (Stream) isResult()   {}

// Handler resolves one matched action into a Result. body is the full
// backend response the action was matched from.
type Handler func(ctx context.Context, body *nlu.DetectResponse, session *sessions.Session, bag Bag) (Result, error)

// Error is an action failure carrying structured data for localized error
// templates. Message doubles as the template lookup key.
type Error struct {
	Message string
	Data    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// UnknownActionError reports a name no handler was registered under.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Name)
}

// AuthorizationError reports a required capability missing from the
// session's grant set. The handler is never invoked.
type AuthorizationError struct {
	Capability sessions.Capability
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("missing %s authorization for your session", e.Capability)
}
