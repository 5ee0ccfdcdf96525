// Package orchestration sequences one request/response cycle of the
// assistant: it accepts heterogeneous inputs, resolves them through the NLU
// backend and the action registry into a normalized fulfillment, and
// delivers that fulfillment back to the originating session's channel.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/andoma/nora-core/core/actions"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
	"github.com/andoma/nora-core/core/speech"
	"github.com/andoma/nora-core/core/translate"
)

var (
	// ErrNoInput reports that none of the input variants was populated.
	ErrNoInput = errors.New("no input variant populated, need one of text, event, audio or answer")
	// ErrAmbiguousInput reports that more than one input variant was
	// populated.
	ErrAmbiguousInput = errors.New("more than one input variant populated")
	// ErrNoRecognizer reports an audio input with no recognizer configured.
	ErrNoRecognizer = errors.New("no speech recognizer configured")
)

// Event is a named input event with optional structured parameters.
type Event struct {
	Name       string
	Parameters map[string]any
}

// InputParams is the orchestrator's entry contract: exactly one of Text,
// Event, Audio or Answer populated, plus an opaque channel bag passed
// through unmodified. Answer is a ready reply delivered to the session
// without entering NLU resolution.
type InputParams struct {
	Text   string
	Event  *Event
	Audio  []byte
	Answer string
	Bag    actions.Bag
}

func (p InputParams) validate() error {
	populated := 0
	if p.Text != "" {
		populated++
	}
	if p.Event != nil {
		populated++
	}
	if len(p.Audio) > 0 {
		populated++
	}
	if p.Answer != "" {
		populated++
	}

	switch {
	case populated == 0:
		return ErrNoInput
	case populated > 1:
		return ErrAmbiguousInput
	}
	return nil
}

// Orchestrator is the facade over the fulfillment pipeline. All
// collaborators are injected at construction; requests are processed
// independently and concurrently with no cross-request locking.
type Orchestrator struct {
	backend    nlu.Backend
	store      sessions.Store
	output     OutputChannel
	translator translate.Translator
	recognizer speech.Recognizer
	recorder   Recorder
	registry   *actions.Registry

	language            string
	instanceUID         string
	audioExtension      string
	mimicOfflineWebhook bool
	trainingSessionID   string
}

func New(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:       actions.NewRegistry(),
		language:       "en",
		instanceUID:    uuid.NewString(),
		audioExtension: "mp3",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InstanceUID returns the uid stamped as transformer provenance; scheduler
// jobs owned by this instance carry the same uid.
func (o *Orchestrator) InstanceUID() string { return o.instanceUID }

// Registry returns the action registry handlers are registered on.
func (o *Orchestrator) Registry() *actions.Registry { return o.registry }

// ProcessInput resolves one input into a fulfillment for the session and
// delivers it. The returned bool is the delivery result reported by the
// output channel.
func (o *Orchestrator) ProcessInput(ctx context.Context, params InputParams, session *sessions.Session) (bool, error) {
	ctx, span := tracer.Start(ctx, "process input")
	defer span.End()

	if err := params.validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	logger.InfoContext(ctx, "processing input", "session.id", session.ID)

	// Repeat mode: forward plain text verbatim to the linked session's
	// channel, bypassing intent resolution entirely.
	if session.RepeatWith != nil && params.Text != "" {
		target := session.RepeatWith
		f, err := o.TransformFulfillment(ctx, &fulfillment.Fulfillment{Text: params.Text}, target)
		if err != nil {
			return false, fmt.Errorf("failed to transform repeated text: %w", err)
		}
		return o.output.Deliver(ctx, f, target, params.Bag), nil
	}

	o.record(ctx, "input", session.ID, params)

	var (
		f   *fulfillment.Fulfillment
		err error
	)
	switch {
	case params.Text != "":
		f, err = o.TextRequest(ctx, params.Text, session, params.Bag)
	case params.Event != nil:
		f, err = o.EventRequest(ctx, *params.Event, session, params.Bag)
	case params.Answer != "":
		// A ready answer skips NLU resolution entirely.
		f = &fulfillment.Fulfillment{Text: params.Answer}
	default:
		var text string
		text, err = o.recognize(ctx, params.Audio, session)
		if err == nil {
			f, err = o.TextRequest(ctx, text, session, params.Bag)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	f, err = o.TransformFulfillment(ctx, f, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	return o.output.Deliver(ctx, f, session, params.Bag), nil
}

// TextRequest translates text into the backend's language when needed,
// runs the detect round trip and parses the response.
func (o *Orchestrator) TextRequest(ctx context.Context, text string, session *sessions.Session, bag actions.Bag) (*fulfillment.Fulfillment, error) {
	logger.InfoContext(ctx, "text request", "session.id", session.ID)

	input, err := o.textInput(ctx, text, session)
	if err != nil {
		return nil, err
	}
	response, err := o.detect(ctx, session, nlu.QueryInput{Text: input}, bag)
	if err != nil {
		return nil, err
	}
	return o.ParseBody(ctx, response, session, bag)
}

// EventRequest resolves a named event through the backend.
func (o *Orchestrator) EventRequest(ctx context.Context, event Event, session *sessions.Session, bag actions.Bag) (*fulfillment.Fulfillment, error) {
	logger.InfoContext(ctx, "event request", "session.id", session.ID, "event", event.Name)

	input := &nlu.EventInput{
		Name:         event.Name,
		Parameters:   event.Parameters,
		LanguageCode: session.TranslateTo,
	}
	response, err := o.detect(ctx, session, nlu.QueryInput{Event: input}, bag)
	if err != nil {
		return nil, err
	}
	return o.ParseBody(ctx, response, session, bag)
}

// textInput builds the backend text input, translating the text into the
// backend's configured language when the session speaks another one.
func (o *Orchestrator) textInput(ctx context.Context, text string, session *sessions.Session) (*nlu.TextInput, error) {
	if o.language != session.TranslateTo && o.translator != nil {
		translated, err := o.translator.Translate(ctx, text, o.language, session.TranslateTo)
		if err != nil {
			return nil, fmt.Errorf("failed to translate request text: %w", err)
		}
		text = translated
	}

	return &nlu.TextInput{Text: text, LanguageCode: session.TranslateTo}, nil
}

func (o *Orchestrator) detect(ctx context.Context, session *sessions.Session, query nlu.QueryInput, bag actions.Bag) (*nlu.DetectResponse, error) {
	ctx, span := tracer.Start(ctx, "detect intent")
	defer span.End()

	// Backend session ids must not contain path separators.
	backendSessionID := strings.ReplaceAll(session.ID, "/", "_")

	response, err := o.backend.DetectIntent(ctx, backendSessionID, query, encodableBag(bag))
	if err != nil {
		recordedErr := fmt.Errorf("detect intent failed: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return nil, recordedErr
	}

	o.record(ctx, "sent_detect_intent", session.ID, query)
	return response, nil
}

func (o *Orchestrator) recognize(ctx context.Context, audio []byte, session *sessions.Session) (string, error) {
	if o.recognizer == nil {
		return "", ErrNoRecognizer
	}
	text, err := o.recognizer.Recognize(ctx, audio, session.TranslateFrom)
	if err != nil {
		return "", fmt.Errorf("failed to recognize audio: %w", err)
	}
	return text, nil
}

// record writes an audit entry fire-and-forget; failures are logged and
// swallowed.
func (o *Orchestrator) record(ctx context.Context, kind, sessionID string, data any) {
	if o.recorder == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := o.recorder.Record(ctx, kind, sessionID, data); err != nil {
			logger.ErrorContext(ctx, "failed to record audit entry", "kind", kind, "error", err.Error())
		}
	}()
}

// encodableBag extracts the portion of the channel bag that is safe to
// forward to the backend as query payload.
func encodableBag(bag actions.Bag) map[string]any {
	if bag == nil {
		return nil
	}
	if encodable, ok := bag["encodable"].(map[string]any); ok {
		return encodable
	}
	return nil
}
