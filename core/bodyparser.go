package orchestration

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/andoma/nora-core/core/actions"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
)

// UnhandledEvent is the follow-up event synthesized when the backend
// matched neither an action nor an intent, so the backend can react
// out-of-band. It is a terminal fallback, never retried within a request.
const UnhandledEvent = "ai_unhandled"

// TrainingEvent is the synthetic event fed to the training session when a
// fallback intent matched.
const TrainingEvent = "training"

// ParseBody decides how a backend response becomes a fulfillment: the
// webhook fast path when server-side enrichment already ran, local action
// resolution when an action name is present, the intent's declared text
// when only an intent matched, and the unhandled follow-up otherwise.
func (o *Orchestrator) ParseBody(ctx context.Context, body *nlu.DetectResponse, session *sessions.Session, bag actions.Bag) (*fulfillment.Fulfillment, error) {
	if body.WebhookStatus != nil && body.WebhookStatus.Code > 0 {
		return &fulfillment.Fulfillment{
			Payload: map[string]any{
				fulfillment.PayloadError: map[string]any{"message": body.WebhookStatus.Message},
			},
		}, nil
	}

	fromWebhook := body.FromWebhook()

	if o.mimicOfflineWebhook {
		logger.WarnContext(ctx, "miming an offline webhook server")
	} else if fromWebhook {
		logger.DebugContext(ctx, "using response already parsed by the webhook")
		o.record(ctx, "body_parser_parsed_from_webhook", session.ID, body)
		return o.webhookFulfillment(ctx, body), nil
	}

	o.record(ctx, "body_parser", session.ID, body)

	if body.QueryResult.Action != "" {
		logger.DebugContext(ctx, "resolving action", "action", body.QueryResult.Action)
		return o.resolveAction(ctx, body.QueryResult.Action, body, session, bag), nil
	}

	if body.QueryResult.Intent != nil {
		logger.DebugContext(ctx, "using matched intent", "intent", body.QueryResult.Intent.Name)

		if body.QueryResult.Intent.IsFallback {
			// Ask to be trained without blocking the current response.
			go o.requestTraining(context.WithoutCancel(ctx), body.QueryResult.QueryText)
		}

		f := &fulfillment.Fulfillment{Text: body.QueryResult.FulfillmentText}
		if fromWebhook {
			f.Audio = o.outputAudio(ctx, body)
		}
		return f, nil
	}

	logger.InfoContext(ctx, "no action or intent matched, synthesizing followup", "event", UnhandledEvent)
	return &fulfillment.Fulfillment{
		FollowupEvent: &fulfillment.Event{Name: UnhandledEvent},
	}, nil
}

// webhookFulfillment lifts a webhook-enriched response directly into a
// fulfillment; no local dispatch is performed on this path.
func (o *Orchestrator) webhookFulfillment(ctx context.Context, body *nlu.DetectResponse) *fulfillment.Fulfillment {
	return &fulfillment.Fulfillment{
		Text:    body.QueryResult.FulfillmentText,
		Audio:   o.outputAudio(ctx, body),
		Payload: body.QueryResult.WebhookPayload,
	}
}

// outputAudio returns the response's synthesized audio, unless the webhook
// payload declares a voice language that does not match this instance's.
func (o *Orchestrator) outputAudio(ctx context.Context, body *nlu.DetectResponse) *fulfillment.Audio {
	if len(body.OutputAudio) == 0 {
		return nil
	}

	if voiceLanguage, ok := body.QueryResult.WebhookPayload[fulfillment.PayloadLanguage].(string); ok && voiceLanguage != o.language {
		logger.WarnContext(ctx, "dropping output audio because of a voice language mismatch",
			"voice", voiceLanguage, "language", o.language)
		return nil
	}

	return &fulfillment.Audio{Data: body.OutputAudio, Extension: o.audioExtension}
}

// resolveAction dispatches a matched action through the registry. Handler
// and authorization failures become error fulfillments, never request
// failures.
func (o *Orchestrator) resolveAction(ctx context.Context, name string, body *nlu.DetectResponse, session *sessions.Session, bag actions.Bag) *fulfillment.Fulfillment {
	if pkg, _, _ := strings.Cut(name, "."); pkg == "train" {
		return o.trainAction(ctx, body)
	}

	result, err := o.registry.Invoke(ctx, name, body, session, bag)
	if err != nil {
		logger.ErrorContext(ctx, "error while executing action", "action", name, "error", err.Error())
		return o.ErrorFulfillment(body, err)
	}

	switch r := result.(type) {
	case actions.Text:
		return &fulfillment.Fulfillment{Text: string(r)}

	case actions.Response:
		return r.Fulfillment

	case actions.Stream:
		go o.drainStream(context.WithoutCancel(ctx), body, r, session, bag)
		return &fulfillment.Fulfillment{
			Payload: map[string]any{fulfillment.PayloadHandledByStream: true},
		}

	default:
		logger.WarnContext(ctx, "action resolved to no result", "action", name)
		return &fulfillment.Fulfillment{}
	}
}

// trainAction handles the train pseudo-action: feed the conversation's most
// recent utterance and the recognized query text back to the backend as a
// training example, echoing the raw query result unchanged.
func (o *Orchestrator) trainAction(ctx context.Context, body *nlu.DetectResponse) *fulfillment.Fulfillment {
	if len(body.QueryResult.OutputContexts) > 0 {
		queryText, _ := body.QueryResult.OutputContexts[0].Parameters["queryText"].(string)
		answer := body.QueryResult.QueryText

		go func(ctx context.Context) {
			example := nlu.TrainingExample{QueryText: queryText, Answer: answer, LanguageCode: o.language}
			if err := o.backend.Train(ctx, example); err != nil {
				logger.ErrorContext(ctx, "failed to submit training example", "error", err.Error())
			}
		}(context.WithoutCancel(ctx))
	} else {
		logger.WarnContext(ctx, "train action without output contexts, nothing to train on")
	}

	return &fulfillment.Fulfillment{
		Text:    body.QueryResult.FulfillmentText,
		Payload: body.QueryResult.WebhookPayload,
	}
}

// requestTraining re-enters the pipeline with a synthetic training event
// addressed to the configured training session. Failures are logged and
// swallowed; the primary response is never affected.
func (o *Orchestrator) requestTraining(ctx context.Context, queryText string) {
	if o.trainingSessionID == "" {
		return
	}

	trainingSession, err := o.store.Get(ctx, o.trainingSessionID)
	if err != nil || trainingSession == nil {
		logger.ErrorContext(ctx, "training session unavailable", "session.id", o.trainingSessionID)
		return
	}

	params := InputParams{Event: &Event{
		Name:       TrainingEvent,
		Parameters: map[string]any{"queryText": queryText},
	}}
	if _, err := o.ProcessInput(ctx, params, trainingSession); err != nil {
		logger.ErrorContext(ctx, "training request failed", "error", err.Error())
	}
}

// drainStream consumes a streamed action result in generation order,
// transforming and delivering every item. An item carrying an error is
// terminal: it is converted through the error transformer, delivered on the
// same path, and consumption stops; already-delivered items are unaffected.
func (o *Orchestrator) drainStream(ctx context.Context, body *nlu.DetectResponse, stream actions.Stream, session *sessions.Session, bag actions.Bag) {
	ctx, span := tracer.Start(ctx, "drain action stream")
	defer span.End()

	for item := range stream {
		if item.Err != nil {
			recordedErr := fmt.Errorf("action stream failed: %w", item.Err)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
			o.deliverStreamItem(ctx, body, o.ErrorFulfillment(body, item.Err), session, bag)
			return
		}

		o.deliverStreamItem(ctx, body, item.Fulfillment, session, bag)
	}
}

// deliverStreamItem transforms and delivers one streamed fulfillment; a
// transform failure is itself converted into an error fulfillment so the
// channel still hears back.
func (o *Orchestrator) deliverStreamItem(ctx context.Context, body *nlu.DetectResponse, f *fulfillment.Fulfillment, session *sessions.Session, bag actions.Bag) bool {
	transformed, err := o.TransformFulfillment(ctx, f, session)
	if err != nil {
		logger.ErrorContext(ctx, "failed to transform streamed fulfillment", "error", err.Error())
		transformed, err = o.TransformFulfillment(ctx, o.ErrorFulfillment(body, err), session)
		if err != nil {
			return false
		}
	}
	return o.output.Deliver(ctx, transformed, session, bag)
}
