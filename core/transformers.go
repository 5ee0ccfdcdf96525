package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"

	"github.com/andoma/nora-core/core/actions"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
)

// TransformFulfillment localizes a fulfillment for the session and stamps
// it with this instance's provenance. Idempotent: a fulfillment already
// stamped by this instance is returned unchanged, so re-entry never
// translates twice. The input is never mutated.
func (o *Orchestrator) TransformFulfillment(ctx context.Context, f *fulfillment.Fulfillment, session *sessions.Session) (*fulfillment.Fulfillment, error) {
	if f == nil {
		return nil, nil
	}

	if f.TransformedBy(o.instanceUID) {
		return f, nil
	}

	transformed := &fulfillment.Fulfillment{}
	if err := copier.CopyWithOption(transformed, f, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy fulfillment: %w", err)
	}

	payload := transformed.EnsurePayload()

	if transformed.Text != "" && o.translator != nil {
		translateFrom, _ := payload[fulfillment.PayloadTranslateFrom].(string)

		switch {
		case session.TranslateTo != o.language:
			text, err := o.translator.Translate(ctx, transformed.Text, session.TranslateTo, o.language)
			if err != nil {
				return nil, fmt.Errorf("failed to translate fulfillment: %w", err)
			}
			transformed.Text = text
			payload[fulfillment.PayloadTranslatedTo] = session.TranslateTo

		case translateFrom != "" && translateFrom != session.TranslateTo:
			text, err := o.translator.Translate(ctx, transformed.Text, session.TranslateTo, translateFrom)
			if err != nil {
				return nil, fmt.Errorf("failed to translate fulfillment: %w", err)
			}
			transformed.Text = text
			payload[fulfillment.PayloadTranslatedTo] = session.TranslateTo
		}
	}

	// Stamp whether or not translation occurred, so the idempotency check
	// holds on any future re-entry.
	payload[fulfillment.PayloadTransformerUID] = o.instanceUID
	payload[fulfillment.PayloadTransformedAt] = time.Now().UnixMilli()

	return transformed, nil
}

// ErrorFulfillment converts an action error into a fulfillment. When the
// matched intent declares a localized template keyed by the error message,
// the template is used with the error's data interpolated; otherwise the raw
// message is humanized. The error is always attached under the payload's
// error key so downstream consumers can branch on its kind.
func (o *Orchestrator) ErrorFulfillment(body *nlu.DetectResponse, err error) *fulfillment.Fulfillment {
	f := &fulfillment.Fulfillment{}

	message := err.Error()
	errorPayload := map[string]any{"message": message}

	var actionErr *actions.Error
	if errors.As(err, &actionErr) && actionErr.Data != nil {
		errorPayload["data"] = actionErr.Data
	}

	if template, ok := errorTemplate(body, message); ok {
		if actionErr != nil {
			template = interpolate(template, actionErr.Data)
		}
		f.Text = template
	} else {
		f.Text = humanize(message)
	}

	f.Payload = map[string]any{fulfillment.PayloadError: errorPayload}
	return f
}

// errorTemplate searches the matched intent's declared fulfillment messages
// for a payload entry keyed by the error message, the backend-side lookup
// table of localized error templates.
func errorTemplate(body *nlu.DetectResponse, message string) (string, bool) {
	if body == nil {
		return "", false
	}

	for _, declared := range body.QueryResult.FulfillmentMessages {
		templates, ok := declared.Payload[fulfillment.PayloadError].(map[string]any)
		if !ok {
			continue
		}
		if template, ok := templates[message].(string); ok {
			return template, true
		}
	}
	return "", false
}

// interpolate substitutes {key} placeholders with the error's structured
// data. Unknown placeholders are left untouched.
func interpolate(template string, data map[string]any) string {
	for key, value := range data {
		template = strings.ReplaceAll(template, "{"+key+"}", fmt.Sprint(value))
	}
	return template
}

// humanize renders a machine error message as user-presentable text.
func humanize(message string) string {
	return strings.ReplaceAll(message, "_", " ")
}
