package orchestration

import (
	"context"
	"testing"

	"github.com/andoma/nora-core/core/actions"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
)

func TestTransformFulfillmentTranslatesAndStamps(t *testing.T) {
	o := New(WithTranslator(fakeTranslator{}), WithLanguage("en"), WithInstanceUID("uid-1"))
	session := &sessions.Session{ID: "s1", TranslateTo: "it"}

	f, err := o.TransformFulfillment(context.Background(), &fulfillment.Fulfillment{Text: "hello"}, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Text != "it<-en:hello" {
		t.Fatalf("expected translated text, got %q", f.Text)
	}
	if got := f.Payload[fulfillment.PayloadTranslatedTo]; got != "it" {
		t.Fatalf("expected translatedTo it, got %v", got)
	}
	if got := f.Payload[fulfillment.PayloadTransformerUID]; got != "uid-1" {
		t.Fatalf("expected provenance stamp, got %v", got)
	}
	if _, ok := f.Payload[fulfillment.PayloadTransformedAt]; !ok {
		t.Fatalf("expected transformedAt stamp")
	}
}

func TestTransformFulfillmentIsIdempotent(t *testing.T) {
	o := New(WithTranslator(fakeTranslator{}), WithLanguage("en"), WithInstanceUID("uid-1"))
	session := &sessions.Session{ID: "s1", TranslateTo: "it"}

	once, err := o.TransformFulfillment(context.Background(), &fulfillment.Fulfillment{Text: "hello"}, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := o.TransformFulfillment(context.Background(), once, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if twice.Text != once.Text {
		t.Fatalf("expected second transform to be a no-op, got %q then %q", once.Text, twice.Text)
	}
}

func TestTransformFulfillmentStampsEvenWithoutTranslation(t *testing.T) {
	o := New(WithTranslator(fakeTranslator{}), WithLanguage("en"), WithInstanceUID("uid-1"))
	session := &sessions.Session{ID: "s1", TranslateTo: "en"}

	f, err := o.TransformFulfillment(context.Background(), &fulfillment.Fulfillment{Text: "hello"}, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Text != "hello" {
		t.Fatalf("expected untouched text, got %q", f.Text)
	}
	if !f.TransformedBy("uid-1") {
		t.Fatalf("expected provenance stamp even without translation")
	}
}

func TestTransformFulfillmentUsesTranslateFromHint(t *testing.T) {
	o := New(WithTranslator(fakeTranslator{}), WithLanguage("en"), WithInstanceUID("uid-1"))
	session := &sessions.Session{ID: "s1", TranslateTo: "en"}

	f, err := o.TransformFulfillment(context.Background(), &fulfillment.Fulfillment{
		Text:    "bonjour",
		Payload: map[string]any{fulfillment.PayloadTranslateFrom: "fr"},
	}, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Text != "en<-fr:bonjour" {
		t.Fatalf("expected translation from the payload hint, got %q", f.Text)
	}
}

func TestTransformFulfillmentDoesNotMutateInput(t *testing.T) {
	o := New(WithTranslator(fakeTranslator{}), WithLanguage("en"), WithInstanceUID("uid-1"))
	session := &sessions.Session{ID: "s1", TranslateTo: "it"}

	original := &fulfillment.Fulfillment{Text: "hello", Payload: map[string]any{"keep": true}}
	if _, err := o.TransformFulfillment(context.Background(), original, session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if original.Text != "hello" {
		t.Fatalf("expected input text untouched, got %q", original.Text)
	}
	if _, stamped := original.Payload[fulfillment.PayloadTransformerUID]; stamped {
		t.Fatalf("expected input payload untouched")
	}
}

func TestErrorFulfillmentUsesLocalizedTemplate(t *testing.T) {
	o := New()
	body := &nlu.DetectResponse{
		QueryResult: nlu.QueryResult{
			FulfillmentMessages: []nlu.Message{
				{Payload: map[string]any{"unrelated": true}},
				{Payload: map[string]any{
					fulfillment.PayloadError: map[string]any{
						"device_not_found": "I can't find {device} anywhere",
					},
				}},
			},
		},
	}

	f := o.ErrorFulfillment(body, &actions.Error{
		Message: "device_not_found",
		Data:    map[string]any{"device": "the camera"},
	})

	if f.Text != "I can't find the camera anywhere" {
		t.Fatalf("expected interpolated template, got %q", f.Text)
	}

	errPayload, ok := f.Payload[fulfillment.PayloadError].(map[string]any)
	if !ok {
		t.Fatalf("expected error attached to payload")
	}
	if errPayload["message"] != "device_not_found" {
		t.Fatalf("expected original message preserved, got %v", errPayload["message"])
	}
}

func TestErrorFulfillmentHumanizesUnknownErrors(t *testing.T) {
	o := New()
	body := &nlu.DetectResponse{}

	f := o.ErrorFulfillment(body, &actions.Error{Message: "missing_admin_authorization"})

	if f.Text != "missing admin authorization" {
		t.Fatalf("expected humanized message, got %q", f.Text)
	}
	if _, ok := f.Payload[fulfillment.PayloadError]; !ok {
		t.Fatalf("expected error attached to payload")
	}
}
