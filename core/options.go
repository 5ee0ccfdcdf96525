package orchestration

import (
	"context"

	"github.com/andoma/nora-core/core/actions"
	"github.com/andoma/nora-core/core/fulfillment"
	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
	"github.com/andoma/nora-core/core/speech"
	"github.com/andoma/nora-core/core/translate"
)

type OrchestratorOption func(*Orchestrator)

// OutputChannel delivers a fulfillment to a session's channel. Delivery
// success is reported, never thrown.
type OutputChannel interface {
	Deliver(ctx context.Context, f *fulfillment.Fulfillment, session *sessions.Session, bag actions.Bag) bool
}

// Recorder durably logs inputs and backend round trips for audit/training
// purposes. Invoked fire-and-forget; failures never affect the request.
type Recorder interface {
	Record(ctx context.Context, kind, sessionID string, data any) error
}

// WithBackend sets the NLU backend the pipeline resolves queries against.
func WithBackend(backend nlu.Backend) OrchestratorOption {
	return func(o *Orchestrator) { o.backend = backend }
}

// WithSessionStore sets the external session store.
func WithSessionStore(store sessions.Store) OrchestratorOption {
	return func(o *Orchestrator) { o.store = store }
}

// WithOutputChannel sets the collaborator fulfillments are delivered to.
func WithOutputChannel(output OutputChannel) OrchestratorOption {
	return func(o *Orchestrator) { o.output = output }
}

// WithTranslator sets the translation service used by the request and
// fulfillment transformers. Without one, translation steps are skipped.
func WithTranslator(translator translate.Translator) OrchestratorOption {
	return func(o *Orchestrator) { o.translator = translator }
}

// WithSpeechRecognizer sets the service audio inputs are transcribed with.
func WithSpeechRecognizer(recognizer speech.Recognizer) OrchestratorOption {
	return func(o *Orchestrator) { o.recognizer = recognizer }
}

// WithRecorder sets the audit recorder.
func WithRecorder(recorder Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// WithActionRegistry sets the registry matched actions are dispatched
// through.
func WithActionRegistry(registry *actions.Registry) OrchestratorOption {
	return func(o *Orchestrator) { o.registry = registry }
}

// WithLanguage sets the backend's configured language (default "en").
func WithLanguage(language string) OrchestratorOption {
	return func(o *Orchestrator) { o.language = language }
}

// WithInstanceUID sets the uid stamped as transformer provenance. Defaults
// to a random uuid.
func WithInstanceUID(uid string) OrchestratorOption {
	return func(o *Orchestrator) { o.instanceUID = uid }
}

// WithAudioExtension sets the container extension attached to backend
// output audio (default "mp3").
func WithAudioExtension(extension string) OrchestratorOption {
	return func(o *Orchestrator) { o.audioExtension = extension }
}

// WithMimicOfflineWebhook forces the body parser to ignore webhook-enriched
// responses and resolve locally, for debugging server-side enrichment.
func WithMimicOfflineWebhook(mimic bool) OrchestratorOption {
	return func(o *Orchestrator) { o.mimicOfflineWebhook = mimic }
}

// WithTrainingSession sets the session unrecognized utterances are reported
// to. Empty disables training requests.
func WithTrainingSession(sessionID string) OrchestratorOption {
	return func(o *Orchestrator) { o.trainingSessionID = sessionID }
}
