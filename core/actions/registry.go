package actions

import (
	"context"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/andoma/nora-core/core/nlu"
	"github.com/andoma/nora-core/core/sessions"
)

// DefaultAction is assumed when an action name carries no dot-separated
// action part.
const DefaultAction = "index"

// Registration is one resolved registry entry.
type Registration struct {
	Package string
	Action  string

	Handler      Handler
	Capabilities []sessions.Capability
	Parameters   *jsonschema.Schema
}

// RegistrationOption configures one Register call.
type RegistrationOption func(*Registration)

// WithRequiredCapabilities declares capabilities the session must hold
// before the handler runs.
func WithRequiredCapabilities(capabilities ...sessions.Capability) RegistrationOption {
	return func(r *Registration) {
		r.Capabilities = append(r.Capabilities, capabilities...)
	}
}

// WithParameters declares a prototype whose reflected JSON schema describes
// the parameters the action consumes.
func WithParameters(prototype any) RegistrationOption {
	return func(r *Registration) {
		r.Parameters = jsonschema.Reflect(prototype)
	}
}

// Registry maps (package, action) pairs to statically registered handlers,
// populated at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*Registration
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]*Registration{}}
}

// Register binds a handler under pkg and action. An empty action means
// DefaultAction. Re-registering the same name replaces the previous handler.
func (r *Registry) Register(pkg, action string, handler Handler, opts ...RegistrationOption) {
	if action == "" {
		action = DefaultAction
	}

	registration := &Registration{
		Package: pkg,
		Action:  action,
		Handler: handler,
	}
	for _, opt := range opts {
		opt(registration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[pkg+"."+action] = registration
}

// Resolve splits name on the first separator into package and action
// (defaulting the action part) and returns the matching registration.
func (r *Registry) Resolve(name string) (*Registration, error) {
	pkg, action, found := strings.Cut(name, ".")
	if !found || action == "" {
		action = DefaultAction
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	registration, ok := r.handlers[pkg+"."+action]
	if !ok {
		return nil, &UnknownActionError{Name: name}
	}
	return registration, nil
}

// Invoke resolves name, enforces every declared capability against the
// session's grants and runs the handler. On a missing capability the
// handler is never invoked and no partial execution occurs.
func (r *Registry) Invoke(ctx context.Context, name string, body *nlu.DetectResponse, session *sessions.Session, bag Bag) (Result, error) {
	registration, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	for _, capability := range registration.Capabilities {
		if !session.Authorized(capability) {
			return nil, &AuthorizationError{Capability: capability}
		}
	}

	logger.InfoContext(ctx, "invoking action",
		"package", registration.Package, "action", registration.Action, "session.id", session.ID)
	return registration.Handler(ctx, body, session, bag)
}

// Describe returns the declared parameter schema for every registration
// that has one, keyed by dotted name. Used to synchronize intent parameter
// definitions with the backend.
func (r *Registry) Describe() map[string]*jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := map[string]*jsonschema.Schema{}
	for name, registration := range r.handlers {
		if registration.Parameters != nil {
			schemas[name] = registration.Parameters
		}
	}
	return schemas
}
