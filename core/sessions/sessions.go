// Package sessions defines the session entity and the store contract the
// orchestration core reads it through. Persistence is owned by the embedding
// application; the core never assumes atomicity across two reads of the same
// session.
package sessions

import "context"

// Capability is one grant in a session's authorization set.
type Capability string

const (
	CapabilityAdmin   Capability = "admin"
	CapabilityCamera  Capability = "camera"
	CapabilityCommand Capability = "command"
)

// Session identifies one conversation endpoint and its locale/authorization
// state.
type Session struct {
	ID      string
	Channel string

	// TranslateFrom is the language the user speaks, TranslateTo the
	// language responses are rendered in. Both are always resolvable to a
	// valid locale.
	TranslateFrom string
	TranslateTo   string

	Authorizations []Capability

	// RepeatWith, when set, redirects any plain-text input verbatim to the
	// referenced session's channel instead of resolving it.
	RepeatWith *Session

	// Pending carries scheduler state awaiting this session (owned by the
	// store, opaque to the core).
	Pending map[string]any

	// Context is opaque channel metadata captured at registration.
	Context map[string]any
}

// Authorized reports whether the session's grant set contains capability.
func (s *Session) Authorized(capability Capability) bool {
	for _, granted := range s.Authorizations {
		if granted == capability {
			return true
		}
	}
	return false
}

// Store is the external session persistence contract.
type Store interface {
	// Get returns the session with the given id, or nil if unknown.
	Get(ctx context.Context, id string) (*Session, error)

	// Register creates (or refreshes) a session for a channel, capturing
	// opaque channel context.
	Register(ctx context.Context, channel, id string, channelContext map[string]any) (*Session, error)
}
