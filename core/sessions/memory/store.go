// Package memory provides an in-memory sessions.Store for tests and
// single-process embeddings.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/andoma/nora-core/core/sessions"
)

type Store struct {
	mu              sync.Mutex
	sessions        map[string]*sessions.Session
	defaultLanguage string
}

// NewStore returns an empty store. Registered sessions default both
// translation codes to language.
func NewStore(language string) *Store {
	return &Store{
		sessions:        map[string]*sessions.Session{},
		defaultLanguage: language,
	}
}

func (s *Store) Get(_ context.Context, id string) (*sessions.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id], nil
}

func (s *Store) Register(_ context.Context, channel, id string, channelContext map[string]any) (*sessions.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}

	if existing, ok := s.sessions[id]; ok {
		existing.Channel = channel
		existing.Context = channelContext
		return existing, nil
	}

	session := &sessions.Session{
		ID:            id,
		Channel:       channel,
		TranslateFrom: s.defaultLanguage,
		TranslateTo:   s.defaultLanguage,
		Context:       channelContext,
	}
	s.sessions[id] = session
	return session, nil
}

// Put stores a preconstructed session, replacing any previous one with the
// same id.
func (s *Store) Put(session *sessions.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}
