// Package store holds the per-visitor client state: the current session
// and one paginated list per collection.
package store

import (
	"context"
	"fmt"
	"sync"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"
)

// SessionStore holds the authenticated identity of one visitor.
// A session without a UserID is never held.
type SessionStore struct {
	mu      sync.RWMutex
	session *models.Session
	subs    map[int]func(*models.Session)
	nextID  int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{subs: make(map[int]func(*models.Session))}
}

func (s *SessionStore) Current() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// Set replaces the session wholesale; nil or an anonymous session clears it.
func (s *SessionStore) Set(session *models.Session) {
	var next *models.Session
	if session != nil && session.UserID != "" {
		cp := *session
		next = &cp
	}

	s.mu.Lock()
	s.session = next
	subs := make([]func(*models.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(s.Current())
	}
}

func (s *SessionStore) Clear() {
	s.Set(nil)
}

// Subscribe registers fn for every change. The returned func unsubscribes.
func (s *SessionStore) Subscribe(fn func(*models.Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// BindSession performs the initial session check and then mirrors every
// auth change into store. The returned func stops the mirroring.
func BindSession(ctx context.Context, auth *gateway.AuthClient, store *SessionStore) (func(), error) {
	session, err := auth.GetCurrentSession(ctx)
	if err != nil {
		store.Clear()
		return func() {}, fmt.Errorf("ошибка проверки сессии: %w", err)
	}
	store.Set(session)

	unsubscribe := auth.OnSessionChange(func(_ gateway.AuthEvent, session *models.Session) {
		store.Set(session)
	})

	return unsubscribe, nil
}
