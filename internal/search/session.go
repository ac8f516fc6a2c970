package search

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"romgrab/internal/services"
)

// Session holds the most recent result set for one caller. A new search
// replaces the previous set entirely. The zero value is not usable; call
// NewSession.
type Session struct {
	ID string

	mu   sync.RWMutex
	last *ResultSet
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Replace installs rs as the active result set.
func (s *Session) Replace(rs *ResultSet) {
	s.mu.Lock()
	s.last = rs
	s.mu.Unlock()
}

// Last returns the active result set, if any search has run.
func (s *Session) Last() (*ResultSet, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

// Lookup resolves a 1-based index against the active result set.
func (s *Session) Lookup(index int) (Result, error) {
	rs, ok := s.Last()
	if !ok {
		return Result{}, services.Wrap(services.ErrNoActiveSearch, "search", "lookup",
			"run a search before referring to results by index", nil)
	}
	result, ok := rs.At(index)
	if !ok {
		return Result{}, services.Wrap(services.ErrNotFound, "search", "lookup",
			fmt.Sprintf("index %d is outside the last search (1-%d)", index, rs.Len()), nil)
	}
	return result, nil
}
