package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore хранит сессии в памяти процесса
type MemoryStore struct {
	sessions map[string]*record
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemoryStore создает пустое in-memory хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*record),
		now:      time.Now,
	}
}

// SetChallenge реализует Store
func (s *MemoryStore) SetChallenge(_ context.Context, id, answer string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.sessions[id]
	if !ok || rec.expired(now) {
		rec = &record{}
		s.sessions[id] = rec
	}
	rec.Challenge = answer
	rec.extendTo(now.Add(ttl))

	return nil
}

// TakeChallenge реализует Store
func (s *MemoryStore) TakeChallenge(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return "", ErrNoChallenge
	}
	if rec.expired(s.now()) {
		delete(s.sessions, id)
		return "", ErrNoChallenge
	}

	answer := rec.Challenge
	rec.Challenge = ""
	if answer == "" {
		return "", ErrNoChallenge
	}

	return answer, nil
}

// Extend реализует Store
func (s *MemoryStore) Extend(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.sessions[id]
	if !ok || rec.expired(now) {
		rec = &record{}
		s.sessions[id] = rec
	}
	rec.ExpiresAt = now.Add(ttl)

	return nil
}

// Sweep реализует Store
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, rec := range s.sessions {
		if rec.expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}

	return removed, nil
}

// Len возвращает количество сессий
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
