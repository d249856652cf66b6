package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"slmchat/internal/domain"
)

// Store keeps sessions in memory and expires idle ones.
type Store struct {
	cache   *cache.Cache
	deps    Deps
	initial domain.Credential
}

// NewStore creates a store whose sessions expire after ttl without access.
func NewStore(ttl time.Duration, deps Deps, initial domain.Credential) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		cache:   cache.New(ttl, 10*time.Minute),
		deps:    deps,
		initial: initial,
	}
}

// Create starts a new session with a random id.
func (s *Store) Create() *Session {
	sess := New(uuid.NewString(), s.deps, s.initial)
	s.cache.Set(sess.ID(), sess, cache.DefaultExpiration)
	return sess
}

// Get returns the session and extends its lifetime.
func (s *Store) Get(id string) (*Session, bool) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*Session)
	s.cache.Set(sess.ID(), sess, cache.DefaultExpiration)
	return sess, true
}

func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

func (s *Store) Len() int {
	return s.cache.ItemCount()
}
