package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"product-studio-ai/internal/studio"
)

type Options struct {
	// TTL is how long an untouched session survives.
	TTL             time.Duration
	CleanupInterval time.Duration
	// New builds the studio session for a fresh id.
	New func(id string) *studio.Session
}

type Store struct {
	mu      sync.Mutex
	cache   *cache.Cache
	newFunc func(id string) *studio.Session
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	cleanup := opts.CleanupInterval
	if cleanup <= 0 {
		cleanup = ttl / 2
	}

	newFunc := opts.New
	if newFunc == nil {
		newFunc = func(string) *studio.Session { return studio.New(studio.Options{}) }
	}

	return &Store{
		cache:   cache.New(ttl, cleanup),
		newFunc: newFunc,
	}
}

func (s *Store) Create() (string, *studio.Session) {
	id := uuid.NewString()
	sess := s.newFunc(id)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return id, sess
}

// Get returns the session and pushes its expiry forward.
func (s *Store) Get(id string) (*studio.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.touchLocked(id)
}

func (s *Store) GetOrCreate(id string) *studio.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.touchLocked(id); ok {
		return sess
	}
	sess := s.newFunc(id)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess
}

func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

func (s *Store) Len() int {
	return s.cache.ItemCount()
}

func (s *Store) touchLocked(id string) (*studio.Session, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*studio.Session)
	if !ok {
		return nil, false
	}
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}
