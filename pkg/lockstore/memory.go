package lockstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is the process-local LockStore. Expired entries are dropped
// lazily on access and swept by a background janitor.
type MemoryStore struct {
	mu     sync.Mutex
	locks  map[string]memoryEntry
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		locks:  make(map[string]memoryEntry),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) TryAcquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.locks[key]; ok && s.now().Before(e.expiresAt) {
		return false, nil
	}
	s.locks[key] = memoryEntry{token: token, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) OwnerOf(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.locks[key]
	if !ok {
		return "", nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.locks, key)
		return "", nil
	}
	return e.token, nil
}

func (s *MemoryStore) Release(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.locks[key]
	if !ok || e.token != token {
		return false, nil
	}
	delete(s.locks, key)
	return true, nil
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, e := range s.locks {
				if !now.Before(e.expiresAt) {
					delete(s.locks, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Stop terminates the janitor goroutine.
func (s *MemoryStore) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}
