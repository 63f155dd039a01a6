package repository

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/noah-isme/permit-deadline-api/internal/models"
)

// ErrDatasetNotFound is returned for unknown or expired dataset handles.
var ErrDatasetNotFound = errors.New("dataset session not found")

// DatasetSession owns one loaded dataset. All access goes through its lock so
// at most one mutation is in flight per dataset and readers never observe a
// half-recomputed state.
type DatasetSession struct {
	Handle string

	mu        sync.Mutex
	dataset   *models.Dataset
	version   uint64
	updatedAt time.Time
}

// Read runs fn with the dataset locked. fn must not retain ds.
func (s *DatasetSession) Read(fn func(ds *models.Dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.dataset)
}

// Mutate runs fn with the dataset locked and bumps the version when fn
// succeeds. fn is expected to leave ds untouched when it fails.
func (s *DatasetSession) Mutate(fn func(ds *models.Dataset) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.dataset); err != nil {
		return s.version, err
	}
	s.version++
	s.updatedAt = time.Now().UTC()
	return s.version, nil
}

// Snapshot returns a deep copy of the dataset and its version.
func (s *DatasetSession) Snapshot() (*models.Dataset, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset.Clone(), s.version
}

// Version returns the number of committed mutations.
func (s *DatasetSession) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// DatasetStore keeps dataset sessions in memory keyed by an opaque handle.
// Idle sessions expire after the TTL; every lookup extends it.
type DatasetStore struct {
	items *gocache.Cache
	ttl   time.Duration
}

// NewDatasetStore constructs a store whose sessions idle out after ttl.
func NewDatasetStore(ttl time.Duration) *DatasetStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &DatasetStore{items: gocache.New(ttl, cleanup), ttl: ttl}
}

// Create registers a dataset under a fresh handle.
func (s *DatasetStore) Create(ds *models.Dataset) *DatasetSession {
	session := &DatasetSession{Handle: uuid.NewString(), dataset: ds, updatedAt: time.Now().UTC()}
	s.items.Set(session.Handle, session, s.ttl)
	return session
}

// Get returns the session for handle and refreshes its expiry.
func (s *DatasetStore) Get(handle string) (*DatasetSession, error) {
	item, ok := s.items.Get(handle)
	if !ok {
		return nil, ErrDatasetNotFound
	}
	session, ok := item.(*DatasetSession)
	if !ok {
		return nil, ErrDatasetNotFound
	}
	s.items.Set(handle, session, s.ttl)
	return session, nil
}

// Delete drops a session.
func (s *DatasetStore) Delete(handle string) {
	s.items.Delete(handle)
}

// Count returns the number of live sessions. Expired sessions the janitor
// has not swept yet are excluded.
func (s *DatasetStore) Count() int {
	return len(s.items.Items())
}

// OnEvicted registers a callback run when a session expires or is deleted.
func (s *DatasetStore) OnEvicted(fn func(handle string)) {
	s.items.OnEvicted(func(key string, _ interface{}) { fn(key) })
}
