package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryDraftRepository keeps drafts in process memory for single-instance deployments and tests.
// Drafts are stored as JSON so callers never share state with the store.
type MemoryDraftRepository struct {
	mu     sync.Mutex
	drafts map[string]memoryEntry
	locks  map[string]memoryLock
	now    func() time.Time
}

// NewMemoryDraftRepository constructs an empty in-memory store.
func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{
		drafts: make(map[string]memoryEntry),
		locks:  make(map[string]memoryLock),
		now:    time.Now,
	}
}

// Get loads a draft by id.
func (r *MemoryDraftRepository) Get(_ context.Context, id string) (*models.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()

	entry, ok := r.drafts[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
	}
	var draft models.Draft
	if err := json.Unmarshal(entry.payload, &draft); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &draft, nil
}

// Save stores a copy of draft until ttl elapses.
func (r *MemoryDraftRepository) Save(_ context.Context, draft *models.Draft, ttl time.Duration) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", draft.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[draft.ID] = memoryEntry{payload: payload, expiresAt: r.now().Add(ttl)}
	return nil
}

// Delete removes the draft. A submit lock on it is left to its holder.
func (r *MemoryDraftRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
	return nil
}

// AcquireSubmitLock takes the lock unless another unexpired holder exists.
func (r *MemoryDraftRepository) AcquireSubmitLock(_ context.Context, id string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if lock, held := r.locks[id]; held && now.Before(lock.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	r.locks[id] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// RefreshSubmitLock extends a lock token still holds.
func (r *MemoryDraftRepository) RefreshSubmitLock(_ context.Context, id, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	lock, held := r.locks[id]
	if !held || lock.token != token || !now.Before(lock.expiresAt) {
		return false, nil
	}
	lock.expiresAt = now.Add(ttl)
	r.locks[id] = lock
	return true, nil
}

// ReleaseSubmitLock frees the lock if token still owns it.
func (r *MemoryDraftRepository) ReleaseSubmitLock(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lock, held := r.locks[id]; held && lock.token == token {
		delete(r.locks, id)
	}
	return nil
}

func (r *MemoryDraftRepository) purgeLocked() {
	now := r.now()
	for id, entry := range r.drafts {
		if !now.Before(entry.expiresAt) {
			delete(r.drafts, id)
		}
	}
	for id, lock := range r.locks {
		if !now.Before(lock.expiresAt) {
			delete(r.locks, id)
		}
	}
}
