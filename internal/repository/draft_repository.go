package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
)

const (
	draftKeyPrefix = "class-draft:"
	lockKeyPrefix  = "class-draft-lock:"
)

// Lock scripts only touch the key while it still carries the caller's token.
var (
	releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	refreshLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// DraftRepository keeps authoring sessions in Redis. Each draft is one JSON value with a TTL
// that is refreshed on every save.
type DraftRepository struct {
	client redis.UniversalClient
}

// NewDraftRepository constructs a Redis-backed draft repository.
func NewDraftRepository(client redis.UniversalClient) *DraftRepository {
	return &DraftRepository{client: client}
}

// Get loads a draft by id.
func (r *DraftRepository) Get(ctx context.Context, id string) (*models.Draft, error) {
	raw, err := r.client.Get(ctx, draftKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, fmt.Errorf("redis get draft %s: %w", id, err)
	}
	var draft models.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &draft, nil
}

// Save writes the draft and resets its expiry.
func (r *DraftRepository) Save(ctx context.Context, draft *models.Draft, ttl time.Duration) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", draft.ID, err)
	}
	if err := r.client.Set(ctx, draftKeyPrefix+draft.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft %s: %w", draft.ID, err)
	}
	return nil
}

// Delete removes the draft. A submit lock on it is left to its holder.
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, draftKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete draft %s: %w", id, err)
	}
	return nil
}

// AcquireSubmitLock sets the lock key to a fresh token only when absent. The TTL frees locks
// left by a crashed process.
func (r *DraftRepository) AcquireSubmitLock(ctx context.Context, id string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+id, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis lock draft %s: %w", id, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// RefreshSubmitLock pushes the lock expiry out by ttl. It reports false once the lock has
// expired or passed to another holder.
func (r *DraftRepository) RefreshSubmitLock(ctx context.Context, id, token string, ttl time.Duration) (bool, error) {
	n, err := refreshLockScript.Run(ctx, r.client, []string{lockKeyPrefix + id}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis refresh lock %s: %w", id, err)
	}
	return n == 1, nil
}

// ReleaseSubmitLock drops the lock key if token still owns it.
func (r *DraftRepository) ReleaseSubmitLock(ctx context.Context, id, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{lockKeyPrefix + id}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis unlock draft %s: %w", id, err)
	}
	return nil
}
