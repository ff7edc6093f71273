package repository

import (
	"context"
	"sync"
	"time"

	"tidybeast/internal/models"
)

// MemoryDraftStore is the in-process fallback draft store. Drafts do not
// survive a restart, matching the session-scoped contract.
type MemoryDraftStore struct {
	drafts     sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{
		ttl: ttl,
	}
}

type draftEntry struct {
	draft     *models.BookingDraft
	expiresAt time.Time
}

func (r *MemoryDraftStore) GetDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error) {
	val, ok := r.drafts.Load(sessionID)
	if !ok {
		return nil, nil
	}
	entry := val.(*draftEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.drafts.Delete(sessionID)
		return nil, nil
	}
	// Hand out a copy so callers cannot mutate the stored draft without
	// going back through SetDraft, same isolation the redis store gets
	// from its JSON round-trip.
	draft := *entry.draft
	return &draft, nil
}

func (r *MemoryDraftStore) SetDraft(ctx context.Context, draft *models.BookingDraft) error {
	stored := *draft
	r.drafts.Store(draft.SessionID, &draftEntry{
		draft:     &stored,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryDraftStore) ClearDraft(ctx context.Context, sessionID string) error {
	r.drafts.Delete(sessionID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryDraftStore) CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(sessionID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(sessionID, entry)
	return entry.count <= limit, nil
}
