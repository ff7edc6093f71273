package repository

import (
	"context"
	"sync/atomic"
	"time"

	"tidybeast/internal/domain"
	"tidybeast/internal/models"

	"github.com/rs/zerolog"
)

// FailoverDraftStore serves drafts from the primary store and falls back to
// the secondary when the primary errors, probing for recovery once a minute.
type FailoverDraftStore struct {
	primary   domain.DraftStore
	fallback  domain.DraftStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverDraftStore(primary, fallback domain.DraftStore, logger *zerolog.Logger) *FailoverDraftStore {
	return &FailoverDraftStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverDraftStore) GetDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error) {
	if !r.isDown.Load() {
		draft, err := r.primary.GetDraft(ctx, sessionID)
		if err == nil {
			return draft, nil
		}
		r.logger.Error().Err(err).Msg("primary draft store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		draft, err := r.primary.GetDraft(ctx, sessionID)
		if err == nil {
			r.isDown.Store(false)
			return draft, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetDraft(ctx, sessionID)
}

func (r *FailoverDraftStore) SetDraft(ctx context.Context, draft *models.BookingDraft) error {
	if !r.isDown.Load() {
		err := r.primary.SetDraft(ctx, draft)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("primary draft store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.SetDraft(ctx, draft)
}

func (r *FailoverDraftStore) ClearDraft(ctx context.Context, sessionID string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearDraft(ctx, sessionID)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("primary draft store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.ClearDraft(ctx, sessionID)
}

func (r *FailoverDraftStore) CheckRateLimit(ctx context.Context, sessionID string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, sessionID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary draft store failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.CheckRateLimit(ctx, sessionID, limit, window)
}
