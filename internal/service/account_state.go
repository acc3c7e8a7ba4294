package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"chatvault/internal/models"
)

// CursorStore is the persistence surface for account and per-chat cursors.
type CursorStore interface {
	UpdateAccountState(ctx context.Context, tenantID string, update models.CursorUpdate) error
	ForceUpdateAccountState(ctx context.Context, tenantID string, update models.CursorUpdate) error
	GetAccountState(ctx context.Context, tenantID string) (*models.AccountState, error)
	UpdateChannelPts(ctx context.Context, tenantID string, chatID, pts int64) error
	GetChannelPts(ctx context.Context, tenantID string, chatID int64) (int64, error)
}

// AccountStateTracker maintains the per-tenant sync cursors (pts, qts, seq,
// date) and per-chat pts. Regular updates only advance: each field moves to
// the max of stored and provided, so concurrent writers and replays are
// harmless. The force path overwrites and exists for explicit resets.
type AccountStateTracker struct {
	store  CursorStore
	logger *logrus.Logger
}

func NewAccountStateTracker(store CursorStore, logger *logrus.Logger) *AccountStateTracker {
	return &AccountStateTracker{store: store, logger: logger}
}

// UpdateState advances the tenant cursors monotonically. Absent fields are
// left untouched.
func (t *AccountStateTracker) UpdateState(ctx context.Context, tenantID string, update models.CursorUpdate) error {
	if err := t.store.UpdateAccountState(ctx, tenantID, update); err != nil {
		t.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to advance account cursors")
		return err
	}
	return nil
}

// ForceUpdateState overwrites the provided cursor fields regardless of the
// stored values.
func (t *AccountStateTracker) ForceUpdateState(ctx context.Context, tenantID string, update models.CursorUpdate) error {
	if err := t.store.ForceUpdateAccountState(ctx, tenantID, update); err != nil {
		t.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to overwrite account cursors")
		return err
	}
	return nil
}

// State returns the tenant's current cursors; a never-synced tenant gets a
// zero state.
func (t *AccountStateTracker) State(ctx context.Context, tenantID string) (*models.AccountState, error) {
	return t.store.GetAccountState(ctx, tenantID)
}

// UpdateChannelPts advances one chat's pts cursor monotonically.
func (t *AccountStateTracker) UpdateChannelPts(ctx context.Context, tenantID string, chatID, pts int64) error {
	if err := t.store.UpdateChannelPts(ctx, tenantID, chatID, pts); err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"chat_id":   chatID,
		}).Error("Failed to advance chat cursor")
		return err
	}
	return nil
}

// ChannelPts returns one chat's pts cursor, 0 when unknown.
func (t *AccountStateTracker) ChannelPts(ctx context.Context, tenantID string, chatID int64) (int64, error) {
	return t.store.GetChannelPts(ctx, tenantID, chatID)
}
