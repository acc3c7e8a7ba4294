package models

import (
	"time"
)

// AccountState holds the per-tenant sync cursors used to resume live
// synchronization without reprocessing. Every cursor only advances under the
// normal update path; the force path may move them backwards for recovery.
type AccountState struct {
	TenantID   string    `db:"tenant_id"`
	Pts        int64     `db:"pts"`
	Qts        int64     `db:"qts"`
	Seq        int64     `db:"seq"`
	Date       int64     `db:"date"`
	LastSyncAt time.Time `db:"last_sync_at"`
}

// ChannelState holds the channel-scoped pts cursor for a joined chat.
type ChannelState struct {
	TenantID string `db:"tenant_id"`
	ChatID   int64  `db:"chat_id"`
	Pts      int64  `db:"pts"`
}

// CursorUpdate carries partial cursor values; nil fields are untouched.
type CursorUpdate struct {
	Pts        *int64
	Qts        *int64
	Seq        *int64
	Date       *int64
	LastSyncAt *time.Time
}
