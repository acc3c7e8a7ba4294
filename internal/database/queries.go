package database

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"chatvault/internal/models"

	"github.com/google/uuid"
)

// PersistMessages upserts base rows for the batch in one transaction, keyed
// by (chat_id, platform_message_id), and replaces each message's UUID with
// the authoritative persisted value. After this call no message carries a
// pre-persistence placeholder uuid.
func (d *Database) PersistMessages(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO messages (
			uuid, platform, platform_message_id, chat_id,
			from_id, from_name, content, reply_to_id, forward_from_id,
			platform_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, platform_message_id) DO UPDATE SET
			from_id = excluded.from_id,
			from_name = excluded.from_name,
			content = excluded.content,
			reply_to_id = excluded.reply_to_id,
			forward_from_id = excluded.forward_from_id,
			platform_timestamp = excluded.platform_timestamp,
			updated_at = CURRENT_TIMESTAMP
		RETURNING uuid
	`

	for _, msg := range msgs {
		encContent, err := d.encryptor.EncryptIfEnabled(msg.Content)
		if err != nil {
			return fmt.Errorf("failed to encrypt content: %w", err)
		}
		encFromName, err := d.encryptor.EncryptIfEnabled(msg.FromName)
		if err != nil {
			return fmt.Errorf("failed to encrypt sender name: %w", err)
		}

		var persistedUUID string
		err = tx.QueryRowContext(ctx, query,
			uuid.NewString(),
			msg.Platform,
			msg.PlatformMessageID,
			msg.ChatID,
			msg.FromID,
			encFromName,
			encContent,
			msg.ReplyToID,
			msg.ForwardFromID,
			msg.PlatformTimestamp,
		).Scan(&persistedUUID)
		if err != nil {
			return fmt.Errorf("failed to persist message %d/%d: %w", msg.ChatID, msg.PlatformMessageID, err)
		}
		msg.UUID = persistedUUID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message batch: %w", err)
	}
	return nil
}

// RecordEnrichment persists the resolver output for already-persisted
// messages: attachment rows and embedding vectors.
func (d *Database) RecordEnrichment(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	mediaQuery := `
		INSERT INTO message_media (message_uuid, platform_id, kind, query_id, mime_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (message_uuid, platform_id) DO UPDATE SET
			kind = excluded.kind,
			query_id = excluded.query_id,
			mime_type = excluded.mime_type
	`
	vectorQuery := `
		UPDATE messages SET vector_768 = ?, vector_1024 = ?, vector_1536 = ?, updated_at = CURRENT_TIMESTAMP
		WHERE uuid = ?
	`

	for _, msg := range msgs {
		if msg.UUID == "" {
			return fmt.Errorf("refusing to record enrichment for message without uuid (chat %d, id %d)", msg.ChatID, msg.PlatformMessageID)
		}
		for _, ref := range msg.Media {
			if _, err := tx.ExecContext(ctx, mediaQuery,
				msg.UUID, ref.PlatformID, string(ref.Kind), ref.QueryID, ref.MimeType,
			); err != nil {
				return fmt.Errorf("failed to record media for %s: %w", msg.UUID, err)
			}
		}
		if !msg.Vectors.Empty() {
			if _, err := tx.ExecContext(ctx, vectorQuery,
				encodeVector(msg.Vectors.Vector768),
				encodeVector(msg.Vectors.Vector1024),
				encodeVector(msg.Vectors.Vector1536),
				msg.UUID,
			); err != nil {
				return fmt.Errorf("failed to record vectors for %s: %w", msg.UUID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enrichment: %w", err)
	}
	return nil
}

// GetMessage loads one canonical message by its logical key.
func (d *Database) GetMessage(ctx context.Context, chatID, platformMessageID int64) (*models.Message, error) {
	query := `
		SELECT uuid, platform, platform_message_id, chat_id, from_id, from_name,
		       content, reply_to_id, forward_from_id, platform_timestamp,
		       vector_768, vector_1024, vector_1536
		FROM messages
		WHERE chat_id = ? AND platform_message_id = ?
	`

	msg := &models.Message{}
	var encContent, encFromName string
	var v768, v1024, v1536 []byte
	var ts sql.NullTime
	err := d.db.QueryRowContext(ctx, query, chatID, platformMessageID).Scan(
		&msg.UUID, &msg.Platform, &msg.PlatformMessageID, &msg.ChatID,
		&msg.FromID, &encFromName, &encContent,
		&msg.ReplyToID, &msg.ForwardFromID, &ts,
		&v768, &v1024, &v1536,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	if msg.Content, err = d.encryptor.DecryptIfEnabled(encContent); err != nil {
		return nil, fmt.Errorf("failed to decrypt content: %w", err)
	}
	if msg.FromName, err = d.encryptor.DecryptIfEnabled(encFromName); err != nil {
		return nil, fmt.Errorf("failed to decrypt sender name: %w", err)
	}
	if ts.Valid {
		msg.PlatformTimestamp = ts.Time
	}
	msg.Vectors.Vector768 = decodeVector(v768)
	msg.Vectors.Vector1024 = decodeVector(v1024)
	msg.Vectors.Vector1536 = decodeVector(v1536)
	return msg, nil
}

// FindCachedMedia looks up the dedup cache by the platform file identifier.
// Returns nil when the attachment has never been stored.
func (d *Database) FindCachedMedia(ctx context.Context, platform, platformID string) (*models.CachedMedia, error) {
	query := `SELECT query_id, mime_type FROM media_cache WHERE platform = ? AND platform_id = ?`

	cached := &models.CachedMedia{}
	err := d.db.QueryRowContext(ctx, query, platform, platformID).Scan(&cached.QueryID, &cached.MimeType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query media cache: %w", err)
	}
	return cached, nil
}

// SaveCachedMedia records a stored attachment in the dedup cache. Re-saving
// the same platform id updates the handle (content changed upstream).
func (d *Database) SaveCachedMedia(ctx context.Context, platform, platformID, queryID, mimeType string) error {
	query := `
		INSERT INTO media_cache (platform, platform_id, query_id, mime_type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (platform, platform_id) DO UPDATE SET
			query_id = excluded.query_id,
			mime_type = excluded.mime_type
	`
	if _, err := d.db.ExecContext(ctx, query, platform, platformID, queryID, mimeType); err != nil {
		return fmt.Errorf("failed to save media cache entry: %w", err)
	}
	return nil
}

// UpdateAccountState advances the per-tenant cursors monotonically: each
// provided value only takes effect when larger than the stored one.
// LastSyncAt is set directly when provided. Safe under concurrent writers
// because the max-compare is idempotent.
func (d *Database) UpdateAccountState(ctx context.Context, tenantID string, update models.CursorUpdate) error {
	query := `
		INSERT INTO account_states (tenant_id, pts, qts, seq, date, last_sync_at)
		VALUES (?, COALESCE(?, 0), COALESCE(?, 0), COALESCE(?, 0), COALESCE(?, 0), ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			pts = MAX(account_states.pts, COALESCE(?, 0)),
			qts = MAX(account_states.qts, COALESCE(?, 0)),
			seq = MAX(account_states.seq, COALESCE(?, 0)),
			date = MAX(account_states.date, COALESCE(?, 0)),
			last_sync_at = COALESCE(?, account_states.last_sync_at)
	`
	pts, qts, seq, date := nullInt(update.Pts), nullInt(update.Qts), nullInt(update.Seq), nullInt(update.Date)
	syncAt := nullTime(update.LastSyncAt)
	_, err := d.db.ExecContext(ctx, query,
		tenantID, pts, qts, seq, date, syncAt,
		pts, qts, seq, date, syncAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account state: %w", err)
	}
	return nil
}

// ForceUpdateAccountState overwrites the provided cursors unconditionally.
// Reserved for explicit resets and bootstrap.
func (d *Database) ForceUpdateAccountState(ctx context.Context, tenantID string, update models.CursorUpdate) error {
	query := `
		INSERT INTO account_states (tenant_id, pts, qts, seq, date, last_sync_at)
		VALUES (?, COALESCE(?, 0), COALESCE(?, 0), COALESCE(?, 0), COALESCE(?, 0), ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			pts = COALESCE(?, account_states.pts),
			qts = COALESCE(?, account_states.qts),
			seq = COALESCE(?, account_states.seq),
			date = COALESCE(?, account_states.date),
			last_sync_at = COALESCE(?, account_states.last_sync_at)
	`
	pts, qts, seq, date := nullInt(update.Pts), nullInt(update.Qts), nullInt(update.Seq), nullInt(update.Date)
	syncAt := nullTime(update.LastSyncAt)
	_, err := d.db.ExecContext(ctx, query,
		tenantID, pts, qts, seq, date, syncAt,
		pts, qts, seq, date, syncAt,
	)
	if err != nil {
		return fmt.Errorf("failed to force-update account state: %w", err)
	}
	return nil
}

// GetAccountState loads the stored cursors for a tenant; zero-valued state
// when the tenant has never synced.
func (d *Database) GetAccountState(ctx context.Context, tenantID string) (*models.AccountState, error) {
	query := `SELECT pts, qts, seq, date, last_sync_at FROM account_states WHERE tenant_id = ?`

	state := &models.AccountState{TenantID: tenantID}
	var syncAt sql.NullTime
	err := d.db.QueryRowContext(ctx, query, tenantID).Scan(&state.Pts, &state.Qts, &state.Seq, &state.Date, &syncAt)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account state: %w", err)
	}
	if syncAt.Valid {
		state.LastSyncAt = syncAt.Time
	}
	return state, nil
}

// UpdateChannelPts advances the channel-scoped pts cursor monotonically.
func (d *Database) UpdateChannelPts(ctx context.Context, tenantID string, chatID, pts int64) error {
	query := `
		INSERT INTO channel_states (tenant_id, chat_id, pts)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, chat_id) DO UPDATE SET
			pts = MAX(channel_states.pts, excluded.pts)
	`
	if _, err := d.db.ExecContext(ctx, query, tenantID, chatID, pts); err != nil {
		return fmt.Errorf("failed to update channel pts: %w", err)
	}
	return nil
}

// GetChannelPts returns the stored pts for a channel; zero when unknown.
func (d *Database) GetChannelPts(ctx context.Context, tenantID string, chatID int64) (int64, error) {
	var pts int64
	err := d.db.QueryRowContext(ctx,
		`SELECT pts FROM channel_states WHERE tenant_id = ? AND chat_id = ?`,
		tenantID, chatID,
	).Scan(&pts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get channel pts: %w", err)
	}
	return pts, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

// encodeVector packs a float32 vector into a little-endian blob; nil in,
// nil out so unpopulated slots stay NULL.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
