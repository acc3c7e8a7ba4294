package types

import (
	"context"
)

// Client is the messaging-platform wire client the core consumes. The wire
// protocol itself is out of scope; implementations wrap whatever transport
// the platform requires, and tests substitute mocks.
type Client interface {
	// FetchHistoryPage returns one page of chat history, newest first,
	// anchored below req.AnchorID and bounded by req.MinID/req.MaxID.
	FetchHistoryPage(ctx context.Context, req HistoryRequest) ([]RawMessage, error)

	// DownloadMedia fetches the raw bytes of one attachment.
	DownloadMedia(ctx context.Context, media RawMedia) ([]byte, error)

	// InitTakeoutSession opens a bulk-export session. Session creation is not
	// assumed idempotent; callers treat failure as fatal to the task.
	InitTakeoutSession(ctx context.Context) (TakeoutSession, error)

	// FinishTakeoutSession closes a bulk-export session, reporting whether
	// the export succeeded.
	FinishTakeoutSession(ctx context.Context, session TakeoutSession, success bool) error

	// GetTotalCount returns the platform's message count for a chat. Callers
	// use it only as a progress hint.
	GetTotalCount(ctx context.Context, chatID int64) (int, error)

	// GetMe returns the authenticated account identity.
	GetMe(ctx context.Context) (Identity, error)

	// PollUpdates returns messages that arrived since the last poll, along
	// with advanced cursor values.
	PollUpdates(ctx context.Context) (*Updates, error)
}
