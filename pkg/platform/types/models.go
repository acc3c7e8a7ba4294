package types

import (
	"time"
)

// RawMediaKind mirrors the platform's attachment taxonomy.
type RawMediaKind string

const (
	RawMediaPhoto    RawMediaKind = "photo"
	RawMediaSticker  RawMediaKind = "sticker"
	RawMediaDocument RawMediaKind = "document"
	RawMediaWebpage  RawMediaKind = "webpage"
	RawMediaUnknown  RawMediaKind = "unknown"
)

// RawMedia is a platform attachment descriptor as delivered on the wire.
type RawMedia struct {
	Kind     RawMediaKind `json:"kind"`
	FileID   string       `json:"fileId"`
	MimeType string       `json:"mimeType,omitempty"`
	Size     int64        `json:"size,omitempty"`
}

// RawMessage is a platform message as delivered on the wire, before
// conversion to the canonical representation. Empty marks placeholder
// entries (deleted or inaccessible messages) that history pages may contain.
type RawMessage struct {
	ID            int64      `json:"id"`
	ChatID        int64      `json:"chatId"`
	FromID        string     `json:"fromId,omitempty"`
	FromName      string     `json:"fromName,omitempty"`
	Text          string     `json:"text,omitempty"`
	Media         []RawMedia `json:"media,omitempty"`
	ReplyToID     int64      `json:"replyToId,omitempty"`
	ForwardFromID int64      `json:"forwardFromId,omitempty"`
	Date          time.Time  `json:"date"`
	Empty         bool       `json:"empty,omitempty"`
}

// HistoryRequest describes one history page fetch.
type HistoryRequest struct {
	ChatID   int64
	AnchorID int64 // fetch messages older than this id; 0 means newest
	Limit    int
	MinID    int64 // exclusive lower bound, 0 disables
	MaxID    int64 // exclusive upper bound, 0 disables
}

// TakeoutSession is the opaque bulk-export session handle.
type TakeoutSession struct {
	ID int64 `json:"id"`
}

// Identity describes the authenticated account.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// Updates is one realtime poll result: fresh messages plus the cursor values
// the feed should advance to.
type Updates struct {
	Messages []RawMessage `json:"messages"`
	Pts      int64        `json:"pts,omitempty"`
	Qts      int64        `json:"qts,omitempty"`
	Seq      int64        `json:"seq,omitempty"`
	Date     int64        `json:"date,omitempty"`
}
