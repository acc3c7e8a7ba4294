package models

import (
	"time"
)

type MediaKind string

const (
	MediaKindPhoto    MediaKind = "photo"
	MediaKindSticker  MediaKind = "sticker"
	MediaKindDocument MediaKind = "document"
	MediaKindWebpage  MediaKind = "webpage"
	MediaKindUnknown  MediaKind = "unknown"
)

// Downloadable reports whether the kind carries fetchable bytes. Webpage
// previews are metadata only and unknown kinds have no usable descriptor.
func (k MediaKind) Downloadable() bool {
	switch k {
	case MediaKindPhoto, MediaKindSticker, MediaKindDocument:
		return true
	default:
		return false
	}
}

// MediaRef points at a single attachment of a canonical message.
// PlatformID is the platform's file identifier and the dedup key: bytes for a
// given PlatformID are downloaded and stored at most once, and later messages
// referencing the same PlatformID reuse the existing QueryID.
type MediaRef struct {
	Kind        MediaKind `json:"kind"`
	PlatformID  string    `json:"platformId"`
	MessageUUID string    `json:"messageUuid,omitempty"`
	QueryID     string    `json:"queryId,omitempty"`
	MimeType    string    `json:"mimeType,omitempty"`
}

// CachedMedia is one entry of the media dedup cache: the stored handle and
// sniffed MIME type for a platform file identifier.
type CachedMedia struct {
	QueryID  string `json:"queryId"`
	MimeType string `json:"mimeType"`
}

// Vectors holds the denormalized one-of-three embedding slots. Exactly one
// slot is populated once a message has been embedded; which one depends on
// the configured provider's output dimension.
type Vectors struct {
	Vector768  []float32 `json:"vector768,omitempty"`
	Vector1024 []float32 `json:"vector1024,omitempty"`
	Vector1536 []float32 `json:"vector1536,omitempty"`
}

// Empty reports whether no embedding slot has been populated yet.
func (v Vectors) Empty() bool {
	return len(v.Vector768) == 0 && len(v.Vector1024) == 0 && len(v.Vector1536) == 0
}

// Message is the platform-agnostic canonical message record used throughout
// the pipeline. UUID is authoritative only after the base row has been
// persisted; resolvers never observe a pre-persistence placeholder.
type Message struct {
	UUID              string     `json:"uuid"`
	Platform          string     `json:"platform"`
	PlatformMessageID int64      `json:"platformMessageId"`
	ChatID            int64      `json:"chatId"`
	FromID            string     `json:"fromId,omitempty"`
	FromName          string     `json:"fromName,omitempty"`
	Content           string     `json:"content"`
	Media             []MediaRef `json:"media,omitempty"`
	ReplyToID         *int64     `json:"replyToId,omitempty"`
	ForwardFromID     *int64     `json:"forwardFromId,omitempty"`
	PlatformTimestamp time.Time  `json:"platformTimestamp"`
	Vectors           Vectors    `json:"vectors,omitempty"`
}
