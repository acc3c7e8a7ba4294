package resolver

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"chatvault/internal/models"
	"chatvault/internal/queue"
	"chatvault/pkg/mediastore"
	platform "chatvault/pkg/platform/types"
)

// MediaCache is the dedup index over downloaded attachments, keyed by
// (platform, platform file id). A nil result without error means never
// stored.
type MediaCache interface {
	FindCachedMedia(ctx context.Context, platformName, platformID string) (*models.CachedMedia, error)
	SaveCachedMedia(ctx context.Context, platformName, platformID, queryID, mimeType string) error
}

// Downloader is the platform capability the media resolver needs.
type Downloader interface {
	DownloadMedia(ctx context.Context, media platform.RawMedia) ([]byte, error)
}

// MediaResolver downloads attachments, stores their bytes content-addressed
// and fills in QueryID and MimeType on each media ref. Bytes for a given
// platform file id are fetched at most once; later references reuse the
// cached query id. It streams because attachment work completes per message,
// not per batch.
type MediaResolver struct {
	downloader   Downloader
	cache        MediaCache
	store        mediastore.Store
	pool         *queue.Pool
	platformName string
	logger       *logrus.Logger
}

func NewMediaResolver(downloader Downloader, cache MediaCache, store mediastore.Store, pool *queue.Pool, platformName string, logger *logrus.Logger) *MediaResolver {
	return &MediaResolver{
		downloader:   downloader,
		cache:        cache,
		store:        store,
		pool:         pool,
		platformName: platformName,
		logger:       logger,
	}
}

func (r *MediaResolver) Name() string { return NameMedia }

func (r *MediaResolver) Modes() Modes { return Modes{Stream: true} }

// Stream resolves attachments for each message and emits the message once
// all of its refs have been handled. A failed download degrades the single
// ref to kind "unknown"; it never fails the message or the batch.
func (r *MediaResolver) Stream(ctx context.Context, batch *Batch, emit func(*models.Message)) error {
	for _, msg := range batch.Messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(msg.Media) == 0 {
			continue
		}

		raw := batch.RawFor(msg)

		// Group duplicate references to one file so each platform id is
		// resolved once per message; the remaining refs copy the outcome.
		groups := make(map[string][]*models.MediaRef)
		for i := range msg.Media {
			ref := &msg.Media[i]
			if ref.QueryID != "" && !batch.ForceRefetch {
				continue
			}
			groups[ref.PlatformID] = append(groups[ref.PlatformID], ref)
		}

		var wg sync.WaitGroup
		for platformID, refs := range groups {
			wg.Add(1)
			go func(platformID string, refs []*models.MediaRef) {
				defer wg.Done()
				if err := r.pool.Run(ctx, func(taskCtx context.Context) error {
					r.resolveRef(taskCtx, msg, raw, refs[0])
					for _, dup := range refs[1:] {
						dup.MessageUUID = msg.UUID
						dup.Kind = refs[0].Kind
						dup.QueryID = refs[0].QueryID
						dup.MimeType = refs[0].MimeType
					}
					return nil
				}); err != nil {
					r.logger.WithError(err).WithField("platform_id", platformID).
						Warn("Media download task not scheduled")
				}
			}(platformID, refs)
		}
		wg.Wait()

		emit(msg)
	}
	return nil
}

// resolveRef fills QueryID and MimeType on one ref, via the dedup cache when
// possible, otherwise by downloading and storing the bytes.
func (r *MediaResolver) resolveRef(ctx context.Context, msg *models.Message, raw *platform.RawMessage, ref *models.MediaRef) {
	ref.MessageUUID = msg.UUID

	if !ref.Kind.Downloadable() {
		return
	}

	if cached, err := r.cache.FindCachedMedia(ctx, r.platformName, ref.PlatformID); err != nil {
		r.logger.WithError(err).WithField("platform_id", ref.PlatformID).
			Warn("Media cache lookup failed")
	} else if cached != nil {
		ref.QueryID = cached.QueryID
		ref.MimeType = cached.MimeType
		return
	}

	rawMedia := r.rawMediaFor(raw, ref)

	data, err := r.downloader.DownloadMedia(ctx, rawMedia)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"platform_id": ref.PlatformID,
			"kind":        ref.Kind,
		}).Warn("Media download failed, keeping reference without content")
		ref.Kind = models.MediaKindUnknown
		return
	}

	queryID, mimeType, err := r.store.Save(data)
	if err != nil {
		r.logger.WithError(err).WithField("platform_id", ref.PlatformID).
			Error("Failed to store downloaded media")
		ref.Kind = models.MediaKindUnknown
		return
	}

	ref.QueryID = queryID
	if ref.MimeType == "" {
		ref.MimeType = mimeType
	}

	if err := r.cache.SaveCachedMedia(ctx, r.platformName, ref.PlatformID, ref.QueryID, ref.MimeType); err != nil {
		r.logger.WithError(err).WithField("platform_id", ref.PlatformID).
			Warn("Failed to record media in dedup cache")
	}
}

// rawMediaFor locates the wire descriptor for a ref so the download carries
// the platform's full file reference, not just the id.
func (r *MediaResolver) rawMediaFor(raw *platform.RawMessage, ref *models.MediaRef) platform.RawMedia {
	if raw != nil {
		for _, m := range raw.Media {
			if m.FileID == ref.PlatformID {
				return m
			}
		}
	}
	return platform.RawMedia{
		Kind:     platform.RawMediaKind(ref.Kind),
		FileID:   ref.PlatformID,
		MimeType: ref.MimeType,
	}
}
