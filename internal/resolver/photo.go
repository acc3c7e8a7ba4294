package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"chatvault/internal/models"
	"chatvault/pkg/embedding"
)

// MediaLoader reads stored attachment bytes back by query id.
type MediaLoader interface {
	Load(queryID string) ([]byte, error)
}

// PhotoEmbeddingResolver turns stored photos into text via a vision model and
// embeds the description. It only makes sense after the media resolver has
// populated query ids, which the orchestrator guarantees by running the media
// stream to completion first.
type PhotoEmbeddingResolver struct {
	vision   embedding.VisionProvider
	provider embedding.Provider
	loader   MediaLoader
	enabled  bool
	logger   *logrus.Logger
}

func NewPhotoEmbeddingResolver(vision embedding.VisionProvider, provider embedding.Provider, loader MediaLoader, enabled bool, logger *logrus.Logger) *PhotoEmbeddingResolver {
	return &PhotoEmbeddingResolver{
		vision:   vision,
		provider: provider,
		loader:   loader,
		enabled:  enabled,
		logger:   logger,
	}
}

func (r *PhotoEmbeddingResolver) Name() string { return NamePhotoEmbedding }

func (r *PhotoEmbeddingResolver) Modes() Modes { return Modes{Batch: true} }

// Selects claims only messages the text embedding resolver will not touch:
// captionless messages with a stored photo. A captioned photo gets its
// caption embedded by the text resolver instead, so exactly one resolver
// writes any given message's vector and caption.
func (r *PhotoEmbeddingResolver) Selects(msg *models.Message) bool {
	return msg.Content == "" && firstPhoto(msg) != nil
}

// Run describes and embeds the first stored photo of each claimed message.
// When the feature is disabled it returns an empty result rather than an
// error, so registration can stay unconditional.
func (r *PhotoEmbeddingResolver) Run(ctx context.Context, batch *Batch) ([]*models.Message, error) {
	if !r.enabled || r.vision == nil || r.provider == nil {
		return nil, nil
	}

	var enriched []*models.Message
	for _, msg := range batch.Messages {
		if ctx.Err() != nil {
			return enriched, ctx.Err()
		}
		if !r.Selects(msg) {
			continue
		}
		if !msg.Vectors.Empty() && !batch.ForceRefetch {
			continue
		}

		embedded, err := r.embedPhoto(ctx, msg, firstPhoto(msg))
		if err != nil {
			return enriched, err
		}
		if embedded {
			enriched = append(enriched, msg)
		}
	}
	return enriched, nil
}

func (r *PhotoEmbeddingResolver) embedPhoto(ctx context.Context, msg *models.Message, ref *models.MediaRef) (bool, error) {
	data, err := r.loader.Load(ref.QueryID)
	if err != nil {
		return false, fmt.Errorf("loading photo %s: %w", ref.QueryID, err)
	}

	description, err := r.vision.Describe(ctx, data, ref.MimeType)
	if err != nil {
		return false, fmt.Errorf("describing photo %s: %w", ref.QueryID, err)
	}
	if description == "" {
		r.logger.WithField("query_id", ref.QueryID).Debug("Vision model returned empty description")
		return false, nil
	}

	vectors, err := r.provider.Embed(ctx, []string{description})
	if err != nil {
		return false, fmt.Errorf("embedding photo description: %w", err)
	}
	if len(vectors) != 1 {
		return false, fmt.Errorf("provider returned %d vectors for one description", len(vectors))
	}

	// Claimed messages carry no caption, so the description becomes the
	// searchable text.
	msg.Content = description
	if err := setVector(msg, r.provider.Dimension(), vectors[0]); err != nil {
		return false, err
	}
	return true, nil
}

// firstPhoto returns the first photo ref with stored bytes, or nil.
func firstPhoto(msg *models.Message) *models.MediaRef {
	for i := range msg.Media {
		ref := &msg.Media[i]
		if ref.Kind == models.MediaKindPhoto && ref.QueryID != "" {
			return ref
		}
	}
	return nil
}
