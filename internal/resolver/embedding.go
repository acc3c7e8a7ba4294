package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"chatvault/internal/constants"
	"chatvault/internal/models"
	"chatvault/pkg/embedding"
)

// EmbeddingResolver embeds message text through an OpenAI-compatible
// provider. It runs in batch mode so provider calls stay chunked instead of
// one request per message.
type EmbeddingResolver struct {
	provider  embedding.Provider
	chunkSize int
	logger    *logrus.Logger
}

func NewEmbeddingResolver(provider embedding.Provider, chunkSize int, logger *logrus.Logger) *EmbeddingResolver {
	if chunkSize <= 0 {
		chunkSize = constants.DefaultEmbeddingChunkSize
	}
	return &EmbeddingResolver{provider: provider, chunkSize: chunkSize, logger: logger}
}

func (r *EmbeddingResolver) Name() string { return NameEmbedding }

func (r *EmbeddingResolver) Modes() Modes { return Modes{Batch: true} }

// Selects claims every message with text. The photo-embedding resolver claims
// the complement, so the two never touch the same message while racing.
func (r *EmbeddingResolver) Selects(msg *models.Message) bool {
	return msg.Content != ""
}

// Run embeds every message with non-empty text that has no vector yet (all
// of them when a refetch is forced) and returns the enriched subset.
func (r *EmbeddingResolver) Run(ctx context.Context, batch *Batch) ([]*models.Message, error) {
	var pending []*models.Message
	for _, msg := range batch.Messages {
		if msg.Content == "" {
			continue
		}
		if !msg.Vectors.Empty() && !batch.ForceRefetch {
			continue
		}
		pending = append(pending, msg)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	dim := r.provider.Dimension()
	for start := 0; start < len(pending); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		texts := make([]string, len(chunk))
		for i, msg := range chunk {
			texts[i] = msg.Content
		}

		vectors, err := r.provider.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk of %d messages: %w", len(chunk), err)
		}
		if len(vectors) != len(chunk) {
			return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(chunk))
		}

		for i, msg := range chunk {
			if err := setVector(msg, dim, vectors[i]); err != nil {
				return nil, err
			}
		}
	}

	r.logger.WithFields(logrus.Fields{
		"count":     len(pending),
		"model":     r.provider.Model(),
		"dimension": dim,
	}).Debug("Embedded message batch")

	return pending, nil
}

// setVector stores a vector in the slot matching the provider dimension.
func setVector(msg *models.Message, dim int, vector []float32) error {
	if len(vector) != dim {
		return fmt.Errorf("vector length %d does not match provider dimension %d", len(vector), dim)
	}
	switch dim {
	case constants.VectorDim768:
		msg.Vectors.Vector768 = vector
	case constants.VectorDim1024:
		msg.Vectors.Vector1024 = vector
	case constants.VectorDim1536:
		msg.Vectors.Vector1536 = vector
	default:
		return fmt.Errorf("unsupported embedding dimension %d", dim)
	}
	return nil
}
