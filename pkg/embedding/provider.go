package embedding

import (
	"context"
)

// Provider generates text embeddings. Dimension declares the fixed output
// dimension; the persistence layout stores vectors in one of three fixed-size
// columns, so a provider must emit one of the supported dimensions.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// VisionProvider turns an image into a textual description suitable for
// embedding. Optional: the photo-embedding resolver degrades to a no-op when
// no vision provider is configured.
type VisionProvider interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}
