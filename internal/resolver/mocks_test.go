package resolver

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chatvault/internal/models"
	platform "chatvault/pkg/platform/types"
)

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) DownloadMedia(ctx context.Context, media platform.RawMedia) ([]byte, error) {
	args := m.Called(ctx, media)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMediaCache struct {
	mock.Mock
}

func (m *mockMediaCache) FindCachedMedia(ctx context.Context, platformName, platformID string) (*models.CachedMedia, error) {
	args := m.Called(ctx, platformName, platformID)
	if v := args.Get(0); v != nil {
		return v.(*models.CachedMedia), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMediaCache) SaveCachedMedia(ctx context.Context, platformName, platformID, queryID, mimeType string) error {
	args := m.Called(ctx, platformName, platformID, queryID, mimeType)
	return args.Error(0)
}

type mockMediaStore struct {
	mock.Mock
}

func (m *mockMediaStore) Save(data []byte) (string, string, error) {
	args := m.Called(data)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockMediaStore) Load(queryID string) ([]byte, error) {
	args := m.Called(queryID)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMediaStore) Exists(queryID string) bool {
	args := m.Called(queryID)
	return args.Bool(0)
}

func (m *mockMediaStore) CleanupOldFiles(maxAge time.Duration) error {
	args := m.Called(maxAge)
	return args.Error(0)
}

type mockProvider struct {
	mock.Mock
	dimension int
}

func (m *mockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if v := args.Get(0); v != nil {
		return v.([][]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) Dimension() int {
	return m.dimension
}

func (m *mockProvider) Model() string {
	return "test-model"
}

type mockVisionProvider struct {
	mock.Mock
}

func (m *mockVisionProvider) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	args := m.Called(ctx, image, mimeType)
	return args.String(0), args.Error(1)
}

// vectorOf builds a vector of the given dimension for assertions.
func vectorOf(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}
