package resolver

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatvault/internal/constants"
	"chatvault/internal/models"
)

func newTestPhotoResolver(vision *mockVisionProvider, provider *mockProvider, store *mockMediaStore, enabled bool) *PhotoEmbeddingResolver {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewPhotoEmbeddingResolver(vision, provider, store, enabled, logger)
}

func photoMessage() *models.Message {
	return &models.Message{
		UUID: "uuid-1",
		Media: []models.MediaRef{{
			Kind:     models.MediaKindPhoto,
			QueryID:  "abc123",
			MimeType: "image/jpeg",
		}},
	}
}

func TestPhotoEmbeddingResolver_DisabledIsEmptyResult(t *testing.T) {
	vision := &mockVisionProvider{}
	provider := &mockProvider{dimension: constants.VectorDim768}
	store := &mockMediaStore{}
	r := newTestPhotoResolver(vision, provider, store, false)

	enriched, err := r.Run(context.Background(), &Batch{Messages: []*models.Message{photoMessage()}})
	require.NoError(t, err)
	assert.Empty(t, enriched)
	vision.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything, mock.Anything)
}

func TestPhotoEmbeddingResolver_DescribesAndEmbeds(t *testing.T) {
	vision := &mockVisionProvider{}
	provider := &mockProvider{dimension: constants.VectorDim768}
	store := &mockMediaStore{}
	r := newTestPhotoResolver(vision, provider, store, true)

	msg := photoMessage()
	image := []byte{0xff, 0xd8}

	store.On("Load", "abc123").Return(image, nil).Once()
	vision.On("Describe", mock.Anything, image, "image/jpeg").Return("a cat on a sofa", nil).Once()
	provider.On("Embed", mock.Anything, []string{"a cat on a sofa"}).
		Return([][]float32{vectorOf(768, 0.4)}, nil).Once()

	enriched, err := r.Run(context.Background(), &Batch{Messages: []*models.Message{msg}})
	require.NoError(t, err)

	require.Len(t, enriched, 1)
	assert.Len(t, msg.Vectors.Vector768, 768)
	assert.Equal(t, "a cat on a sofa", msg.Content, "empty caption adopts the description")
	store.AssertExpectations(t)
	vision.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestPhotoEmbeddingResolver_CaptionedPhotoNotClaimed(t *testing.T) {
	vision := &mockVisionProvider{}
	provider := &mockProvider{dimension: constants.VectorDim768}
	store := &mockMediaStore{}
	r := newTestPhotoResolver(vision, provider, store, true)

	msg := photoMessage()
	msg.Content = "original caption"

	// A captioned photo is the text resolver's message; photo embedding must
	// leave it entirely alone.
	assert.False(t, r.Selects(msg))

	enriched, err := r.Run(context.Background(), &Batch{Messages: []*models.Message{msg}})
	require.NoError(t, err)
	assert.Empty(t, enriched)
	assert.Equal(t, "original caption", msg.Content)
	assert.True(t, msg.Vectors.Empty())
	vision.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything, mock.Anything)
}

func TestPhotoEmbeddingResolver_Selects(t *testing.T) {
	r := newTestPhotoResolver(&mockVisionProvider{}, &mockProvider{dimension: 768}, &mockMediaStore{}, true)

	assert.True(t, r.Selects(photoMessage()))

	captioned := photoMessage()
	captioned.Content = "caption"
	assert.False(t, r.Selects(captioned))

	assert.False(t, r.Selects(&models.Message{UUID: "x"}), "no stored photo, no claim")
	assert.False(t, r.Selects(&models.Message{
		Media: []models.MediaRef{{Kind: models.MediaKindPhoto}},
	}), "photo without stored bytes is not claimable")
}

func TestPhotoEmbeddingResolver_SkipsMessagesWithoutStoredPhoto(t *testing.T) {
	vision := &mockVisionProvider{}
	provider := &mockProvider{dimension: constants.VectorDim768}
	store := &mockMediaStore{}
	r := newTestPhotoResolver(vision, provider, store, true)

	noPhoto := &models.Message{UUID: "a", Content: "text only"}
	unstored := &models.Message{
		UUID:  "b",
		Media: []models.MediaRef{{Kind: models.MediaKindPhoto}},
	}
	embedded := photoMessage()
	embedded.Vectors.Vector768 = vectorOf(768, 0.2)

	enriched, err := r.Run(context.Background(), &Batch{Messages: []*models.Message{noPhoto, unstored, embedded}})
	require.NoError(t, err)
	assert.Empty(t, enriched)
	store.AssertNotCalled(t, "Load", mock.Anything)
}

func TestPhotoEmbeddingResolver_EmptyDescriptionSkipped(t *testing.T) {
	vision := &mockVisionProvider{}
	provider := &mockProvider{dimension: constants.VectorDim768}
	store := &mockMediaStore{}
	r := newTestPhotoResolver(vision, provider, store, true)

	msg := photoMessage()
	store.On("Load", "abc123").Return([]byte{1}, nil).Once()
	vision.On("Describe", mock.Anything, mock.Anything, mock.Anything).Return("", nil).Once()

	enriched, err := r.Run(context.Background(), &Batch{Messages: []*models.Message{msg}})
	require.NoError(t, err)
	assert.Empty(t, enriched)
	assert.True(t, msg.Vectors.Empty())
	provider.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestPhotoEmbeddingResolver_Modes(t *testing.T) {
	r := newTestPhotoResolver(&mockVisionProvider{}, &mockProvider{dimension: 768}, &mockMediaStore{}, true)
	assert.Equal(t, NamePhotoEmbedding, r.Name())
	assert.Equal(t, Modes{Batch: true}, r.Modes())
}
