package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chatvault/internal/models"
	"chatvault/internal/resolver"
	platform "chatvault/pkg/platform/types"
)

// mockClient is a testify mock of the platform client.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) FetchHistoryPage(ctx context.Context, req platform.HistoryRequest) ([]platform.RawMessage, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.([]platform.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) DownloadMedia(ctx context.Context, media platform.RawMedia) ([]byte, error) {
	args := m.Called(ctx, media)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) InitTakeoutSession(ctx context.Context) (platform.TakeoutSession, error) {
	args := m.Called(ctx)
	return args.Get(0).(platform.TakeoutSession), args.Error(1)
}

func (m *mockClient) FinishTakeoutSession(ctx context.Context, session platform.TakeoutSession, success bool) error {
	args := m.Called(ctx, session, success)
	return args.Error(0)
}

func (m *mockClient) GetTotalCount(ctx context.Context, chatID int64) (int, error) {
	args := m.Called(ctx, chatID)
	return args.Int(0), args.Error(1)
}

func (m *mockClient) GetMe(ctx context.Context) (platform.Identity, error) {
	args := m.Called(ctx)
	return args.Get(0).(platform.Identity), args.Error(1)
}

func (m *mockClient) PollUpdates(ctx context.Context) (*platform.Updates, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*platform.Updates), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockMessageStore is a testify mock of the orchestrator persistence surface.
type mockMessageStore struct {
	mock.Mock
}

func (m *mockMessageStore) PersistMessages(ctx context.Context, msgs []*models.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockMessageStore) RecordEnrichment(ctx context.Context, msgs []*models.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

// mockCursorStore is a testify mock of the cursor persistence surface.
type mockCursorStore struct {
	mock.Mock
}

func (m *mockCursorStore) UpdateAccountState(ctx context.Context, tenantID string, update models.CursorUpdate) error {
	args := m.Called(ctx, tenantID, update)
	return args.Error(0)
}

func (m *mockCursorStore) ForceUpdateAccountState(ctx context.Context, tenantID string, update models.CursorUpdate) error {
	args := m.Called(ctx, tenantID, update)
	return args.Error(0)
}

func (m *mockCursorStore) GetAccountState(ctx context.Context, tenantID string) (*models.AccountState, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.(*models.AccountState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCursorStore) UpdateChannelPts(ctx context.Context, tenantID string, chatID, pts int64) error {
	args := m.Called(ctx, tenantID, chatID, pts)
	return args.Error(0)
}

func (m *mockCursorStore) GetChannelPts(ctx context.Context, tenantID string, chatID int64) (int64, error) {
	args := m.Called(ctx, tenantID, chatID)
	return args.Get(0).(int64), args.Error(1)
}

// stubBatchResolver is a hand-rolled batch resolver for orchestrator tests.
type stubBatchResolver struct {
	name string
	run  func(ctx context.Context, batch *resolver.Batch) ([]*models.Message, error)
}

func (s *stubBatchResolver) Name() string          { return s.name }
func (s *stubBatchResolver) Modes() resolver.Modes { return resolver.Modes{Batch: true} }

func (s *stubBatchResolver) Run(ctx context.Context, batch *resolver.Batch) ([]*models.Message, error) {
	return s.run(ctx, batch)
}

// stubSelectingResolver is a batch resolver that additionally claims a
// message subset, for tests around disjoint batch views.
type stubSelectingResolver struct {
	stubBatchResolver
	selects func(msg *models.Message) bool
}

func (s *stubSelectingResolver) Selects(msg *models.Message) bool {
	return s.selects(msg)
}

// stubStreamResolver is a hand-rolled stream resolver for orchestrator tests.
type stubStreamResolver struct {
	name   string
	stream func(ctx context.Context, batch *resolver.Batch, emit func(*models.Message)) error
}

func (s *stubStreamResolver) Name() string          { return s.name }
func (s *stubStreamResolver) Modes() resolver.Modes { return resolver.Modes{Stream: true} }

func (s *stubStreamResolver) Stream(ctx context.Context, batch *resolver.Batch, emit func(*models.Message)) error {
	return s.stream(ctx, batch, emit)
}

// stubProvider is a deterministic embedding provider for pipeline tests.
type stubProvider struct {
	dim int
}

func (s *stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, s.dim)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}
	return out, nil
}

func (s *stubProvider) Dimension() int { return s.dim }
func (s *stubProvider) Model() string  { return "stub-model" }

// stubVision answers every photo with a fixed description.
type stubVision struct {
	description string
}

func (s *stubVision) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	return s.description, nil
}

// stubLoader hands back placeholder bytes for any stored descriptor.
type stubLoader struct{}

func (s *stubLoader) Load(queryID string) ([]byte, error) {
	return []byte{0xff, 0xd8}, nil
}
