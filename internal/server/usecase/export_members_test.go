package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telegram-member-export/internal/core/services"
	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/pkg/config"
	"telegram-member-export/internal/ports"
)

// Mocks for dependencies
type mockLease struct {
	client   ports.SessionClient
	released int
}

func (l *mockLease) Client() ports.SessionClient { return l.client }
func (l *mockLease) Release()                    { l.released++ }

type mockRouter struct {
	lease *mockLease
	err   error
}

func (r *mockRouter) Acquire(ctx context.Context) (ports.Lease, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.lease, nil
}

func (r *mockRouter) Stop()                       {}
func (r *mockRouter) NextRecoveryTime() time.Time { return time.Time{} }

type mockSessionClient struct {
	ports.DirectoryClient
}

func (c *mockSessionClient) ID() string                       { return "tg-test" }
func (c *mockSessionClient) Start(ctx context.Context)        {}
func (c *mockSessionClient) Health(ctx context.Context) error { return nil }
func (c *mockSessionClient) GetRecoveryTime() time.Time       { return time.Time{} }

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, client ports.DirectoryClient, ref domain.ChatReference) (*domain.ChatEntity, error) {
	args := m.Called(ctx, client, ref)
	if res := args.Get(0); res != nil {
		return res.(*domain.ChatEntity), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCollector struct{ mock.Mock }

func (m *mockCollector) CollectCensus(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, sink ports.ProgressSink) (*services.Census, error) {
	args := m.Called(ctx, client, entity, sink)
	if res := args.Get(0); res != nil {
		return res.(*services.Census), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCollector) Collect(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, mode domain.ExportMode, historyLimit int, census *services.Census, sink ports.ProgressSink) ([]domain.Participant, error) {
	args := m.Called(ctx, client, entity, mode, historyLimit, census, sink)
	if res := args.Get(0); res != nil {
		return res.([]domain.Participant), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCorrelator struct{ mock.Mock }

func (m *mockCorrelator) Correlate(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, userIDs map[int64]struct{}, historyLimit int, sink ports.ProgressSink) (map[int64]*domain.ActivitySignal, error) {
	args := m.Called(ctx, client, entity, userIDs, historyLimit, sink)
	if res := args.Get(0); res != nil {
		return res.(map[int64]*domain.ActivitySignal), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockWriter struct{ mock.Mock }

func (m *mockWriter) Export(path string, rows []domain.ExportRow, adminFields bool) error {
	args := m.Called(path, rows, adminFields)
	return args.Error(0)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Export: config.Export{
			Mode:         "member",
			HistoryLimit: 100,
			OutputDir:    t.TempDir(),
			Format:       "csv",
		},
	}
}

func TestExportMembersUseCase(t *testing.T) {
	ctx := context.Background()

	entity := &domain.ChatEntity{ID: 42, Kind: domain.EntityChannel, Title: "Test Chat"}
	lastPost := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	t.Run("success flow end to end", func(t *testing.T) {
		lease := &mockLease{client: &mockSessionClient{}}
		router := &mockRouter{lease: lease}
		resolver := new(mockResolver)
		collector := new(mockCollector)
		correlator := new(mockCorrelator)
		writer := new(mockWriter)

		members := []domain.Participant{
			{UserID: 1, Username: "bot_a", IsBot: true},
			{UserID: 2, Username: "user_b", IsRecent: true},
			{UserID: 3, FirstName: "Carol", LastName: "C"},
		}
		census := &services.Census{BotCount: 1, RecentIDs: map[int64]struct{}{2: {}}}
		signals := map[int64]*domain.ActivitySignal{
			2: {LastPost: lastPost, LastReaction: domain.ReactionMark{Emoji: "👍", Date: lastPost}},
		}

		resolver.On("Resolve", ctx, lease.client, mock.AnythingOfType("domain.ChatReference")).Return(entity, nil).Once()
		collector.On("CollectCensus", ctx, lease.client, entity, mock.Anything).Return(census, nil).Once()
		collector.On("Collect", ctx, lease.client, entity, domain.ModeMember, 100, census, mock.Anything).Return(members, nil).Once()
		correlator.On("Correlate", ctx, lease.client, entity, map[int64]struct{}{1: {}, 2: {}, 3: {}}, 100, mock.Anything).Return(signals, nil).Once()
		writer.On("Export", mock.AnythingOfType("string"), mock.AnythingOfType("[]domain.ExportRow"), false).Return(nil).Once()

		uc := NewExportMembersUseCase(testConfig(t), router, resolver, collector, correlator, map[string]ports.RowWriter{"csv": writer}, nil)

		var events []domain.ProgressEvent
		summary, err := uc.Run(ctx, Options{
			Input:    "test_chat",
			Progress: func(e domain.ProgressEvent) { events = append(events, e) },
		})
		require.NoError(t, err)

		assert.Equal(t, 3, summary.TotalMembers)
		assert.Equal(t, 1, summary.BotCount)
		assert.Equal(t, 1, summary.RecentCount)
		assert.Equal(t, "Test Chat", summary.ChatTitle)
		assert.NotEmpty(t, summary.OutputPath)

		// Писатель получает полный набор строк в порядке основного потока.
		rows := writer.Calls[0].Arguments.Get(1).([]domain.ExportRow)
		require.Len(t, rows, 3)
		assert.Equal(t, "bot_a", rows[0].Username)
		assert.True(t, rows[0].IsBot)
		assert.Equal(t, lastPost, rows[1].LastPost)
		assert.Equal(t, "👍", rows[1].LastReaction.Emoji)
		assert.True(t, rows[1].IsRecent)
		assert.Equal(t, "Carol C", rows[2].Username)
		assert.True(t, rows[2].LastPost.IsZero())

		// Аренда освобождается после завершения.
		assert.Equal(t, 1, lease.released)

		require.NotEmpty(t, events)
		assert.Equal(t, domain.ProgressResolved, events[0].Kind)
		assert.Equal(t, "Test Chat", events[0].Message)
		assert.Equal(t, domain.ProgressSaved, events[len(events)-1].Kind)

		resolver.AssertExpectations(t)
		collector.AssertExpectations(t)
		correlator.AssertExpectations(t)
		writer.AssertExpectations(t)
	})

	t.Run("admin mode passes mode and admin fields through", func(t *testing.T) {
		lease := &mockLease{client: &mockSessionClient{}}
		router := &mockRouter{lease: lease}
		resolver := new(mockResolver)
		collector := new(mockCollector)
		correlator := new(mockCorrelator)
		writer := new(mockWriter)

		joined := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
		members := []domain.Participant{
			{UserID: 1, Username: "owner", Role: domain.RoleCreator, JoinDate: joined},
			{UserID: 2, Username: "expelled", Role: domain.RoleBanned},
		}
		census := &services.Census{RecentIDs: map[int64]struct{}{}}

		resolver.On("Resolve", ctx, lease.client, mock.Anything).Return(entity, nil).Once()
		collector.On("CollectCensus", ctx, lease.client, entity, mock.Anything).Return(census, nil).Once()
		collector.On("Collect", ctx, lease.client, entity, domain.ModeAdmin, 100, census, mock.Anything).Return(members, nil).Once()
		correlator.On("Correlate", ctx, lease.client, entity, mock.Anything, 100, mock.Anything).Return(map[int64]*domain.ActivitySignal{}, nil).Once()
		writer.On("Export", mock.Anything, mock.Anything, true).Return(nil).Once()

		uc := NewExportMembersUseCase(testConfig(t), router, resolver, collector, correlator, map[string]ports.RowWriter{"csv": writer}, nil)

		_, err := uc.Run(ctx, Options{Input: "test_chat", Mode: domain.ModeAdmin})
		require.NoError(t, err)

		rows := writer.Calls[0].Arguments.Get(1).([]domain.ExportRow)
		require.Len(t, rows, 2)
		assert.Equal(t, domain.StatusAdmin, rows[0].Status)
		assert.Equal(t, joined, rows[0].JoinDate)
		assert.Equal(t, domain.StatusRestricted, rows[1].Status)

		writer.AssertExpectations(t)
	})

	t.Run("explicit output path is respected", func(t *testing.T) {
		lease := &mockLease{client: &mockSessionClient{}}
		router := &mockRouter{lease: lease}
		resolver := new(mockResolver)
		collector := new(mockCollector)
		correlator := new(mockCorrelator)
		writer := new(mockWriter)

		resolver.On("Resolve", ctx, lease.client, mock.Anything).Return(entity, nil)
		collector.On("CollectCensus", ctx, lease.client, entity, mock.Anything).Return(&services.Census{}, nil)
		collector.On("Collect", ctx, lease.client, entity, domain.ModeMember, 100, mock.Anything, mock.Anything).Return([]domain.Participant{}, nil)
		correlator.On("Correlate", ctx, lease.client, entity, mock.Anything, 100, mock.Anything).Return(map[int64]*domain.ActivitySignal{}, nil)

		path := filepath.Join(t.TempDir(), "custom", "members.csv")
		writer.On("Export", path, mock.Anything, false).Return(nil).Once()

		uc := NewExportMembersUseCase(testConfig(t), router, resolver, collector, correlator, map[string]ports.RowWriter{"csv": writer}, nil)

		summary, err := uc.Run(ctx, Options{Input: "test_chat", OutputPath: path})
		require.NoError(t, err)
		assert.Equal(t, path, summary.OutputPath)
		writer.AssertExpectations(t)
	})

	t.Run("invalid input", func(t *testing.T) {
		uc := NewExportMembersUseCase(testConfig(t), &mockRouter{}, nil, nil, nil, map[string]ports.RowWriter{"csv": new(mockWriter)}, nil)
		_, err := uc.Run(ctx, Options{Input: "   "})
		assert.ErrorIs(t, err, domain.ErrInvalidReference)
	})

	t.Run("unsupported format", func(t *testing.T) {
		uc := NewExportMembersUseCase(testConfig(t), &mockRouter{}, nil, nil, nil, map[string]ports.RowWriter{"csv": new(mockWriter)}, nil)
		_, err := uc.Run(ctx, Options{Input: "test_chat", Format: "ods"})
		assert.Error(t, err)
	})

	t.Run("router error", func(t *testing.T) {
		router := &mockRouter{err: errors.New("no clients")}
		uc := NewExportMembersUseCase(testConfig(t), router, nil, nil, nil, map[string]ports.RowWriter{"csv": new(mockWriter)}, nil)
		_, err := uc.Run(ctx, Options{Input: "test_chat"})
		assert.Error(t, err)
	})

	t.Run("resolve error releases lease and skips writer", func(t *testing.T) {
		lease := &mockLease{client: &mockSessionClient{}}
		router := &mockRouter{lease: lease}
		resolver := new(mockResolver)
		writer := new(mockWriter)

		resolver.On("Resolve", ctx, lease.client, mock.Anything).Return(nil, domain.ErrUnresolvedInvite).Once()

		uc := NewExportMembersUseCase(testConfig(t), router, resolver, nil, nil, map[string]ports.RowWriter{"csv": writer}, nil)

		_, err := uc.Run(ctx, Options{Input: "+AbCdEf12"})
		assert.ErrorIs(t, err, domain.ErrUnresolvedInvite)
		assert.Equal(t, 1, lease.released)
		writer.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("writer error surfaces and lease is released", func(t *testing.T) {
		lease := &mockLease{client: &mockSessionClient{}}
		router := &mockRouter{lease: lease}
		resolver := new(mockResolver)
		collector := new(mockCollector)
		correlator := new(mockCorrelator)
		writer := new(mockWriter)

		resolver.On("Resolve", ctx, lease.client, mock.Anything).Return(entity, nil)
		collector.On("CollectCensus", ctx, lease.client, entity, mock.Anything).Return(&services.Census{}, nil)
		collector.On("Collect", ctx, lease.client, entity, domain.ModeMember, 100, mock.Anything, mock.Anything).Return([]domain.Participant{{UserID: 1}}, nil)
		correlator.On("Correlate", ctx, lease.client, entity, mock.Anything, 100, mock.Anything).Return(map[int64]*domain.ActivitySignal{}, nil)
		writer.On("Export", mock.Anything, mock.Anything, false).Return(errors.New("disk full")).Once()

		uc := NewExportMembersUseCase(testConfig(t), router, resolver, collector, correlator, map[string]ports.RowWriter{"csv": writer}, nil)

		_, err := uc.Run(ctx, Options{Input: "test_chat"})
		assert.Error(t, err)
		assert.Equal(t, 1, lease.released)
	})
}
