package services

import (
	"context"
	"sync/atomic"
	"time"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
)

// MockDirectoryClient - мок-реализация ports.DirectoryClient для тестирования
type MockDirectoryClient struct {
	ResolveTargetFunc    func(ctx context.Context, ref domain.ChatReference) (*domain.ChatEntity, error)
	CheckInviteFunc      func(ctx context.Context, token string) (*domain.InviteCheck, error)
	IterParticipantsFunc func(ctx context.Context, entity *domain.ChatEntity, filter ports.ParticipantFilter, aggressive bool, fn func(domain.Participant) error) error
	IterHistoryFunc      func(ctx context.Context, entity *domain.ChatEntity, limit int, fn func(domain.HistoryMessage) error) error
	ReactionsPageFunc    func(ctx context.Context, entity *domain.ChatEntity, messageID, limit int) ([]domain.Reaction, error)
	GetUserFunc          func(ctx context.Context, userID int64) (*domain.Participant, error)
}

// ResolveTarget реализует интерфейс ports.DirectoryClient
func (m *MockDirectoryClient) ResolveTarget(ctx context.Context, ref domain.ChatReference) (*domain.ChatEntity, error) {
	if m.ResolveTargetFunc != nil {
		return m.ResolveTargetFunc(ctx, ref)
	}
	return nil, nil
}

// CheckInvite реализует интерфейс ports.DirectoryClient
func (m *MockDirectoryClient) CheckInvite(ctx context.Context, token string) (*domain.InviteCheck, error) {
	if m.CheckInviteFunc != nil {
		return m.CheckInviteFunc(ctx, token)
	}
	return nil, nil
}

// IterParticipants реализует интерфейс ports.DirectoryClient
func (m *MockDirectoryClient) IterParticipants(ctx context.Context, entity *domain.ChatEntity, filter ports.ParticipantFilter, aggressive bool, fn func(domain.Participant) error) error {
	if m.IterParticipantsFunc != nil {
		return m.IterParticipantsFunc(ctx, entity, filter, aggressive, fn)
	}
	return nil
}

// IterHistory реализует интерфейс ports.DirectoryClient
func (m *MockDirectoryClient) IterHistory(ctx context.Context, entity *domain.ChatEntity, limit int, fn func(domain.HistoryMessage) error) error {
	if m.IterHistoryFunc != nil {
		return m.IterHistoryFunc(ctx, entity, limit, fn)
	}
	return nil
}

// ReactionsPage реализует интерфейс ports.DirectoryClient
func (m *MockDirectoryClient) ReactionsPage(ctx context.Context, entity *domain.ChatEntity, messageID, limit int) ([]domain.Reaction, error) {
	if m.ReactionsPageFunc != nil {
		return m.ReactionsPageFunc(ctx, entity, messageID, limit)
	}
	return nil, nil
}

// GetUser реализует интерфейс ports.DirectoryClient
func (m *MockDirectoryClient) GetUser(ctx context.Context, userID int64) (*domain.Participant, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, userID)
	}
	return nil, nil
}

// MockSessionClient - мок-реализация ports.SessionClient для тестирования
type MockSessionClient struct {
	MockDirectoryClient
	IDValue string
}

func (m *MockSessionClient) ID() string                       { return m.IDValue }
func (m *MockSessionClient) Start(ctx context.Context)        {}
func (m *MockSessionClient) Health(ctx context.Context) error { return nil }
func (m *MockSessionClient) GetRecoveryTime() time.Time       { return time.Time{} }

// MockSessionRouter - мок-реализация ports.SessionRouter для тестирования
type MockSessionRouter struct {
	AcquireFunc func(ctx context.Context) (ports.Lease, error)
}

func (m *MockSessionRouter) Acquire(ctx context.Context) (ports.Lease, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx)
	}
	return nil, nil
}

func (m *MockSessionRouter) Stop()                       {}
func (m *MockSessionRouter) NextRecoveryTime() time.Time { return time.Time{} }

// mockLease - аренда с подсчетом освобождений.
type mockLease struct {
	client   ports.SessionClient
	released atomic.Int32
}

func (l *mockLease) Client() ports.SessionClient { return l.client }
func (l *mockLease) Release()                    { l.released.Add(1) }

// mockResolver - мок-реализация ports.Resolver для тестирования
type mockResolver struct {
	ResolveFunc func(ctx context.Context, client ports.DirectoryClient, ref domain.ChatReference) (*domain.ChatEntity, error)
}

func (m *mockResolver) Resolve(ctx context.Context, client ports.DirectoryClient, ref domain.ChatReference) (*domain.ChatEntity, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, client, ref)
	}
	return nil, nil
}

// participantsFromSlice возвращает IterParticipantsFunc, отдающий фиксированный список.
func participantsFromSlice(list []domain.Participant) func(context.Context, *domain.ChatEntity, ports.ParticipantFilter, bool, func(domain.Participant) error) error {
	return func(_ context.Context, _ *domain.ChatEntity, _ ports.ParticipantFilter, _ bool, fn func(domain.Participant) error) error {
		for _, p := range list {
			if err := fn(p); err != nil {
				return err
			}
		}
		return nil
	}
}

// historyFromSlice возвращает IterHistoryFunc, отдающий сообщения в заданном порядке.
func historyFromSlice(list []domain.HistoryMessage) func(context.Context, *domain.ChatEntity, int, func(domain.HistoryMessage) error) error {
	return func(_ context.Context, _ *domain.ChatEntity, limit int, fn func(domain.HistoryMessage) error) error {
		for i, m := range list {
			if i >= limit {
				return nil
			}
			if err := fn(m); err != nil {
				return err
			}
		}
		return nil
	}
}

// collectEvents возвращает сток прогресса, складывающий события в срез.
func collectEvents(events *[]domain.ProgressEvent) ports.ProgressSink {
	return func(e domain.ProgressEvent) {
		*events = append(*events, e)
	}
}

// kinds возвращает виды событий в порядке их появления.
func kinds(events []domain.ProgressEvent) []domain.ProgressKind {
	out := make([]domain.ProgressKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}
