package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-member-export/internal/domain"
)

func ids(userIDs ...int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		out[id] = struct{}{}
	}
	return out
}

func TestActivityService_Correlate(t *testing.T) {
	ctx := context.Background()
	entity := &domain.ChatEntity{ID: 42, Kind: domain.EntityChannel}

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	t.Run("Первое совпадение побеждает: обход новейших первыми", func(t *testing.T) {
		client := &MockDirectoryClient{
			IterHistoryFunc: historyFromSlice([]domain.HistoryMessage{
				{ID: 5, SenderID: 7, Date: t2},
				{ID: 3, SenderID: 7, Date: t1},
			}),
		}

		signals, err := NewActivityService().Correlate(ctx, client, entity, ids(7), 100, nil)
		require.NoError(t, err)

		require.Contains(t, signals, int64(7))
		assert.Equal(t, t2, signals[7].LastPost, "более старое сообщение не перезаписывает сигнал")
	})

	t.Run("Реакции берутся одной страницей и тоже first-seen-wins", func(t *testing.T) {
		client := &MockDirectoryClient{
			IterHistoryFunc: historyFromSlice([]domain.HistoryMessage{
				{ID: 5, SenderID: 1, Date: t2, HasReactions: true},
				{ID: 3, SenderID: 1, Date: t1, HasReactions: true},
			}),
			ReactionsPageFunc: func(_ context.Context, _ *domain.ChatEntity, messageID, limit int) ([]domain.Reaction, error) {
				assert.Equal(t, 100, limit)
				if messageID == 5 {
					return []domain.Reaction{{UserID: 7, Emoji: "👍", Date: t2}}, nil
				}
				return []domain.Reaction{{UserID: 7, Emoji: "🔥", Date: t1}}, nil
			},
		}

		signals, err := NewActivityService().Correlate(ctx, client, entity, ids(7), 100, nil)
		require.NoError(t, err)

		assert.Equal(t, "👍", signals[7].LastReaction.Emoji)
		assert.Equal(t, t2, signals[7].LastReaction.Date)
	})

	t.Run("Скан завершается досрочно, когда все сигналы собраны", func(t *testing.T) {
		processed := 0
		client := &MockDirectoryClient{
			IterHistoryFunc: func(_ context.Context, _ *domain.ChatEntity, limit int, fn func(domain.HistoryMessage) error) error {
				messages := []domain.HistoryMessage{
					{ID: 5, SenderID: 7, Date: t2},
					{ID: 4, SenderID: 9, Date: t2, HasReactions: true},
					{ID: 3, SenderID: 7, Date: t1},
					{ID: 2, SenderID: 9, Date: t1},
					{ID: 1, SenderID: 9, Date: t1},
				}
				for _, m := range messages {
					processed++
					if err := fn(m); err != nil {
						return err
					}
				}
				return nil
			},
			ReactionsPageFunc: func(_ context.Context, _ *domain.ChatEntity, _, _ int) ([]domain.Reaction, error) {
				return []domain.Reaction{{UserID: 7, Emoji: "👍", Date: t2}}, nil
			},
		}

		var events []domain.ProgressEvent
		signals, err := NewActivityService().Correlate(ctx, client, entity, ids(7), 100, collectEvents(&events))
		require.NoError(t, err)

		assert.Equal(t, 2, processed, "после сбора обоих сигналов скан не продолжается")
		assert.Equal(t, t2, signals[7].LastPost)
		assert.Equal(t, "👍", signals[7].LastReaction.Emoji)

		last := events[len(events)-1]
		assert.Equal(t, domain.ProgressScanDone, last.Kind)
		assert.Equal(t, 2, last.Count)
	})

	t.Run("Ошибка списка реакций не прерывает скан", func(t *testing.T) {
		client := &MockDirectoryClient{
			IterHistoryFunc: historyFromSlice([]domain.HistoryMessage{
				{ID: 5, SenderID: 1, Date: t2, HasReactions: true},
				{ID: 4, SenderID: 7, Date: t1},
			}),
			ReactionsPageFunc: func(_ context.Context, _ *domain.ChatEntity, _, _ int) ([]domain.Reaction, error) {
				return nil, errors.New("REACTIONS_UNAVAILABLE")
			},
		}

		signals, err := NewActivityService().Correlate(ctx, client, entity, ids(7), 100, nil)
		require.NoError(t, err)

		assert.Equal(t, t1, signals[7].LastPost)
		assert.True(t, signals[7].LastReaction.Date.IsZero())
	})

	t.Run("Авторы вне списка участников игнорируются", func(t *testing.T) {
		client := &MockDirectoryClient{
			IterHistoryFunc: historyFromSlice([]domain.HistoryMessage{
				{ID: 5, SenderID: 999, Date: t2},
			}),
		}

		signals, err := NewActivityService().Correlate(ctx, client, entity, ids(7), 100, nil)
		require.NoError(t, err)

		require.Contains(t, signals, int64(7))
		assert.True(t, signals[7].LastPost.IsZero())
		assert.NotContains(t, signals, int64(999))
	})

	t.Run("Пустой список участников пропускает скан", func(t *testing.T) {
		called := false
		client := &MockDirectoryClient{
			IterHistoryFunc: func(_ context.Context, _ *domain.ChatEntity, _ int, _ func(domain.HistoryMessage) error) error {
				called = true
				return nil
			},
		}

		signals, err := NewActivityService().Correlate(ctx, client, entity, nil, 100, nil)
		require.NoError(t, err)
		assert.Empty(t, signals)
		assert.False(t, called)
	})

	t.Run("Ошибка истории прерывает скан", func(t *testing.T) {
		client := &MockDirectoryClient{
			IterHistoryFunc: func(_ context.Context, _ *domain.ChatEntity, _ int, _ func(domain.HistoryMessage) error) error {
				return domain.ErrRPC
			},
		}

		_, err := NewActivityService().Correlate(ctx, client, entity, ids(7), 100, nil)
		assert.ErrorIs(t, err, domain.ErrRPC)
	})
}
