package services

import (
	"context"
	"errors"
	"log/slog"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
)

const (
	// scanProgressEvery задает шаг отчета о прогрессе скана истории.
	scanProgressEvery = 250
	// reactionPageSize — размер единственной страницы списка реакций на сообщение.
	reactionPageSize = 100
)

// errScanComplete завершает обход истории, когда все сигналы уже собраны.
var errScanComplete = errors.New("activity scan complete")

// ActivityOption — функциональная опция для настройки ActivityService.
type ActivityOption func(*ActivityService)

// WithActivityLogger устанавливает логгер для сервиса.
func WithActivityLogger(l *slog.Logger) ActivityOption {
	return func(s *ActivityService) {
		if l != nil {
			s.log = l
		}
	}
}

// ActivityService сопоставляет участникам сигналы активности из истории чата.
// Сервис не хранит состояние и безопасен для одновременного использования.
type ActivityService struct {
	log *slog.Logger
}

// NewActivityService создает новый ActivityService.
func NewActivityService(opts ...ActivityOption) *ActivityService {
	s := &ActivityService{
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Correlate сканирует историю от новых сообщений к старым и находит для каждого
// пользователя из userIDs последний пост и последнюю реакцию. Обход новейших
// первыми означает, что первое совпадение и есть самое свежее: однажды
// записанный сигнал не перезаписывается. Скан завершается досрочно, когда у
// всех пользователей собраны оба сигнала.
func (s *ActivityService) Correlate(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, userIDs map[int64]struct{}, historyLimit int, sink ports.ProgressSink) (map[int64]*domain.ActivitySignal, error) {
	sink.Emit(domain.ProgressEvent{Kind: domain.ProgressScanning})

	signals := make(map[int64]*domain.ActivitySignal, len(userIDs))
	for id := range userIDs {
		signals[id] = &domain.ActivitySignal{}
	}

	pending := len(signals) * 2
	if pending == 0 {
		sink.Emit(domain.ProgressEvent{Kind: domain.ProgressScanDone})
		return signals, nil
	}
	scanned := 0

	err := client.IterHistory(ctx, entity, historyLimit, func(m domain.HistoryMessage) error {
		scanned++

		if sig, tracked := signals[m.SenderID]; tracked && sig.LastPost.IsZero() {
			sig.LastPost = m.Date
			pending--
		}

		if m.HasReactions && pending > 0 {
			reactions, err := client.ReactionsPage(ctx, entity, m.ID, reactionPageSize)
			if err != nil {
				// Недоступный список реакций не прерывает скан: теряется
				// только сигнал реакции для этого сообщения.
				s.log.DebugContext(ctx, "Skipping unavailable reactions", "message_id", m.ID, "error", err)
			}
			for _, r := range reactions {
				sig, tracked := signals[r.UserID]
				if !tracked || !sig.LastReaction.Date.IsZero() {
					continue
				}
				sig.LastReaction = domain.ReactionMark{Emoji: r.Emoji, Date: r.Date}
				pending--
			}
		}

		if scanned%scanProgressEvery == 0 {
			sink.Emit(domain.ProgressEvent{Kind: domain.ProgressScanned, Count: scanned})
		}

		if pending == 0 {
			return errScanComplete
		}
		return nil
	})
	if err != nil && !errors.Is(err, errScanComplete) {
		return nil, err
	}

	sink.Emit(domain.ProgressEvent{Kind: domain.ProgressScanDone, Count: scanned})
	return signals, nil
}
