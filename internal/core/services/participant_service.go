package services

import (
	"context"
	"errors"
	"log/slog"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
)

// participantProgressEvery задает шаг отчета о прогрессе сбора участников.
const participantProgressEvery = 200

// ParticipantOption — функциональная опция для настройки ParticipantService.
type ParticipantOption func(*ParticipantService)

// WithParticipantLogger устанавливает логгер для сервиса.
func WithParticipantLogger(l *slog.Logger) ParticipantOption {
	return func(s *ParticipantService) {
		if l != nil {
			s.log = l
		}
	}
}

// ParticipantService собирает участников чата и предварительные счетчики.
// Сервис не хранит состояние и безопасен для одновременного использования.
type ParticipantService struct {
	log *slog.Logger
}

// NewParticipantService создает новый ParticipantService.
func NewParticipantService(opts ...ParticipantOption) *ParticipantService {
	s := &ParticipantService{
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Census — предварительные счетчики, собранные до основного потока участников.
type Census struct {
	// BotCount — число ботов по серверному фильтру; 0 при нехватке прав.
	BotCount int
	// RecentIDs — идентификаторы недавно активных участников; пусто при нехватке прав.
	RecentIDs map[int64]struct{}
}

// CollectCensus считает ботов и недавно активных участников через серверные
// фильтры. Нехватка прав и протокольные ошибки на этих потоках сглаживаются:
// счетчики деградируют до нуля, выгрузка продолжается.
func (s *ParticipantService) CollectCensus(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, sink ports.ProgressSink) (*Census, error) {
	census := &Census{RecentIDs: make(map[int64]struct{})}

	botCount := 0
	err := client.IterParticipants(ctx, entity, ports.FilterBots, false, func(p domain.Participant) error {
		botCount++
		return nil
	})
	switch {
	case err == nil:
		census.BotCount = botCount
		sink.Emit(domain.ProgressEvent{Kind: domain.ProgressBotsCounted, Count: botCount})
	case domain.Degradable(err):
		s.log.WarnContext(ctx, "Bot census degraded to zero", "chat_id", entity.ID, "error", err)
		sink.Emit(domain.ProgressEvent{Kind: domain.ProgressBotsDenied})
	default:
		return nil, err
	}

	err = client.IterParticipants(ctx, entity, ports.FilterRecent, false, func(p domain.Participant) error {
		census.RecentIDs[p.UserID] = struct{}{}
		return nil
	})
	switch {
	case err == nil:
		sink.Emit(domain.ProgressEvent{Kind: domain.ProgressRecentCounted, Count: len(census.RecentIDs)})
	case domain.Degradable(err):
		s.log.WarnContext(ctx, "Recent census degraded to empty", "chat_id", entity.ID, "error", err)
		census.RecentIDs = make(map[int64]struct{})
		sink.Emit(domain.ProgressEvent{Kind: domain.ProgressRecentDenied})
	default:
		return nil, err
	}

	return census, nil
}

// Collect собирает основной список участников чата. В режиме администратора
// используется агрессивный перебор, обходящий серверный лимит на размер
// страницы. В режиме участника пустой список (или нехватка прав) включает
// фолбэк: участники синтезируются из авторов сообщений истории.
// Инвариант: одна запись на уникальный UserID.
func (s *ParticipantService) Collect(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, mode domain.ExportMode, historyLimit int, census *Census, sink ports.ProgressSink) ([]domain.Participant, error) {
	sink.Emit(domain.ProgressEvent{Kind: domain.ProgressCollecting})

	aggressive := mode == domain.ModeAdmin

	var participants []domain.Participant
	seen := make(map[int64]struct{})
	err := client.IterParticipants(ctx, entity, ports.FilterNone, aggressive, func(p domain.Participant) error {
		if _, dup := seen[p.UserID]; dup {
			return nil
		}
		seen[p.UserID] = struct{}{}
		if _, recent := census.RecentIDs[p.UserID]; recent {
			p.IsRecent = true
		}
		participants = append(participants, p)
		if len(participants)%participantProgressEvery == 0 {
			sink.Emit(domain.ProgressEvent{Kind: domain.ProgressParticipants, Count: len(participants)})
		}
		return nil
	})
	if err != nil {
		// Фолбэк только при нехватке прав: протокольные ошибки на основном
		// потоке прерывают выгрузку, в отличие от потоков счетчиков.
		if mode == domain.ModeMember && errors.Is(err, domain.ErrPermissionDenied) {
			s.log.WarnContext(ctx, "Participant stream unavailable, falling back to history senders", "chat_id", entity.ID, "error", err)
			return s.collectFromHistory(ctx, client, entity, historyLimit, census, sink)
		}
		return nil, err
	}

	if len(participants) == 0 && mode == domain.ModeMember {
		return s.collectFromHistory(ctx, client, entity, historyLimit, census, sink)
	}

	sink.Emit(domain.ProgressEvent{Kind: domain.ProgressParticipants, Count: len(participants)})
	return participants, nil
}

// collectFromHistory синтезирует участников из авторов сообщений истории.
// Размер результата ограничен числом уникальных авторов в пределах лимита скана.
func (s *ParticipantService) collectFromHistory(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, historyLimit int, census *Census, sink ports.ProgressSink) ([]domain.Participant, error) {
	sink.Emit(domain.ProgressEvent{Kind: domain.ProgressFallback})

	senders := make(map[int64]struct{})
	var order []int64
	err := client.IterHistory(ctx, entity, historyLimit, func(m domain.HistoryMessage) error {
		if m.SenderID == 0 {
			return nil
		}
		if _, dup := senders[m.SenderID]; dup {
			return nil
		}
		senders[m.SenderID] = struct{}{}
		order = append(order, m.SenderID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	participants := make([]domain.Participant, 0, len(order))
	for _, userID := range order {
		p, err := client.GetUser(ctx, userID)
		if err != nil {
			// Удаленные аккаунты и недоступные пользователи не прерывают фолбэк.
			s.log.DebugContext(ctx, "Skipping unresolvable history sender", "user_id", userID, "error", err)
			continue
		}
		if _, recent := census.RecentIDs[p.UserID]; recent {
			p.IsRecent = true
		}
		participants = append(participants, *p)
		if len(participants)%participantProgressEvery == 0 {
			sink.Emit(domain.ProgressEvent{Kind: domain.ProgressParticipants, Count: len(participants)})
		}
	}

	sink.Emit(domain.ProgressEvent{Kind: domain.ProgressParticipants, Count: len(participants)})
	return participants, nil
}
