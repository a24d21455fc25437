package ports

import (
	"context"

	"telegram-member-export/internal/domain"
)

// ParticipantFilter — серверный фильтр для потока участников.
type ParticipantFilter int

const (
	// FilterNone — без фильтра, полный список участников.
	FilterNone ParticipantFilter = iota
	// FilterBots — только боты.
	FilterBots
	// FilterRecent — недавно активные участники.
	FilterRecent
)

// DirectoryClient определяет возможности удаленного справочника чатов,
// которые нужны ядру пайплайна. Все потоки строго последовательны:
// порядок обхода является частью контракта (first-seen-wins).
type DirectoryClient interface {
	// ResolveTarget разрешает цель описания (username или числовой id) в сущность чата.
	ResolveTarget(ctx context.Context, ref domain.ChatReference) (*domain.ChatEntity, error)

	// CheckInvite проверяет инвайт-токен, не присоединяясь к чату.
	CheckInvite(ctx context.Context, token string) (*domain.InviteCheck, error)

	// IterParticipants последовательно обходит участников чата с опциональным
	// серверным фильтром. Агрессивный режим выполняет больше запросов, чтобы
	// обойти серверный лимит на размер страницы.
	IterParticipants(ctx context.Context, entity *domain.ChatEntity, filter ParticipantFilter, aggressive bool, fn func(domain.Participant) error) error

	// IterHistory обходит сообщения от новых к старым, не больше limit штук.
	IterHistory(ctx context.Context, entity *domain.ChatEntity, limit int, fn func(domain.HistoryMessage) error) error

	// ReactionsPage загружает одну страницу списка реакций на сообщение.
	ReactionsPage(ctx context.Context, entity *domain.ChatEntity, messageID, limit int) ([]domain.Reaction, error)

	// GetUser загружает одного пользователя по id.
	GetUser(ctx context.Context, userID int64) (*domain.Participant, error)
}

// ProgressSink принимает события прогресса пайплайна. Вызовы не должны
// блокировать пайплайн; форматирование текста — дело пограничного слоя.
type ProgressSink func(domain.ProgressEvent)

// Emit отправляет событие, если сток задан.
func (s ProgressSink) Emit(e domain.ProgressEvent) {
	if s != nil {
		s(e)
	}
}

// RowWriter записывает финальный набор строк в файл.
// Вызывается один раз, только после того, как набор строк собран целиком.
type RowWriter interface {
	Export(path string, rows []domain.ExportRow, adminFields bool) error
}

// Resolver разрешает каноническое описание чата в сущность.
type Resolver interface {
	Resolve(ctx context.Context, client DirectoryClient, ref domain.ChatReference) (*domain.ChatEntity, error)
}
