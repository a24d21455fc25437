package domain

import (
	"fmt"
	"time"
)

// ExportMode определяет режим выгрузки участников.
type ExportMode string

const (
	// ModeMember — обычный режим участника без административных полей.
	ModeMember ExportMode = "member"
	// ModeAdmin — режим администратора: агрессивный перебор и поля join_date/status.
	ModeAdmin ExportMode = "admin"
)

// Valid сообщает, является ли режим одним из поддерживаемых значений.
func (m ExportMode) Valid() bool {
	return m == ModeMember || m == ModeAdmin
}

// EntityKind определяет тип сущности, возвращенной Telegram.
type EntityKind string

const (
	EntityChannel EntityKind = "channel"
	EntityChat    EntityKind = "chat"
	EntityUser    EntityKind = "user"
)

// ChatEntity представляет разрешенный чат (канал, группу или пользователя).
// Это наша внутренняя модель; AccessHash нужен адаптеру для последующих запросов.
type ChatEntity struct {
	ID         int64
	AccessHash int64
	Kind       EntityKind
	Title      string
	Username   string
	FirstName  string
}

// DisplayTitle возвращает отображаемое название чата с цепочкой фолбэков:
// title -> username -> first name -> значение raw.
func (e *ChatEntity) DisplayTitle(raw string) string {
	switch {
	case e.Title != "":
		return e.Title
	case e.Username != "":
		return e.Username
	case e.FirstName != "":
		return e.FirstName
	default:
		return raw
	}
}

// ParticipantStatus — статус участника в чате (только для режима администратора).
type ParticipantStatus string

const (
	StatusMember     ParticipantStatus = "member"
	StatusAdmin      ParticipantStatus = "admin"
	StatusRestricted ParticipantStatus = "restricted"
)

// ParticipantRole — роль участника, как ее сообщил сервер.
// Закрытый набор вариантов вместо проверки конкретных типов из схемы API.
type ParticipantRole int

const (
	RoleUnknown ParticipantRole = iota
	RolePlain
	RoleSelf
	RoleCreator
	RoleAdmin
	RoleBanned
	RoleLeft
)

// Status сопоставляет роль со статусом экспорта. Порядок веток кодирует
// приоритет: создатель/администратор, затем забаненные и вышедшие
// (обе группы помечаются restricted, чтобы выделяться в выгрузке),
// все остальное — обычный участник.
func (r ParticipantRole) Status() ParticipantStatus {
	switch r {
	case RoleCreator, RoleAdmin:
		return StatusAdmin
	case RoleBanned:
		return StatusRestricted
	case RoleLeft:
		return StatusRestricted
	default:
		return StatusMember
	}
}

// Participant представляет одного участника чата.
type Participant struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
	IsRecent  bool
	// JoinDate и Role заполняются только в режиме администратора.
	JoinDate time.Time
	Role     ParticipantRole
}

// DisplayName возвращает имя для выгрузки: username, иначе "имя фамилия",
// иначе литеральная заглушка.
func (p *Participant) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	name := p.FirstName
	if p.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.LastName
	}
	if name == "" {
		return "(no username)"
	}
	return name
}

// ReactionMark хранит последнюю реакцию пользователя: эмодзи и ее время.
type ReactionMark struct {
	Emoji string
	Date  time.Time
}

// String форматирует реакцию в виде "эмодзи @ время".
func (r ReactionMark) String() string {
	ts := FormatTime(r.Date)
	if r.Emoji != "" && ts != "" {
		return fmt.Sprintf("%s @ %s", r.Emoji, ts)
	}
	if r.Emoji != "" {
		return r.Emoji
	}
	return ts
}

// ActivitySignal — сигналы активности одного пользователя из скана истории.
type ActivitySignal struct {
	LastPost     time.Time
	LastReaction ReactionMark
}

// ExportRow — одна строка финальной выгрузки: участник + его активность.
// Инвариант: ровно одна строка на уникальный UserID из списка участников.
type ExportRow struct {
	UserID       int64
	Username     string
	IsBot        bool
	IsRecent     bool
	LastPost     time.Time
	LastReaction ReactionMark
	// Только для режима администратора.
	JoinDate time.Time
	Status   ParticipantStatus
}

// ExportSummary — итог одной выгрузки. Создается один раз и не изменяется.
type ExportSummary struct {
	TotalMembers int
	BotCount     int
	RecentCount  int
	OutputPath   string
	ChatTitle    string
}

// HistoryMessage — сообщение из скана истории в том виде, который нужен ядру.
type HistoryMessage struct {
	ID           int
	SenderID     int64
	Date         time.Time
	HasReactions bool
}

// Reaction — одна запись из списка реакций на сообщение.
type Reaction struct {
	UserID int64
	Emoji  string
	Date   time.Time
}

// InviteCheck — результат проверки инвайт-ссылки.
type InviteCheck struct {
	// AlreadyParticipant истинно, когда аккаунт уже состоит в чате.
	AlreadyParticipant bool
	// Entity заполняется, когда сервер вернул сам чат вместе с проверкой.
	Entity *ChatEntity
}

// FormatTime приводит время к RFC3339; нулевое время превращается в пустую строку.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
