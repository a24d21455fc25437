package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"golang.org/x/term"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/ports"
	trm "telegram-member-export/internal/pkg/term"
)

var (
	// ErrFloodWaitActive возвращается, когда клиент не может выполнить запрос из-за активного ограничения FLOOD_WAIT.
	ErrFloodWaitActive = errors.New("client is in flood wait")
	// floodWaitRegex используется для парсинга длительности ожидания из сообщения об ошибке.
	floodWaitRegex = regexp.MustCompile(`FLOOD_WAIT \((\d+)\)`)
)

// pageSize — серверный размер страницы для участников, истории и реакций.
const pageSize = 100

// aggressiveQueries — префиксы для агрессивного перебора участников.
// Каждый префикс — отдельная серия запросов с серверным поиском; так
// обходится лимит сервера на размер выдачи без фильтра.
var aggressiveQueries = []string{
	"", "a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
}

// telegramAPI представляет необработанные методы API, которые мы используем.
type telegramAPI interface {
	UsersGetUsers(ctx context.Context, request []tg.InputUserClass) ([]tg.UserClass, error)
	ContactsResolveUsername(ctx context.Context, username string) (*tg.ContactsResolvedPeer, error)
	ChannelsGetChannels(ctx context.Context, ids []tg.InputChannelClass) (tg.MessagesChatsClass, error)
	MessagesGetChats(ctx context.Context, ids []int64) (tg.MessagesChatsClass, error)
	MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error)
	ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error)
	MessagesGetFullChat(ctx context.Context, chatID int64) (*tg.MessagesChatFull, error)
	MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	MessagesGetMessageReactionsList(ctx context.Context, req *tg.MessagesGetMessageReactionsListRequest) (*tg.MessagesMessageReactionsList, error)
	HelpGetConfig(ctx context.Context) (*tg.Config, error)
}

// telegramAuth представляет клиент аутентификации.
type telegramAuth interface {
	auth.FlowClient
}

// telegramRunner определяет зависимости от клиента gotd.
// Это позволяет создавать моки в тестах.
type telegramRunner interface {
	Run(ctx context.Context, f func(ctx context.Context) error) error
	API() telegramAPI
	Auth() telegramAuth
}

// prodRunner является оберткой вокруг реального *telegram.Client для удовлетворения интерфейса telegramRunner.
type prodRunner struct {
	*telegram.Client
}

func (p *prodRunner) API() telegramAPI {
	return p.Client.API()
}

func (p *prodRunner) Auth() telegramAuth {
	return p.Client.Auth()
}

// authFlow определяет интерфейс для процесса аутентификации.
type authFlow interface {
	Run(ctx context.Context, client auth.FlowClient) error
}

// Client — клиент справочника Telegram с собственной сессией.
// Инкапсулирует аутентификацию, обработку FLOOD_WAIT и перевод ответов
// схемы API в доменные типы.
type Client struct {
	id         string
	tgRunner   telegramRunner
	authFlow   authFlow
	isTerminal func(fd int) bool
	clock      func() time.Time
	log        *slog.Logger

	mu             sync.RWMutex
	unhealthyUntil time.Time
	runErr         chan error
	startOnce      sync.Once
}

var _ ports.SessionClient = (*Client)(nil)

// Config содержит конфигурацию для создания нового клиента.
type Config struct {
	APIID       int
	APIHash     string
	PhoneNumber string
	SessionPath string
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithAuthenticator устанавливает источник кода подтверждения и пароля 2FA.
// По умолчанию используется интерактивный терминал.
func WithAuthenticator(a auth.UserAuthenticator) ClientOption {
	return func(c *Client) {
		if a != nil {
			c.authFlow = auth.NewFlow(a, auth.SendCodeOptions{})
		}
	}
}

// NewClient создает новый экземпляр Client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	// Аутентификатор по умолчанию — интерактивный терминал.
	termAuth := trm.NewTerminal(cfg.PhoneNumber)

	// Настраиваем хранилище сессии.
	sessionStorage := &session.FileStorage{Path: cfg.SessionPath}

	tgClient := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: sessionStorage,
	})

	c := &Client{
		id:         uuid.NewString(),
		tgRunner:   &prodRunner{Client: tgClient},
		authFlow:   auth.NewFlow(termAuth, auth.SendCodeOptions{}),
		isTerminal: func(fd int) bool { return term.IsTerminal(fd) },
		clock:      time.Now,
		log:        slog.Default(),
		runErr:     make(chan error, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ID возвращает уникальный идентификатор клиента.
func (c *Client) ID() string {
	return c.id
}

// Start запускает фоновый процесс клиента, включая аутентификацию.
// Должен быть вызван один раз перед использованием клиента.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go func() {
			c.log.InfoContext(ctx, "Starting telegram client background runner", "client_id", c.id)
			err := c.tgRunner.Run(ctx, func(runCtx context.Context) error {
				// Проверяем статус аутентификации при запуске.
				if _, err := c.tgRunner.API().UsersGetUsers(runCtx, []tg.InputUserClass{&tg.InputUserSelf{}}); err != nil {
					if strings.Contains(err.Error(), "AUTH_KEY_UNREGISTERED") {
						c.log.WarnContext(runCtx, "Session check failed, attempting interactive auth", "client_id", c.id, "reason", "AUTH_KEY_UNREGISTERED")
					} else {
						c.log.WarnContext(runCtx, "Session check failed, attempting interactive auth", "client_id", c.id, "error", err)
					}
					if !c.isTerminal(int(os.Stdout.Fd())) {
						return fmt.Errorf("session is invalid and cannot perform interactive auth in non-terminal: %w", err)
					}
					if authErr := c.authFlow.Run(runCtx, c.tgRunner.Auth()); authErr != nil {
						if isCredentialsError(authErr) {
							return fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, authErr)
						}
						return fmt.Errorf("interactive auth failed: %w", authErr)
					}
					c.log.InfoContext(runCtx, "Interactive auth successful, session saved", "client_id", c.id)
				}
				c.log.InfoContext(runCtx, "Telegram client authenticated and ready", "client_id", c.id)

				// Держим соединение активным, пока не завершится контекст.
				<-runCtx.Done()
				return runCtx.Err()
			})

			if err != nil && !errors.Is(err, context.Canceled) {
				c.log.ErrorContext(ctx, "Telegram client background runner exited with error", "client_id", c.id, "error", err)
			} else {
				c.log.InfoContext(ctx, "Telegram client background runner stopped", "client_id", c.id)
			}

			c.runErr <- err
			close(c.runErr)
		}()
	})
}

// Health проверяет работоспособность клиента легковесным запросом.
// Если активен FLOOD_WAIT, возвращает ошибку без запроса.
func (c *Client) Health(ctx context.Context) error {
	if err := c.checkHealthStatus(); err != nil {
		return err
	}

	return c.do(ctx, func(ctx context.Context) error {
		_, err := c.tgRunner.API().HelpGetConfig(ctx)
		return err
	})
}

// GetRecoveryTime возвращает момент окончания текущего FLOOD_WAIT.
func (c *Client) GetRecoveryTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unhealthyUntil
}

// ResolveTarget разрешает цель канонического описания в сущность чата.
// Числовые цели: полный id канала, положительный id пользователя или id
// обычной группы; текстовые цели разрешаются через contacts.resolveUsername.
func (c *Client) ResolveTarget(ctx context.Context, ref domain.ChatReference) (*domain.ChatEntity, error) {
	if id, ok := ref.Numeric(); ok {
		return c.resolveByID(ctx, id)
	}
	return c.resolveByUsername(ctx, ref.Target)
}

func (c *Client) resolveByID(ctx context.Context, id int64) (*domain.ChatEntity, error) {
	switch {
	case id <= -1000000000000:
		// Полный id супергруппы/канала: -100XXXXXXXXXX.
		channelID := -id - 1000000000000
		var entity *domain.ChatEntity
		err := c.do(ctx, func(ctx context.Context) error {
			res, err := c.tgRunner.API().ChannelsGetChannels(ctx, []tg.InputChannelClass{
				&tg.InputChannel{ChannelID: channelID},
			})
			if err != nil {
				return err
			}
			entity = firstEntityFromChats(res)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, fmt.Errorf("%w: channel %d not found", domain.ErrRPC, channelID)
		}
		return entity, nil
	case id < 0:
		// Отрицательный короткий id — обычная группа.
		chatID := -id
		var entity *domain.ChatEntity
		err := c.do(ctx, func(ctx context.Context) error {
			res, err := c.tgRunner.API().MessagesGetChats(ctx, []int64{chatID})
			if err != nil {
				return err
			}
			entity = firstEntityFromChats(res)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, fmt.Errorf("%w: chat %d not found", domain.ErrRPC, chatID)
		}
		return entity, nil
	default:
		// Положительный id — пользователь.
		user, err := c.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return &domain.ChatEntity{
			ID:        user.UserID,
			Kind:      domain.EntityUser,
			Username:  user.Username,
			FirstName: user.FirstName,
		}, nil
	}
}

func (c *Client) resolveByUsername(ctx context.Context, target string) (*domain.ChatEntity, error) {
	username := strings.TrimPrefix(strings.TrimSpace(target), "@")
	var entity *domain.ChatEntity
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().ContactsResolveUsername(ctx, username)
		if err != nil {
			return err
		}
		if len(res.Chats) > 0 {
			entity = entityFromChatClass(res.Chats[0])
			return nil
		}
		if len(res.Users) > 0 {
			if u, ok := res.Users[0].(*tg.User); ok {
				entity = entityFromUser(u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: username %q resolved to nothing usable", domain.ErrRPC, username)
	}
	return entity, nil
}

// CheckInvite проверяет инвайт-токен, не присоединяясь к чату.
func (c *Client) CheckInvite(ctx context.Context, token string) (*domain.InviteCheck, error) {
	var check *domain.InviteCheck
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().MessagesCheckChatInvite(ctx, token)
		if err != nil {
			return err
		}
		switch invite := res.(type) {
		case *tg.ChatInviteAlready:
			check = &domain.InviteCheck{AlreadyParticipant: true, Entity: entityFromChatClass(invite.Chat)}
		case *tg.ChatInvitePeek:
			check = &domain.InviteCheck{AlreadyParticipant: false, Entity: entityFromChatClass(invite.Chat)}
		default:
			// Обычный ChatInvite: чат доступен для вступления, но мы в нем не состоим.
			check = &domain.InviteCheck{AlreadyParticipant: false}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

// IterParticipants последовательно обходит участников чата.
// Для каналов используется channels.getParticipants со страницами по 100;
// агрессивный режим дополнительно перебирает поисковые префиксы, чтобы
// выйти за серверный лимит выдачи. Для обычных групп сервер отдает весь
// список разом через messages.getFullChat, серверные фильтры к ним
// неприменимы и эмулируются на клиенте.
func (c *Client) IterParticipants(ctx context.Context, entity *domain.ChatEntity, filter ports.ParticipantFilter, aggressive bool, fn func(domain.Participant) error) error {
	if entity.Kind == domain.EntityChat {
		return c.iterChatParticipants(ctx, entity, filter, fn)
	}

	queries := []string{""}
	if aggressive && filter == ports.FilterNone {
		queries = aggressiveQueries
	}

	seen := make(map[int64]struct{})
	for _, q := range queries {
		if err := c.iterChannelPage(ctx, entity, filter, q, seen, fn); err != nil {
			return err
		}
	}
	return nil
}

// iterChannelPage постранично обходит один поисковый запрос к каналу.
func (c *Client) iterChannelPage(ctx context.Context, entity *domain.ChatEntity, filter ports.ParticipantFilter, query string, seen map[int64]struct{}, fn func(domain.Participant) error) error {
	var filterClass tg.ChannelParticipantsFilterClass
	switch filter {
	case ports.FilterBots:
		filterClass = &tg.ChannelParticipantsBots{}
	case ports.FilterRecent:
		filterClass = &tg.ChannelParticipantsRecent{}
	default:
		filterClass = &tg.ChannelParticipantsSearch{Q: query}
	}

	offset := 0
	for {
		var page *tg.ChannelsChannelParticipants
		err := c.do(ctx, func(ctx context.Context) error {
			res, err := c.tgRunner.API().ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
				Channel: &tg.InputChannel{ChannelID: entity.ID, AccessHash: entity.AccessHash},
				Filter:  filterClass,
				Offset:  offset,
				Limit:   pageSize,
			})
			if err != nil {
				return err
			}
			if p, ok := res.(*tg.ChannelsChannelParticipants); ok {
				page = p
			}
			return nil
		})
		if err != nil {
			return err
		}
		if page == nil || len(page.Participants) == 0 {
			return nil
		}

		users := indexUsers(page.Users)
		for _, raw := range page.Participants {
			p, ok := participantFromClass(raw, users)
			if !ok {
				continue
			}
			if _, dup := seen[p.UserID]; dup {
				continue
			}
			seen[p.UserID] = struct{}{}
			if err := fn(p); err != nil {
				return err
			}
		}

		offset += len(page.Participants)
		if offset >= page.Count {
			return nil
		}
	}
}

// iterChatParticipants обходит участников обычной (не супер-) группы.
func (c *Client) iterChatParticipants(ctx context.Context, entity *domain.ChatEntity, filter ports.ParticipantFilter, fn func(domain.Participant) error) error {
	var full *tg.MessagesChatFull
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().MessagesGetFullChat(ctx, entity.ID)
		if err != nil {
			return err
		}
		full = res
		return nil
	})
	if err != nil {
		return err
	}

	chatFull, ok := full.FullChat.(*tg.ChatFull)
	if !ok {
		return fmt.Errorf("%w: unexpected full chat type %T", domain.ErrRPC, full.FullChat)
	}
	participants, ok := chatFull.Participants.(*tg.ChatParticipants)
	if !ok {
		// ChatParticipantsForbidden: список скрыт.
		return fmt.Errorf("%w: participant list is hidden", domain.ErrPermissionDenied)
	}

	users := indexUsers(full.Users)
	for _, raw := range participants.Participants {
		p, ok := chatParticipantFromClass(raw, users)
		if !ok {
			continue
		}
		// В обычных группах нет серверного фильтра "недавние".
		if filter == ports.FilterRecent {
			continue
		}
		if filter == ports.FilterBots && !p.IsBot {
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// IterHistory обходит сообщения чата от новых к старым, не больше limit штук.
func (c *Client) IterHistory(ctx context.Context, entity *domain.ChatEntity, limit int, fn func(domain.HistoryMessage) error) error {
	peer := inputPeer(entity)
	offsetID := 0
	count := 0

	for count < limit {
		req := &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    min(pageSize, limit-count),
		}
		var msgs []tg.MessageClass
		err := c.do(ctx, func(ctx context.Context) error {
			res, err := c.tgRunner.API().MessagesGetHistory(ctx, req)
			if err != nil {
				return err
			}
			msgs = messagesFromHistory(res)
			return nil
		})
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}

		for _, raw := range msgs {
			offsetID = raw.GetID()
			msg, ok := raw.(*tg.Message)
			if !ok {
				continue
			}
			if err := fn(historyMessage(msg)); err != nil {
				return err
			}
			count++
			if count >= limit {
				return nil
			}
		}
	}
	return nil
}

// ReactionsPage загружает одну страницу списка реакций на сообщение.
func (c *Client) ReactionsPage(ctx context.Context, entity *domain.ChatEntity, messageID, limit int) ([]domain.Reaction, error) {
	var reactions []domain.Reaction
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().MessagesGetMessageReactionsList(ctx, &tg.MessagesGetMessageReactionsListRequest{
			Peer:  inputPeer(entity),
			ID:    messageID,
			Limit: limit,
		})
		if err != nil {
			return err
		}
		for _, r := range res.Reactions {
			peer, ok := r.PeerID.(*tg.PeerUser)
			if !ok {
				continue
			}
			reactions = append(reactions, domain.Reaction{
				UserID: peer.UserID,
				Emoji:  emojiFromReaction(r.Reaction),
				Date:   time.Unix(int64(r.Date), 0),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// GetUser загружает одного пользователя по id.
func (c *Client) GetUser(ctx context.Context, userID int64) (*domain.Participant, error) {
	var participant *domain.Participant
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUser{UserID: userID}})
		if err != nil {
			return err
		}
		if len(res) == 0 {
			return nil
		}
		if u, ok := res[0].(*tg.User); ok {
			participant = &domain.Participant{
				UserID:    u.ID,
				Username:  u.Username,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				IsBot:     u.Bot,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, fmt.Errorf("%w: user %d not found", domain.ErrRPC, userID)
	}
	return participant, nil
}

// do — основной метод выполнения запроса: проверяет состояние FLOOD_WAIT,
// выполняет операцию, классифицирует ошибку и сверяется с фоновым процессом.
func (c *Client) do(ctx context.Context, f func(ctx context.Context) error) error {
	if err := c.checkHealthStatus(); err != nil {
		c.log.WarnContext(ctx, "Client is unhealthy, aborting request", "error", err)
		return err
	}

	opErr := f(ctx)

	if opErr != nil {
		// Обрабатываем специфичные ошибки, такие как FLOOD_WAIT.
		c.handleError(opErr)

		// Также проверяем, не отвалился ли сам клиент.
		select {
		case runErr, ok := <-c.runErr:
			if ok && runErr != nil {
				return fmt.Errorf("telegram client is not running: %w (operation error: %v)", runErr, opErr)
			}
		default:
			// Клиент все еще работает, возвращаем ошибку операции.
		}

		return classifyAPIError(opErr)
	}

	return nil
}

// checkHealthStatus проверяет, не находится ли клиент в состоянии FLOOD_WAIT.
func (c *Client) checkHealthStatus() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.unhealthyUntil.IsZero() && c.clock().Before(c.unhealthyUntil) {
		return fmt.Errorf("%w: active until %v", ErrFloodWaitActive, c.unhealthyUntil)
	}

	return nil
}

// handleError обрабатывает ошибки, ищет FLOOD_WAIT и обновляет состояние клиента.
func (c *Client) handleError(err error) {
	if waitDuration, ok := parseFloodWait(err); ok {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.unhealthyUntil = c.clock().Add(waitDuration)
		c.log.Warn("Client got FLOOD_WAIT, set unhealthy", "wait_duration", waitDuration, "until", c.unhealthyUntil)
	}
}

// parseFloodWait извлекает длительность ожидания из ошибки.
func parseFloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	matches := floodWaitRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0, false
	}

	seconds, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}

	return time.Duration(seconds) * time.Second, true
}

// classifyAPIError переводит ошибку API в доменную таксономию:
// недостаток прав, гонка "уже участник" или общая протокольная ошибка.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	if tgerr.Is(err, "CHAT_ADMIN_REQUIRED") {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	if tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
		return fmt.Errorf("%w: %v", domain.ErrAlreadyParticipant, err)
	}
	if rpcErr, ok := tgerr.As(err); ok {
		return fmt.Errorf("%w: %v", domain.ErrRPC, rpcErr)
	}
	return err
}

// isCredentialsError распознает ошибки неверных учетных данных при входе.
func isCredentialsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "PHONE_CODE_INVALID") ||
		strings.Contains(msg, "PASSWORD_HASH_INVALID") ||
		strings.Contains(msg, "PHONE_NUMBER_INVALID")
}

// --- перевод типов схемы API в доменные типы ---

func indexUsers(users []tg.UserClass) map[int64]*tg.User {
	index := make(map[int64]*tg.User, len(users))
	for _, raw := range users {
		if u, ok := raw.(*tg.User); ok {
			index[u.ID] = u
		}
	}
	return index
}

// participantFromClass сопоставляет вариант участника канала с доменной ролью.
// Порядок веток повторяет приоритет статусов: создатель/админ, забаненный,
// вышедший, затем обычные варианты.
func participantFromClass(raw tg.ChannelParticipantClass, users map[int64]*tg.User) (domain.Participant, bool) {
	var (
		userID int64
		role   domain.ParticipantRole
		date   time.Time
	)

	switch p := raw.(type) {
	case *tg.ChannelParticipantCreator:
		userID, role = p.UserID, domain.RoleCreator
	case *tg.ChannelParticipantAdmin:
		userID, role, date = p.UserID, domain.RoleAdmin, time.Unix(int64(p.Date), 0)
	case *tg.ChannelParticipantBanned:
		role = domain.RoleBanned
		date = time.Unix(int64(p.Date), 0)
		if peer, ok := p.Peer.(*tg.PeerUser); ok {
			userID = peer.UserID
		}
	case *tg.ChannelParticipantLeft:
		role = domain.RoleLeft
		if peer, ok := p.Peer.(*tg.PeerUser); ok {
			userID = peer.UserID
		}
	case *tg.ChannelParticipantSelf:
		userID, role, date = p.UserID, domain.RoleSelf, time.Unix(int64(p.Date), 0)
	case *tg.ChannelParticipant:
		userID, role, date = p.UserID, domain.RolePlain, time.Unix(int64(p.Date), 0)
	default:
		return domain.Participant{}, false
	}

	if userID == 0 {
		return domain.Participant{}, false
	}

	participant := domain.Participant{UserID: userID, Role: role, JoinDate: date}
	if u, ok := users[userID]; ok {
		participant.Username = u.Username
		participant.FirstName = u.FirstName
		participant.LastName = u.LastName
		participant.IsBot = u.Bot
	}
	return participant, true
}

// chatParticipantFromClass — то же для участников обычной группы.
func chatParticipantFromClass(raw tg.ChatParticipantClass, users map[int64]*tg.User) (domain.Participant, bool) {
	var (
		userID int64
		role   domain.ParticipantRole
		date   time.Time
	)

	switch p := raw.(type) {
	case *tg.ChatParticipantCreator:
		userID, role = p.UserID, domain.RoleCreator
	case *tg.ChatParticipantAdmin:
		userID, role, date = p.UserID, domain.RoleAdmin, time.Unix(int64(p.Date), 0)
	case *tg.ChatParticipant:
		userID, role, date = p.UserID, domain.RolePlain, time.Unix(int64(p.Date), 0)
	default:
		return domain.Participant{}, false
	}

	participant := domain.Participant{UserID: userID, Role: role, JoinDate: date}
	if u, ok := users[userID]; ok {
		participant.Username = u.Username
		participant.FirstName = u.FirstName
		participant.LastName = u.LastName
		participant.IsBot = u.Bot
	}
	return participant, true
}

func entityFromChatClass(raw tg.ChatClass) *domain.ChatEntity {
	switch chat := raw.(type) {
	case *tg.Channel:
		return &domain.ChatEntity{
			ID:         chat.ID,
			AccessHash: chat.AccessHash,
			Kind:       domain.EntityChannel,
			Title:      chat.Title,
			Username:   chat.Username,
		}
	case *tg.Chat:
		return &domain.ChatEntity{
			ID:    chat.ID,
			Kind:  domain.EntityChat,
			Title: chat.Title,
		}
	default:
		return nil
	}
}

func entityFromUser(u *tg.User) *domain.ChatEntity {
	entity := &domain.ChatEntity{
		ID:        u.ID,
		Kind:      domain.EntityUser,
		Username:  u.Username,
		FirstName: u.FirstName,
	}
	if hash, ok := u.GetAccessHash(); ok {
		entity.AccessHash = hash
	}
	return entity
}

func firstEntityFromChats(raw tg.MessagesChatsClass) *domain.ChatEntity {
	var chats []tg.ChatClass
	switch res := raw.(type) {
	case *tg.MessagesChats:
		chats = res.Chats
	case *tg.MessagesChatsSlice:
		chats = res.Chats
	}
	if len(chats) == 0 {
		return nil
	}
	return entityFromChatClass(chats[0])
}

func inputPeer(entity *domain.ChatEntity) tg.InputPeerClass {
	switch entity.Kind {
	case domain.EntityChannel:
		return &tg.InputPeerChannel{ChannelID: entity.ID, AccessHash: entity.AccessHash}
	case domain.EntityChat:
		return &tg.InputPeerChat{ChatID: entity.ID}
	default:
		return &tg.InputPeerUser{UserID: entity.ID, AccessHash: entity.AccessHash}
	}
}

func messagesFromHistory(raw tg.MessagesMessagesClass) []tg.MessageClass {
	switch res := raw.(type) {
	case *tg.MessagesMessages:
		return res.Messages
	case *tg.MessagesMessagesSlice:
		return res.Messages
	case *tg.MessagesChannelMessages:
		return res.Messages
	default:
		return nil
	}
}

func historyMessage(msg *tg.Message) domain.HistoryMessage {
	hm := domain.HistoryMessage{
		ID:   msg.ID,
		Date: time.Unix(int64(msg.Date), 0),
	}
	if from, ok := msg.GetFromID(); ok {
		if peer, ok := from.(*tg.PeerUser); ok {
			hm.SenderID = peer.UserID
		}
	}
	if reactions, ok := msg.GetReactions(); ok && len(reactions.Results) > 0 {
		hm.HasReactions = true
	}
	return hm
}

func emojiFromReaction(raw tg.ReactionClass) string {
	switch r := raw.(type) {
	case *tg.ReactionEmoji:
		return r.Emoticon
	case *tg.ReactionCustomEmoji:
		return fmt.Sprintf("custom-emoji:%d", r.DocumentID)
	default:
		return ""
	}
}
