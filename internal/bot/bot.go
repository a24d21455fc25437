package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"telegram-member-export/cmd/bot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	startCommand  = "start"
	exportCommand = "export"
	statusCommand = "status"
)

// ServerAPI — интерфейс клиента бэкенд-сервера.
type ServerAPI interface {
	StartExport(ctx context.Context, req ExportRequest) (*StartTaskResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error)
	DownloadTaskFile(ctx context.Context, taskID string) ([]byte, error)
}

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	serverClient ServerAPI
	taskStore    *TaskStore
	logger       *slog.Logger

	// Подменяются в тестах.
	sendMessageFunc func(c tgbotapi.Chattable) (tgbotapi.Message, error)
	pollInterval    time.Duration
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, serverClient ServerAPI, taskStore *TaskStore, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	b := &Bot{
		api:          api,
		cfg:          cfg,
		serverClient: serverClient,
		taskStore:    taskStore,
		logger:       logger,
	}
	b.sendMessageFunc = api.Send
	b.pollInterval = time.Duration(cfg.PollingIntervalSeconds) * time.Second
	return b, nil
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Любой другой текст считаем ссылкой на чат.
	if text := strings.TrimSpace(msg.Text); text != "" {
		b.startExport(ctx, msg.Chat.ID, text, "")
		return
	}

	b.reply(msg.Chat.ID, "Отправьте /export <чат> или просто ссылку на чат.")
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case startCommand:
		replyText := "Добро пожаловать! Я бот для выгрузки участников чатов Telegram.\n\n" +
			"Команды:\n" +
			"• /export <чат> — выгрузить участников (ссылка t.me, @username или ID).\n" +
			"• /export <чат> admin — расширенная выгрузка с датами вступления (нужны права администратора).\n" +
			"• /status — прогресс текущей задачи.\n\n" +
			"Результат придет файлом Excel."
		b.reply(msg.Chat.ID, replyText)
	case exportCommand:
		args := strings.Fields(msg.CommandArguments())
		if len(args) == 0 {
			b.reply(msg.Chat.ID, "Укажите чат: /export <ссылка | @username | ID> [admin]")
			return
		}
		mode := ""
		if len(args) > 1 {
			mode = args[1]
			if mode != "admin" && mode != "member" {
				b.reply(msg.Chat.ID, "Неизвестный режим. Допустимы: admin, member.")
				return
			}
		}
		b.startExport(ctx, msg.Chat.ID, args[0], mode)
	case statusCommand:
		b.handleStatus(ctx, msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, "Я не знаю такой команды.")
	}
}

// startExport ставит задачу выгрузки на бэкенд и запускает опрос статуса.
func (b *Bot) startExport(ctx context.Context, chatID int64, chat, mode string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	// Одна активная задача на чат.
	if _, ok := b.taskStore.Get(chatID); ok {
		logger.Warn("user tried to start a new task while another is active")
		b.reply(chatID, "Пожалуйста, подождите завершения предыдущей задачи, прежде чем начинать новую.")
		return
	}

	startResp, err := b.serverClient.StartExport(ctx, ExportRequest{
		Chat:   chat,
		Mode:   mode,
		Format: "xlsx",
	})
	if err != nil {
		logger.Error("failed to start export on backend", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось начать выгрузку на сервере. Проверьте ссылку на чат и попробуйте позже.")
		return
	}

	taskID := startResp.TaskID
	logger = logger.With(slog.String("task_id", taskID))
	logger.Info("export task started on backend")

	b.taskStore.Set(chatID, taskID)
	go b.pollTaskStatus(context.Background(), chatID, taskID) // Фоновая задача живет дольше обновления

	b.reply(chatID, "✅ Задача поставлена в очередь. Ожидайте результата.")
}

// handleStatus сообщает прогресс текущей задачи пользователя.
func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	taskID, ok := b.taskStore.Get(chatID)
	if !ok {
		b.reply(chatID, "Сейчас нет активной задачи. Запустите выгрузку командой /export.")
		return
	}

	status, err := b.serverClient.GetTaskStatus(ctx, taskID)
	if err != nil {
		b.logger.Error("failed to get task status", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось получить статус задачи. Попробуйте позже.")
		return
	}

	if len(status.Progress) == 0 {
		b.reply(chatID, fmt.Sprintf("Статус задачи: %s.", status.Status))
		return
	}
	b.reply(chatID, fmt.Sprintf("Статус задачи: %s.\n%s", status.Status, status.Progress[len(status.Progress)-1]))
}

func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.sendMessageFunc(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}

// pollTaskStatus асинхронно опрашивает статус задачи на бэкенд-сервере.
func (b *Bot) pollTaskStatus(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))
	defer b.taskStore.Delete(chatID) // Гарантированно удаляем задачу по завершении.

	interval := b.pollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			return
		case <-ticker.C:
			logger.Debug("polling task status")
			status, err := b.serverClient.GetTaskStatus(ctx, taskID)
			if err != nil {
				logger.Error("failed to get task status", slog.String("error", err.Error()))
				continue
			}

			switch status.Status {
			case "completed":
				logger.Info("task completed")
				b.processCompletedTask(ctx, chatID, taskID, status)
				return
			case "failed":
				logger.Warn("task failed", slog.String("reason", status.ErrorMessage))
				b.reply(chatID, fmt.Sprintf("Произошла ошибка при выгрузке: %s", status.ErrorMessage))
				return
			case "pending", "processing":
				logger.Debug("task is in progress", slog.String("status", status.Status))
			default:
				logger.Warn("unknown task status", slog.String("status", status.Status))
			}
		}
	}
}

// processCompletedTask скачивает файл результата и отправляет его пользователю.
func (b *Bot) processCompletedTask(ctx context.Context, chatID int64, taskID string, status *TaskStatusResponse) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))

	data, err := b.serverClient.DownloadTaskFile(ctx, taskID)
	if err != nil {
		logger.Error("failed to download result file", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось получить файл результата. Пожалуйста, попробуйте позже.")
		return
	}

	fileName := fmt.Sprintf("members_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	if status.Summary != nil && status.Summary.OutputPath != "" {
		fileName = filepath.Base(status.Summary.OutputPath)
	}

	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fileName,
		Bytes: data,
	})
	msg.Caption = summaryCaption(status.Summary)
	b.sendMessage(msg)

	logger.Info("result file sent", slog.String("file_name", fileName), slog.Int("size_bytes", len(data)))
}

// summaryCaption форматирует подпись к файлу результата.
func summaryCaption(summary *SummaryDTO) string {
	if summary == nil {
		return "Выгрузка завершена."
	}

	var sb strings.Builder
	sb.WriteString("Выгрузка завершена.")
	if summary.ChatTitle != "" {
		sb.WriteString(fmt.Sprintf("\nЧат: %s", summary.ChatTitle))
	}
	sb.WriteString(fmt.Sprintf("\nУчастников: %d", summary.TotalMembers))
	sb.WriteString(fmt.Sprintf("\nБотов: %d", summary.BotCount))
	sb.WriteString(fmt.Sprintf("\nНедавних (30 дней): %d", summary.RecentCount))
	return sb.String()
}
