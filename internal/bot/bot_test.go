package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-member-export/cmd/bot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// mockServerAPI — мок клиента бэкенда на функциональных полях.
type mockServerAPI struct {
	startExportFunc   func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error)
	getTaskStatusFunc func(ctx context.Context, taskID string) (*TaskStatusResponse, error)
	downloadFunc      func(ctx context.Context, taskID string) ([]byte, error)
}

func (m *mockServerAPI) StartExport(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
	if m.startExportFunc == nil {
		return nil, errors.New("StartExport не настроен")
	}
	return m.startExportFunc(ctx, req)
}

func (m *mockServerAPI) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
	if m.getTaskStatusFunc == nil {
		return nil, errors.New("GetTaskStatus не настроен")
	}
	return m.getTaskStatusFunc(ctx, taskID)
}

func (m *mockServerAPI) DownloadTaskFile(ctx context.Context, taskID string) ([]byte, error) {
	if m.downloadFunc == nil {
		return nil, errors.New("DownloadTaskFile не настроен")
	}
	return m.downloadFunc(ctx, taskID)
}

func newTestBot(api ServerAPI) (*Bot, *[]tgbotapi.Chattable) {
	sent := &[]tgbotapi.Chattable{}
	b := &Bot{
		cfg:          config.BotConfig{},
		serverClient: api,
		taskStore:    NewTaskStore(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		pollInterval: time.Hour, // Опрос не должен успеть сработать в тестах команд
	}
	b.sendMessageFunc = func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		*sent = append(*sent, c)
		return tgbotapi.Message{}, nil
	}
	return b, sent
}

func commandMessage(text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func sentTexts(sent []tgbotapi.Chattable) []string {
	var texts []string
	for _, c := range sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func TestBot_HandleCommand(t *testing.T) {
	t.Run("Команда start выводит справку", func(t *testing.T) {
		b, sent := newTestBot(&mockServerAPI{})

		b.handleMessage(context.Background(), commandMessage("/start"))

		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "/export")
	})

	t.Run("Export без аргументов выводит подсказку", func(t *testing.T) {
		called := false
		api := &mockServerAPI{
			startExportFunc: func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
				called = true
				return &StartTaskResponse{TaskID: "t"}, nil
			},
		}
		b, sent := newTestBot(api)

		b.handleMessage(context.Background(), commandMessage("/export"))

		assert.False(t, called)
		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Укажите чат")
	})

	t.Run("Export ставит задачу и сохраняет ее в хранилище", func(t *testing.T) {
		var gotReq ExportRequest
		api := &mockServerAPI{
			startExportFunc: func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
				gotReq = req
				return &StartTaskResponse{TaskID: "task-1"}, nil
			},
			getTaskStatusFunc: func(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
				return &TaskStatusResponse{TaskID: taskID, Status: "processing"}, nil
			},
		}
		b, sent := newTestBot(api)

		b.handleMessage(context.Background(), commandMessage("/export t.me/golang_chat"))

		assert.Equal(t, "t.me/golang_chat", gotReq.Chat)
		assert.Equal(t, "", gotReq.Mode)
		assert.Equal(t, "xlsx", gotReq.Format)

		taskID, ok := b.taskStore.Get(42)
		require.True(t, ok)
		assert.Equal(t, "task-1", taskID)

		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "очередь")
	})

	t.Run("Export с режимом admin", func(t *testing.T) {
		var gotReq ExportRequest
		api := &mockServerAPI{
			startExportFunc: func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
				gotReq = req
				return &StartTaskResponse{TaskID: "task-1"}, nil
			},
		}
		b, _ := newTestBot(api)

		b.handleMessage(context.Background(), commandMessage("/export @golang_chat admin"))

		assert.Equal(t, "@golang_chat", gotReq.Chat)
		assert.Equal(t, "admin", gotReq.Mode)
	})

	t.Run("Недопустимый режим отклоняется", func(t *testing.T) {
		called := false
		api := &mockServerAPI{
			startExportFunc: func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
				called = true
				return &StartTaskResponse{TaskID: "t"}, nil
			},
		}
		b, sent := newTestBot(api)

		b.handleMessage(context.Background(), commandMessage("/export @chat superadmin"))

		assert.False(t, called)
		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Неизвестный режим")
	})

	t.Run("Повторный запуск при активной задаче отклоняется", func(t *testing.T) {
		called := false
		api := &mockServerAPI{
			startExportFunc: func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
				called = true
				return &StartTaskResponse{TaskID: "t"}, nil
			},
		}
		b, sent := newTestBot(api)
		b.taskStore.Set(42, "existing-task")

		b.handleMessage(context.Background(), commandMessage("/export @chat"))

		assert.False(t, called)
		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "подождите")
	})

	t.Run("Обычный текст трактуется как ссылка на чат", func(t *testing.T) {
		var gotReq ExportRequest
		api := &mockServerAPI{
			startExportFunc: func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
				gotReq = req
				return &StartTaskResponse{TaskID: "task-1"}, nil
			},
		}
		b, _ := newTestBot(api)

		b.handleMessage(context.Background(), &tgbotapi.Message{
			Text: "https://t.me/golang_chat",
			Chat: &tgbotapi.Chat{ID: 42},
		})

		assert.Equal(t, "https://t.me/golang_chat", gotReq.Chat)
	})

	t.Run("Ошибка бэкенда сообщается пользователю", func(t *testing.T) {
		api := &mockServerAPI{
			startExportFunc: func(ctx context.Context, req ExportRequest) (*StartTaskResponse, error) {
				return nil, errors.New("backend down")
			},
		}
		b, sent := newTestBot(api)

		b.handleMessage(context.Background(), commandMessage("/export @chat"))

		_, ok := b.taskStore.Get(42)
		assert.False(t, ok)
		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Не удалось начать выгрузку")
	})
}

func TestBot_HandleStatus(t *testing.T) {
	t.Run("Без активной задачи", func(t *testing.T) {
		b, sent := newTestBot(&mockServerAPI{})

		b.handleMessage(context.Background(), commandMessage("/status"))

		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "нет активной задачи")
	})

	t.Run("Показывает последнюю строку прогресса", func(t *testing.T) {
		api := &mockServerAPI{
			getTaskStatusFunc: func(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
				return &TaskStatusResponse{
					TaskID:   taskID,
					Status:   "processing",
					Progress: []string{"Collecting participants...", "Participants collected: 120"},
				}, nil
			},
		}
		b, sent := newTestBot(api)
		b.taskStore.Set(42, "task-1")

		b.handleMessage(context.Background(), commandMessage("/status"))

		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "processing")
		assert.Contains(t, texts[0], "Participants collected: 120")
	})
}

func TestBot_PollTaskStatus(t *testing.T) {
	t.Run("Завершенная задача доставляется файлом", func(t *testing.T) {
		api := &mockServerAPI{
			getTaskStatusFunc: func(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
				return &TaskStatusResponse{
					TaskID: taskID,
					Status: "completed",
					Summary: &SummaryDTO{
						ChatTitle:    "Go Chat",
						TotalMembers: 120,
						BotCount:     3,
						RecentCount:  15,
						OutputPath:   "/var/exports/members_20260829_120000.xlsx",
					},
				}, nil
			},
			downloadFunc: func(ctx context.Context, taskID string) ([]byte, error) {
				return []byte("xlsx-bytes"), nil
			},
		}
		b, sent := newTestBot(api)
		b.pollInterval = 10 * time.Millisecond
		b.taskStore.Set(42, "task-1")

		b.pollTaskStatus(context.Background(), 42, "task-1")

		_, ok := b.taskStore.Get(42)
		assert.False(t, ok, "задача должна удаляться по завершении")

		require.Len(t, *sent, 1)
		doc, ok := (*sent)[0].(tgbotapi.DocumentConfig)
		require.True(t, ok, "ожидается отправка документа")

		fileBytes, ok := doc.File.(tgbotapi.FileBytes)
		require.True(t, ok)
		assert.Equal(t, "members_20260829_120000.xlsx", fileBytes.Name)
		assert.Equal(t, []byte("xlsx-bytes"), fileBytes.Bytes)

		assert.Contains(t, doc.Caption, "Go Chat")
		assert.Contains(t, doc.Caption, "Участников: 120")
		assert.Contains(t, doc.Caption, "Ботов: 3")
	})

	t.Run("Проваленная задача сообщает причину", func(t *testing.T) {
		api := &mockServerAPI{
			getTaskStatusFunc: func(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
				return &TaskStatusResponse{TaskID: taskID, Status: "failed", ErrorMessage: "chat not found"}, nil
			},
		}
		b, sent := newTestBot(api)
		b.pollInterval = 10 * time.Millisecond
		b.taskStore.Set(42, "task-1")

		b.pollTaskStatus(context.Background(), 42, "task-1")

		texts := sentTexts(*sent)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "chat not found")

		_, ok := b.taskStore.Get(42)
		assert.False(t, ok)
	})

	t.Run("Отмена контекста прекращает опрос", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		b, sent := newTestBot(&mockServerAPI{})
		b.taskStore.Set(42, "task-1")

		b.pollTaskStatus(ctx, 42, "task-1")

		assert.Empty(t, *sent)
	})
}

func TestSummaryCaption(t *testing.T) {
	assert.Equal(t, "Выгрузка завершена.", summaryCaption(nil))

	caption := summaryCaption(&SummaryDTO{ChatTitle: "Чат", TotalMembers: 5, BotCount: 1, RecentCount: 2})
	assert.Contains(t, caption, "Чат: Чат")
	assert.Contains(t, caption, "Участников: 5")
	assert.Contains(t, caption, "Недавних (30 дней): 2")
}
