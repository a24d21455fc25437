package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/pkg/config"
	"telegram-member-export/internal/server/usecase"
)

// taskTTL задает срок хранения записи о задаче.
const taskTTL = 24 * time.Hour

// ExportRunner определяет интерфейс для варианта использования, который выполняет выгрузку.
type ExportRunner interface {
	Run(ctx context.Context, opts usecase.Options) (*domain.ExportSummary, error)
}

// Previewer выполняет фоновое разрешение чата для превью.
type Previewer interface {
	Preview(ctx context.Context, input string, deliver func(*domain.ChatEntity, error))
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	runner     ExportRunner
	previewer  Previewer
	log        *slog.Logger
}

// exportRequest - тело запроса на новую выгрузку
type exportRequest struct {
	Chat         string `json:"chat"`
	Mode         string `json:"mode,omitempty"`
	HistoryLimit int    `json:"history_limit,omitempty"`
	Format       string `json:"format,omitempty"`
}

// New создает новый экземпляр Server
func New(cfg *config.Config, runner ExportRunner, previewer Previewer, taskStore *TaskStore, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		taskStore: taskStore,
		runner:    runner,
		previewer: previewer,
		log:       log,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Post("/exports", s.handleStartExport)
		r.Get("/exports/{taskID}", s.handleTaskStatus)
		r.Get("/exports/{taskID}/file", s.handleTaskFile)
		r.Get("/preview", s.handlePreview)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// handleStartExport запускает новую задачу выгрузки.
func (s *Server) handleStartExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
		return
	}

	if req.Chat == "" {
		http.Error(w, "Требуется идентификатор чата", http.StatusBadRequest)
		return
	}
	if req.Mode != "" && !domain.ExportMode(req.Mode).Valid() {
		http.Error(w, "Недопустимый режим выгрузки", http.StatusBadRequest)
		return
	}

	// Быстрая проверка ввода до постановки задачи.
	if _, err := domain.Normalize(req.Chat); err != nil {
		http.Error(w, "Не удалось разобрать идентификатор чата", http.StatusBadRequest)
		return
	}

	taskID := uuid.NewString()
	s.taskStore.CreateTask(taskID, taskTTL)

	// Запуск выгрузки в горутине
	go s.runExport(taskID, req)

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// runExport выполняет выгрузку в фоне и ведет журнал прогресса задачи.
func (s *Server) runExport(taskID string, req exportRequest) {
	s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

	// Контекст задачи с таймаутом из конфигурации.
	taskCtx := context.Background()
	if s.cfg.Processing.TaskTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, time.Duration(s.cfg.Processing.TaskTimeoutSeconds)*time.Second)
		defer cancel()
	}

	opts := usecase.Options{
		Input:        req.Chat,
		Mode:         domain.ExportMode(req.Mode),
		HistoryLimit: req.HistoryLimit,
		Format:       req.Format,
		Progress: func(e domain.ProgressEvent) {
			s.taskStore.AppendProgress(taskID, e.String())
		},
	}

	summary, err := s.runner.Run(taskCtx, opts)
	if err != nil {
		s.log.Error("Export task failed", "task_id", taskID, "error", err)
		s.taskStore.UpdateTaskError(taskID, err.Error())
		return
	}

	s.taskStore.UpdateTaskResult(taskID, summary)
}

// handleTaskStatus возвращает статус задачи вместе с журналом прогресса.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"task_id":       task.ID,
		"status":        task.Status,
		"progress":      task.Progress,
		"error_message": task.ErrorMessage,
	}
	if task.Summary != nil {
		response["summary"] = map[string]interface{}{
			"chat_title":    task.Summary.ChatTitle,
			"total_members": task.Summary.TotalMembers,
			"bot_count":     task.Summary.BotCount,
			"recent_count":  task.Summary.RecentCount,
			"output_path":   task.Summary.OutputPath,
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// handleTaskFile отдает файл результата завершенной задачи.
func (s *Server) handleTaskFile(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}
	if task.Status != TaskStatusCompleted || task.Summary == nil {
		http.Error(w, "Задача не завершена", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(task.Summary.OutputPath); err != nil {
		http.Error(w, "Файл результата недоступен", http.StatusGone)
		return
	}

	http.ServeFile(w, r, task.Summary.OutputPath)
}

// handlePreview синхронно разрешает ввод для превью в UI.
// Более свежий запрос вытесняет висящие: вытесненный запрос получает 409.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("input")
	if input == "" {
		http.Error(w, "Требуется параметр input", http.StatusBadRequest)
		return
	}

	type previewResult struct {
		entity *domain.ChatEntity
		err    error
	}
	resultCh := make(chan previewResult, 1)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	s.previewer.Preview(ctx, input, func(entity *domain.ChatEntity, err error) {
		resultCh <- previewResult{entity: entity, err: err}
	})

	select {
	case res := <-resultCh:
		if res.err != nil {
			status := http.StatusBadGateway
			switch {
			case errors.Is(res.err, domain.ErrInvalidReference):
				status = http.StatusBadRequest
			case errors.Is(res.err, domain.ErrUnresolvedInvite):
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, res.err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"chat_id": res.entity.ID,
			"kind":    res.entity.Kind,
			"title":   res.entity.DisplayTitle(input),
		})
	case <-ctx.Done():
		// Запрос вытеснен более свежим вводом или истек таймаут.
		http.Error(w, "Запрос превью вытеснен", http.StatusConflict)
	}
}

// writeJSON пишет JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.HTTPServer.Shutdown(ctx)
}
