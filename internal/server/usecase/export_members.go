package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"telegram-member-export/internal/core/services"
	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/pkg/config"
	"telegram-member-export/internal/ports"
)

// ParticipantCollector собирает участников чата и предварительные счетчики.
type ParticipantCollector interface {
	CollectCensus(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, sink ports.ProgressSink) (*services.Census, error)
	Collect(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, mode domain.ExportMode, historyLimit int, census *services.Census, sink ports.ProgressSink) ([]domain.Participant, error)
}

// ActivityCorrelator сопоставляет участникам сигналы активности из истории.
type ActivityCorrelator interface {
	Correlate(ctx context.Context, client ports.DirectoryClient, entity *domain.ChatEntity, userIDs map[int64]struct{}, historyLimit int, sink ports.ProgressSink) (map[int64]*domain.ActivitySignal, error)
}

// Options — параметры одной выгрузки. Незаданные поля берутся из конфигурации.
type Options struct {
	// Input — пользовательский ввод: username, ссылка, инвайт или числовой id.
	Input string
	// Mode — режим выгрузки; пустое значение берется из конфигурации.
	Mode domain.ExportMode
	// HistoryLimit — лимит скана истории; 0 берется из конфигурации.
	HistoryLimit int
	// OutputPath — путь к файлу результата; пустой путь генерируется.
	OutputPath string
	// Format — формат файла (csv или xlsx); пустое значение берется из конфигурации.
	Format string
	// Progress — сток событий прогресса; может быть nil.
	Progress ports.ProgressSink
}

// ExportMembersUseCase инкапсулирует полный пайплайн выгрузки участников:
// разрешение чата, сбор участников, скан активности и запись файла.
type ExportMembersUseCase struct {
	cfg          *config.Config
	router       ports.SessionRouter
	resolver     ports.Resolver
	participants ParticipantCollector
	activity     ActivityCorrelator
	writers      map[string]ports.RowWriter
	log          *slog.Logger
}

// NewExportMembersUseCase создает новый экземпляр ExportMembersUseCase.
// writers сопоставляет формат файла с его писателем.
func NewExportMembersUseCase(
	cfg *config.Config,
	router ports.SessionRouter,
	resolver ports.Resolver,
	participants ParticipantCollector,
	activity ActivityCorrelator,
	writers map[string]ports.RowWriter,
	log *slog.Logger,
) *ExportMembersUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ExportMembersUseCase{
		cfg:          cfg,
		router:       router,
		resolver:     resolver,
		participants: participants,
		activity:     activity,
		writers:      writers,
		log:          log,
	}
}

// Run выполняет одну выгрузку от начала до конца. Сессия арендуется
// эксклюзивно на все время выгрузки и освобождается на любом пути выхода.
// Файл результата пишется один раз, только после сборки полного набора строк.
func (uc *ExportMembersUseCase) Run(ctx context.Context, opts Options) (*domain.ExportSummary, error) {
	opts = uc.withDefaults(opts)

	writer, ok := uc.writers[opts.Format]
	if !ok {
		return nil, fmt.Errorf("неподдерживаемый формат выгрузки: %s", opts.Format)
	}

	ref, err := domain.Normalize(opts.Input)
	if err != nil {
		return nil, err
	}

	lease, err := uc.router.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить сессию Telegram: %w", err)
	}
	defer lease.Release()
	client := lease.Client()

	entity, err := uc.resolver.Resolve(ctx, client, ref)
	if err != nil {
		return nil, fmt.Errorf("не удалось разрешить чат %q: %w", ref.Raw, err)
	}

	title := entity.DisplayTitle(ref.Raw)
	uc.log.InfoContext(ctx, "Chat resolved", "title", title, "chat_id", entity.ID, "mode", opts.Mode)
	opts.Progress.Emit(domain.ProgressEvent{Kind: domain.ProgressResolved, Message: title})

	census, err := uc.participants.CollectCensus(ctx, client, entity, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("не удалось собрать предварительные счетчики: %w", err)
	}

	members, err := uc.participants.Collect(ctx, client, entity, opts.Mode, opts.HistoryLimit, census, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("не удалось собрать участников: %w", err)
	}

	userIDs := make(map[int64]struct{}, len(members))
	for _, m := range members {
		userIDs[m.UserID] = struct{}{}
	}

	signals, err := uc.activity.Correlate(ctx, client, entity, userIDs, opts.HistoryLimit, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("не удалось сопоставить активность: %w", err)
	}

	rows := buildRows(members, signals, opts.Mode)

	outputPath, err := uc.ensureOutputPath(opts)
	if err != nil {
		return nil, err
	}

	if err := writer.Export(outputPath, rows, opts.Mode == domain.ModeAdmin); err != nil {
		return nil, fmt.Errorf("не удалось записать файл выгрузки: %w", err)
	}
	opts.Progress.Emit(domain.ProgressEvent{Kind: domain.ProgressSaved, Message: outputPath})

	summary := &domain.ExportSummary{
		TotalMembers: len(rows),
		BotCount:     census.BotCount,
		RecentCount:  len(census.RecentIDs),
		OutputPath:   outputPath,
		ChatTitle:    title,
	}
	uc.log.InfoContext(ctx, "Export finished",
		"title", title,
		"members", summary.TotalMembers,
		"bots", summary.BotCount,
		"recent", summary.RecentCount,
		"path", outputPath,
	)
	return summary, nil
}

// withDefaults заполняет незаданные параметры значениями из конфигурации.
func (uc *ExportMembersUseCase) withDefaults(opts Options) Options {
	if opts.Mode == "" {
		opts.Mode = uc.cfg.ExportMode()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = uc.cfg.HistoryLimit()
	}
	if opts.Format == "" {
		opts.Format = uc.cfg.Export.Format
	}
	return opts
}

// ensureOutputPath возвращает путь к файлу результата, создавая каталог при необходимости.
func (uc *ExportMembersUseCase) ensureOutputPath(opts Options) (string, error) {
	path := opts.OutputPath
	if path == "" {
		name := fmt.Sprintf("members_%s.%s", time.Now().UTC().Format("20060102_150405"), opts.Format)
		path = filepath.Join(uc.cfg.Export.OutputDir, name)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("не удалось создать каталог выгрузки %s: %w", dir, err)
		}
	}
	return path, nil
}

// buildRows собирает финальный набор строк: ровно одна строка на участника,
// в порядке обхода основного потока.
func buildRows(members []domain.Participant, signals map[int64]*domain.ActivitySignal, mode domain.ExportMode) []domain.ExportRow {
	rows := make([]domain.ExportRow, 0, len(members))
	for _, m := range members {
		row := domain.ExportRow{
			UserID:   m.UserID,
			Username: m.DisplayName(),
			IsBot:    m.IsBot,
			IsRecent: m.IsRecent,
		}
		if sig, ok := signals[m.UserID]; ok && sig != nil {
			row.LastPost = sig.LastPost
			row.LastReaction = sig.LastReaction
		}
		if mode == domain.ModeAdmin {
			row.JoinDate = m.JoinDate
			row.Status = m.Role.Status()
		}
		rows = append(rows, row)
	}
	return rows
}
