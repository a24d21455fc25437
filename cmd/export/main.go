package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"telegram-member-export/internal/adapters/exporter"
	"telegram-member-export/internal/cache"
	"telegram-member-export/internal/core/services"
	"telegram-member-export/internal/domain"
	"telegram-member-export/internal/log"
	"telegram-member-export/internal/pkg/config"
	"telegram-member-export/internal/ports"
	"telegram-member-export/internal/server/usecase"
	"telegram-member-export/internal/telegram/router"
)

// Одноразовая выгрузка участников чата из командной строки, без
// HTTP-сервера. Аккаунты Telegram берутся из той же конфигурации,
// что и у сервера.
func main() {
	var (
		mode         string
		historyLimit int
		format       string
		outPath      string
	)
	flag.StringVar(&mode, "mode", "", "Export mode: member or admin (config default when empty)")
	flag.IntVar(&historyLimit, "limit", 0, "History scan limit (config default when 0)")
	flag.StringVar(&format, "format", "console", "Output format: console, csv or xlsx")
	flag.StringVar(&outPath, "o", "", "Output file path (generated when empty)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: export [flags] <chat link | @username | id>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0), mode, historyLimit, format, outPath); err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
}

func run(chat, mode string, historyLimit int, format, outPath string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Лог уходит в stderr, чтобы не мешать консольному выводу результата.
	logger := log.NewMaskedLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tgRouter, err := router.NewRouter(ctx,
		router.WithServerConfigs(cfg.GetTelegramServers()),
		router.WithHealthCheckInterval(cfg.HealthCheckInterval()),
		router.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create telegram router: %w", err)
	}
	defer tgRouter.Stop()

	resolutionCache := cache.NewResolutionCache()
	resolverSvc := services.NewResolverService(
		services.WithResolutionCache(resolutionCache, cfg.ResolutionTTL()),
		services.WithResolverLogger(logger),
	)
	participantSvc := services.NewParticipantService(services.WithParticipantLogger(logger))
	activitySvc := services.NewActivityService(services.WithActivityLogger(logger))

	writers := map[string]ports.RowWriter{
		"console": exporter.NewConsoleWriter(),
		"csv":     exporter.NewCSVWriter(),
		"xlsx":    exporter.NewExcelWriter(),
	}
	exportUC := usecase.NewExportMembersUseCase(cfg, tgRouter, resolverSvc, participantSvc, activitySvc, writers, logger)

	// Консольный вывод не пишет файл, путь носит чисто информативный характер.
	if format == "console" && outPath == "" {
		outPath = "-"
	}

	summary, err := exportUC.Run(ctx, usecase.Options{
		Input:        chat,
		Mode:         domain.ExportMode(mode),
		HistoryLimit: historyLimit,
		OutputPath:   outPath,
		Format:       format,
		Progress: func(e domain.ProgressEvent) {
			fmt.Fprintln(os.Stderr, e.String())
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Чат: %s, участников: %d (ботов: %d, недавних: %d)\n",
		summary.ChatTitle, summary.TotalMembers, summary.BotCount, summary.RecentCount)
	return nil
}
