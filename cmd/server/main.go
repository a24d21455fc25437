package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sevlyar/go-daemon"

	"telegram-member-export/internal/adapters/exporter"
	"telegram-member-export/internal/cache"
	"telegram-member-export/internal/core/services"
	"telegram-member-export/internal/log"
	"telegram-member-export/internal/pkg/config"
	"telegram-member-export/internal/ports"
	"telegram-member-export/internal/server"
	"telegram-member-export/internal/server/usecase"
	"telegram-member-export/internal/telegram/router"
)

func main() {
	daemonize := flag.Bool("daemon", false, "run the server as a background daemon")
	flag.Parse()

	if *daemonize {
		dctx := &daemon.Context{
			PidFileName: "member-export.pid",
			PidFilePerm: 0o644,
			LogFileName: "member-export.log",
			LogFilePerm: 0o640,
		}

		child, err := dctx.Reborn()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to daemonize: %v\n", err)
			os.Exit(1)
		}
		if child != nil {
			// Родительский процесс завершается, работу продолжает потомок.
			return
		}
		defer dctx.Release()
	}

	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка и валидация конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскировкой учетных данных
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := log.NewMaskedLogger(handler)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Инициализация и запуск фоновых сервисов
	appCtx, appCancel := context.WithCancel(context.Background())

	tgRouter, err := router.NewRouter(appCtx,
		router.WithServerConfigs(cfg.GetTelegramServers()),
		router.WithHealthCheckInterval(cfg.HealthCheckInterval()),
		router.WithLogger(logger.With(slog.String("component", "router"))),
	)
	if err != nil {
		appCancel()
		return fmt.Errorf("failed to create telegram router: %w", err)
	}

	// 5. Инициализация зависимостей пайплайна выгрузки
	resolutionCache := cache.NewResolutionCache()
	resolutionCache.StartCleanupTicker(appCtx, cfg.CleanupInterval())

	resolverSvc := services.NewResolverService(
		services.WithResolutionCache(resolutionCache, cfg.ResolutionTTL()),
		services.WithResolverLogger(logger.With(slog.String("component", "resolver"))),
	)
	previewResolver := services.NewPreviewResolver(tgRouter, resolverSvc, logger.With(slog.String("component", "preview")))
	participantSvc := services.NewParticipantService(
		services.WithParticipantLogger(logger.With(slog.String("component", "participants"))),
	)
	activitySvc := services.NewActivityService(
		services.WithActivityLogger(logger.With(slog.String("component", "activity"))),
	)

	writers := map[string]ports.RowWriter{
		"csv":  exporter.NewCSVWriter(),
		"xlsx": exporter.NewExcelWriter(),
	}
	exportUC := usecase.NewExportMembersUseCase(cfg, tgRouter, resolverSvc, participantSvc, activitySvc, writers, logger)

	taskStore := server.NewTaskStore()
	taskStore.StartCleanupTicker(appCtx, cfg.CleanupInterval())

	// 6. Создание HTTP-сервера
	srv, err := server.New(cfg, exportUC, previewResolver, taskStore, logger)
	if err != nil {
		appCancel()
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 7. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Signal received, shutting down...")

	// Сначала отменяем контекст приложения, чтобы остановить фоновые процессы (клиенты Telegram)
	appCancel()
	slog.Info("Application context canceled, waiting for background services to stop...")

	// Затем останавливаем HTTP-сервер
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	slog.Info("HTTP server stopped")

	// В конце останавливаем роутер (его health-check тикер)
	tgRouter.Stop()

	slog.Info("Application exited gracefully")
	return nil
}
