// Точка входа Repository Core — ядра хранения и индексирования артефактов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartrepo/internal/api/handlers"
	"github.com/bigkaa/goartrepo/internal/config"
	"github.com/bigkaa/goartrepo/internal/metarepo"
	"github.com/bigkaa/goartrepo/internal/server"
	"github.com/bigkaa/goartrepo/internal/service"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Repository Core запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Int("repositories", len(cfg.Repositories)),
	)

	// --- Инициализация компонентов ---

	// 1. Metadata-репозиторий с фабриками facet'ов
	meta, err := metarepo.New(cfg.MetadataDir, map[string]metarepo.FacetFactory{
		service.FacetIDRepositoryStatistics: service.NewStatisticsFacetFactory(),
	}, logger)
	if err != nil {
		logger.Error("Ошибка инициализации metadata-репозитория", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Сервисы
	deploySvc, err := service.NewDeployService(cfg.Repositories, meta, logger)
	if err != nil {
		logger.Error("Ошибка инициализации движка деплоя", slog.String("error", err.Error()))
		os.Exit(1)
	}

	statsSvc := service.NewStatsService(meta, logger)

	scanSvc, err := service.NewScanService(cfg.Repositories, meta, statsSvc, cfg.ScanInterval, logger)
	if err != nil {
		logger.Error("Ошибка инициализации сервиса сканирования", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Фоновое сканирование
	ctx := context.Background()
	scanSvc.Start(ctx)

	// 4. Handlers
	h := server.Handlers{
		Deploy: handlers.NewDeployHandler(deploySvc),
		Stats:  handlers.NewStatsHandler(scanSvc, statsSvc, cfg.Repositories),
		Health: handlers.NewHealthHandler(cfg.Repositories, cfg.MetadataDir),
		System: handlers.NewSystemHandler(cfg.Repositories),
	}

	// 5. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")
	scanSvc.Stop()

	logger.Info("Repository Core остановлен")
}
