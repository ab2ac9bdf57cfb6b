// Пакет config — загрузка и валидация конфигурации Repository Core
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartrepo/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Repository Core.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Управляемые репозитории
	Repositories []model.ManagedRepository
	// Путь к директории metadata-репозитория
	MetadataDir string
	// Интервал фонового сканирования (0 — отключено)
	ScanInterval time.Duration
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// RC_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("RC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("RC_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("RC_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// RC_REPOSITORIES — обязательный, описания управляемых репозиториев
	reposSpec, err := getEnvRequired("RC_REPOSITORIES")
	if err != nil {
		return nil, err
	}
	cfg.Repositories, err = parseRepositories(reposSpec)
	if err != nil {
		return nil, fmt.Errorf("RC_REPOSITORIES: %w", err)
	}

	// RC_METADATA_DIR — обязательный
	cfg.MetadataDir, err = getEnvRequired("RC_METADATA_DIR")
	if err != nil {
		return nil, err
	}

	// RC_SCAN_INTERVAL — интервал фонового сканирования (по умолчанию 6h, 0 — отключено)
	cfg.ScanInterval, err = getEnvDuration("RC_SCAN_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RC_SCAN_INTERVAL: %w", err)
	}
	if cfg.ScanInterval < 0 {
		return nil, fmt.Errorf("RC_SCAN_INTERVAL: значение не может быть отрицательным")
	}

	// RC_TLS_CERT / RC_TLS_KEY — опциональная пара
	cfg.TLSCert = getEnvDefault("RC_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("RC_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("RC_TLS_CERT и RC_TLS_KEY должны задаваться вместе")
	}

	// RC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RC_LOG_LEVEL: %w", err)
	}

	// RC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// RC_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 30s)
	cfg.ShutdownTimeout, err = getEnvDuration("RC_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// parseRepositories разбирает описания управляемых репозиториев.
//
// Формат: записи разделены ';', поля записи — ','. Первое поле —
// "id=путь", остальные — флаги: block (запрет повторных деплоев),
// no-releases, no-snapshots.
//
//	releases=/srv/repo/releases,block;snapshots=/srv/repo/snapshots,no-releases
func parseRepositories(spec string) ([]model.ManagedRepository, error) {
	entries := strings.Split(spec, ";")
	repos := make([]model.ManagedRepository, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		fields := strings.Split(entry, ",")
		id, root, ok := strings.Cut(strings.TrimSpace(fields[0]), "=")
		if !ok || id == "" || root == "" {
			return nil, fmt.Errorf("некорректная запись %q, ожидается id=путь", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("дублирующийся идентификатор репозитория %q", id)
		}
		seen[id] = true

		repo := model.ManagedRepository{
			ID:               id,
			StorageRoot:      root,
			ReleasesEnabled:  true,
			SnapshotsEnabled: true,
		}
		for _, flag := range fields[1:] {
			switch strings.TrimSpace(flag) {
			case "block":
				repo.BlockRedeployments = true
			case "no-releases":
				repo.ReleasesEnabled = false
			case "no-snapshots":
				repo.SnapshotsEnabled = false
			case "":
			default:
				return nil, fmt.Errorf("репозиторий %s: неизвестный флаг %q", id, strings.TrimSpace(flag))
			}
		}
		if !repo.ReleasesEnabled && !repo.SnapshotsEnabled {
			return nil, fmt.Errorf("репозиторий %s: запрещены и release-, и snapshot-версии", id)
		}

		repos = append(repos, repo)
	}

	if len(repos) == 0 {
		return nil, fmt.Errorf("не задан ни один репозиторий")
	}

	return repos, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
