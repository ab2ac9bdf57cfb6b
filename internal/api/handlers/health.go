// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/goartrepo/internal/config"
	"github.com/bigkaa/goartrepo/internal/domain/model"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// repos — управляемые репозитории (для проверки хранилищ)
	repos []model.ManagedRepository
	// metaDir — директория metadata-репозитория
	metaDir string
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(repos []model.ManagedRepository, metaDir string) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		repos:   repos,
		metaDir: metaDir,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": formatTime(time.Now()),
		"version":   h.version,
		"service":   "repository-core",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность на запись хранилищ всех репозиториев
// и директории metadata-репозитория.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	checks := make(map[string]any, len(h.repos)+1)
	for _, repo := range h.repos {
		check := checkWritable(repo.StorageRoot)
		checks["storage:"+repo.ID] = check
		if check["status"] != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	metaCheck := checkWritable(h.metaDir)
	checks["metadata"] = metaCheck
	if metaCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": formatTime(time.Now()),
		"version":   h.version,
		"service":   "repository-core",
		"checks":    checks,
	})
}

// checkWritable проверяет доступность директории на запись.
func checkWritable(dir string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
