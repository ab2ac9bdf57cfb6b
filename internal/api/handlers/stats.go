// stats.go — HTTP handlers сканирования и статистики репозитория.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartrepo/internal/api/errors"
	"github.com/bigkaa/goartrepo/internal/domain/model"
	"github.com/bigkaa/goartrepo/internal/service"
)

// StatsHandler — обработчик endpoints сканирования и статистики.
type StatsHandler struct {
	scanSvc  *service.ScanService
	statsSvc *service.StatsService
	repoIDs  map[string]bool
}

// NewStatsHandler создаёт обработчик статистики.
func NewStatsHandler(scanSvc *service.ScanService, statsSvc *service.StatsService, repos []model.ManagedRepository) *StatsHandler {
	ids := make(map[string]bool, len(repos))
	for _, repo := range repos {
		ids[repo.ID] = true
	}
	return &StatsHandler{scanSvc: scanSvc, statsSvc: statsSvc, repoIDs: ids}
}

// Scan обрабатывает POST /api/v1/repositories/{repositoryId}/scan.
// Запускает синхронное сканирование и возвращает записанный снапшот.
func (h *StatsHandler) Scan(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repositoryId")

	stats, scanErr := h.scanSvc.Scan(repoID)
	if scanErr != nil {
		errors.WriteError(w, scanErr.StatusCode, scanErr.Code, scanErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// LastStatistics обрабатывает GET /api/v1/repositories/{repositoryId}/stats/last.
func (h *StatsHandler) LastStatistics(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repositoryId")
	if !h.repoIDs[repoID] {
		errors.RepositoryNotFound(w, fmt.Sprintf("Репозиторий %q не сконфигурирован", repoID))
		return
	}

	stats, err := h.statsSvc.LastStatistics(repoID)
	if err != nil {
		errors.InternalError(w, "Ошибка чтения статистики")
		return
	}
	if stats == nil {
		errors.NotFound(w, fmt.Sprintf("Для репозитория %s ещё нет снапшотов статистики", repoID))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// StatisticsInRange обрабатывает GET /api/v1/repositories/{repositoryId}/stats.
// Опциональные query-параметры from и to (RFC 3339) задают включающие
// границы по времени окончания сканирования. Результат — от новых к старым.
func (h *StatsHandler) StatisticsInRange(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repositoryId")
	if !h.repoIDs[repoID] {
		errors.RepositoryNotFound(w, fmt.Sprintf("Репозиторий %q не сконфигурирован", repoID))
		return
	}

	var from, to *time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errors.ValidationError(w, fmt.Sprintf("Некорректный параметр from: %q", v))
			return
		}
		from = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errors.ValidationError(w, fmt.Sprintf("Некорректный параметр to: %q", v))
			return
		}
		to = &t
	}

	items, err := h.statsSvc.StatisticsInRange(repoID, from, to)
	if err != nil {
		errors.InternalError(w, "Ошибка чтения статистики")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// DeleteStatistics обрабатывает DELETE /api/v1/repositories/{repositoryId}/stats.
// Удаляет все снапшоты статистики репозитория.
func (h *StatsHandler) DeleteStatistics(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repositoryId")
	if !h.repoIDs[repoID] {
		errors.RepositoryNotFound(w, fmt.Sprintf("Репозиторий %q не сконфигурирован", repoID))
		return
	}

	if err := h.statsSvc.DeleteStatistics(repoID); err != nil {
		errors.InternalError(w, "Ошибка удаления статистики")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
