// system.go — системный endpoint с информацией об инстансе.
package handlers

import (
	"net/http"

	"github.com/bigkaa/goartrepo/internal/config"
	"github.com/bigkaa/goartrepo/internal/domain/model"
)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	repos []model.ManagedRepository
}

// NewSystemHandler создаёт обработчик системных endpoints.
func NewSystemHandler(repos []model.ManagedRepository) *SystemHandler {
	return &SystemHandler{repos: repos}
}

// repositoryInfo — описание управляемого репозитория в ответе info.
type repositoryInfo struct {
	ID                 string `json:"id"`
	BlockRedeployments bool   `json:"block_redeployments"`
	ReleasesEnabled    bool   `json:"releases_enabled"`
	SnapshotsEnabled   bool   `json:"snapshots_enabled"`
}

// GetInfo обрабатывает GET /api/v1/info.
// Возвращает версию сервиса и список сконфигурированных репозиториев.
// Пути хранилищ наружу не отдаются.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	items := make([]repositoryInfo, 0, len(h.repos))
	for _, repo := range h.repos {
		items = append(items, repositoryInfo{
			ID:                 repo.ID,
			BlockRedeployments: repo.BlockRedeployments,
			ReleasesEnabled:    repo.ReleasesEnabled,
			SnapshotsEnabled:   repo.SnapshotsEnabled,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "repository-core",
		"version":      config.Version,
		"repositories": items,
	})
}
