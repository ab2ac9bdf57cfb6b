// deploy.go — HTTP handler деплоя артефактов.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartrepo/internal/api/errors"
	"github.com/bigkaa/goartrepo/internal/api/middleware"
	"github.com/bigkaa/goartrepo/internal/domain/model"
	"github.com/bigkaa/goartrepo/internal/service"
)

// maxMultipartMemory — объём буфера в памяти при парсинге multipart.
// Части сверх буфера уходят во временные файлы.
const maxMultipartMemory = 32 << 20 // 32 MB

// DeployHandler — обработчик endpoint деплоя.
type DeployHandler struct {
	deploySvc *service.DeployService
}

// NewDeployHandler создаёт обработчик деплоя.
func NewDeployHandler(deploySvc *service.DeployService) *DeployHandler {
	return &DeployHandler{deploySvc: deploySvc}
}

// Deploy обрабатывает PUT /api/v1/repositories/{repositoryId}/artifacts.
//
// Multipart form:
//
//	groupId, artifactId, version — обязательные поля координаты;
//	classifier, type             — опциональные поля координаты;
//	file                         — основной файл артефакта (обязательно);
//	pom                          — POM-дескриптор (опционально);
//	generatePom                  — синтезировать минимальный POM,
//	                               если дескриптор не приложен.
func (h *DeployHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repositoryId")

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	coord := model.ArtifactCoordinate{
		GroupID:    r.FormValue("groupId"),
		ArtifactID: r.FormValue("artifactId"),
		Version:    r.FormValue("version"),
		Classifier: r.FormValue("classifier"),
		Type:       r.FormValue("type"),
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	params := service.DeployParams{
		RequestID:    middleware.RequestIDFromContext(r.Context()),
		RepositoryID: repoID,
		Coordinate:   coord,
		Artifact:     file,
	}

	// Приложенный POM имеет приоритет над синтезом
	if pom, _, pomErr := r.FormFile("pom"); pomErr == nil {
		defer pom.Close()
		params.Descriptor = pom
	} else if v := r.FormValue("generatePom"); v != "" {
		generate, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			errors.ValidationError(w, fmt.Sprintf("Некорректное значение generatePom: %q", v))
			return
		}
		params.GenerateDescriptor = generate
	}

	result, deployErr := h.deploySvc.Deploy(params)
	if deployErr != nil {
		errors.WriteError(w, deployErr.StatusCode, deployErr.Code, deployErr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
