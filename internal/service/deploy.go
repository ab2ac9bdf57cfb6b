// Пакет service — бизнес-логика Repository Core.
// deploy.go — движок деплоя артефактов: разрешение координаты,
// политика повторных деплоев, запись файлов, контрольные суммы,
// дескриптор группы и регистрация в metadata-репозитории.
package service

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/goartrepo/internal/api/errors"
	"github.com/bigkaa/goartrepo/internal/api/middleware"
	"github.com/bigkaa/goartrepo/internal/checksum"
	"github.com/bigkaa/goartrepo/internal/domain/model"
	"github.com/bigkaa/goartrepo/internal/domain/state"
	"github.com/bigkaa/goartrepo/internal/layout"
	"github.com/bigkaa/goartrepo/internal/metadata"
	"github.com/bigkaa/goartrepo/internal/metarepo"
	"github.com/bigkaa/goartrepo/internal/storage/filestore"
)

// DeployParams — параметры одного запроса деплоя.
type DeployParams struct {
	// RequestID — идентификатор запроса, присвоенный HTTP-слоем
	// (middleware.RequestLogger). Пустое значение — идентификатор
	// генерируется сервисом.
	RequestID string
	// RepositoryID — идентификатор целевого репозитория
	RepositoryID string
	// Coordinate — координата деплоя
	Coordinate model.ArtifactCoordinate
	// Artifact — поток данных основного артефакта
	Artifact io.Reader
	// Descriptor — поток данных POM-дескриптора (nil, если не предоставлен)
	Descriptor io.Reader
	// GenerateDescriptor — синтезировать минимальный POM,
	// если Descriptor не предоставлен
	GenerateDescriptor bool
}

// StoredArtifactSet — набор файлов, записанных одним деплоем.
// Пути относительны корня хранилища репозитория.
type StoredArtifactSet struct {
	// Primary — основной файл артефакта
	Primary string `json:"primary"`
	// Descriptor — POM-дескриптор (пусто, если не писался)
	Descriptor string `json:"descriptor,omitempty"`
	// GroupMetadata — дескриптор метаданных уровня группы
	GroupMetadata string `json:"group_metadata"`
	// Checksums — sidecar-файлы контрольных сумм всех записанных файлов
	Checksums []string `json:"checksums"`
}

// DeployResult — результат успешного деплоя.
type DeployResult struct {
	// ID — идентификатор запроса деплоя
	ID string `json:"id"`
	// Coordinate — нормализованная координата
	Coordinate model.ArtifactCoordinate `json:"coordinate"`
	// DeployedVersion — версия в имени файла: литеральная для release,
	// развёрнутая timestamp-версия для snapshot
	DeployedVersion string `json:"deployed_version"`
	// Files — набор записанных файлов
	Files StoredArtifactSet `json:"files"`
	// State — история состояний запроса
	State []state.TransitionRecord `json:"state"`
}

// DeployError — ошибка деплоя с HTTP-кодом.
type DeployError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// repoEntry — управляемый репозиторий вместе с его файловым хранилищем.
type repoEntry struct {
	repo  model.ManagedRepository
	store *filestore.Store
}

// coordinateLocks — advisory-блокировки координат деплоя.
// Проверка существования файла и последующая запись не атомарны как пара,
// поэтому одновременные деплои одной координаты сериализуются здесь.
type coordinateLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// acquire захватывает блокировку координаты и возвращает функцию освобождения.
func (l *coordinateLocks) acquire(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// DeployService — движок деплоя артефактов.
// Безопасен для конкурентного использования: деплои разных координат
// идут параллельно, одной координаты — последовательно.
type DeployService struct {
	repos  map[string]repoEntry
	meta   *metarepo.Store
	locks  coordinateLocks
	logger *slog.Logger
}

// NewDeployService создаёт движок деплоя для набора управляемых
// репозиториев. Корневые директории хранилищ создаются при необходимости.
func NewDeployService(repos []model.ManagedRepository, meta *metarepo.Store, logger *slog.Logger) (*DeployService, error) {
	entries := make(map[string]repoEntry, len(repos))
	for _, repo := range repos {
		store, err := filestore.New(repo.StorageRoot)
		if err != nil {
			return nil, fmt.Errorf("репозиторий %s: %w", repo.ID, err)
		}
		entries[repo.ID] = repoEntry{repo: repo, store: store}
	}

	return &DeployService{
		repos:  entries,
		meta:   meta,
		locks:  coordinateLocks{locks: make(map[string]*sync.Mutex)},
		logger: logger.With(slog.String("component", "deploy_service")),
	}, nil
}

// Repositories возвращает сконфигурированные управляемые репозитории.
func (s *DeployService) Repositories() []model.ManagedRepository {
	result := make([]model.ManagedRepository, 0, len(s.repos))
	for _, entry := range s.repos {
		result = append(result, entry.repo)
	}
	return result
}

// Deploy выполняет один деплой артефакта.
//
// Поток (см. конечный автомат в internal/domain/state):
//  1. Поиск репозитория и валидация координаты
//  2. Разрешение координаты в пути (с разворачиванием snapshot-версии)
//  3. Политика блокировки повторных деплоев
//  4. Запись основного артефакта и дескриптора
//  5. Контрольные суммы обоих файлов (все алгоритмы)
//  6. Перегенерация дескриптора группы + его суммы,
//     регистрация артефактов в metadata-репозитории
//
// Ошибка любого шага прерывает оставшиеся шаги. Частично записанные
// файлы при этом остаются на диске и операция отражается как неуспешная:
// очистка — явная внешняя операция, здесь она не выполняется.
func (s *DeployService) Deploy(params DeployParams) (*DeployResult, *DeployError) {
	tracker := state.NewTracker()
	requestID := params.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := s.logger.With(slog.String("request_id", requestID))

	fail := func(statusCode int, code, message string, err error) *DeployError {
		tracker.Fail()
		middleware.DeploymentsTotal.WithLabelValues("failure").Inc()
		if err != nil {
			logger.Error(message, slog.String("error", err.Error()))
		}
		return &DeployError{StatusCode: statusCode, Code: code, Message: message}
	}

	// 1. Репозиторий и координата
	entry, ok := s.repos[params.RepositoryID]
	if !ok {
		return nil, fail(404, apierrors.CodeRepositoryNotFound,
			fmt.Sprintf("Репозиторий %q не сконфигурирован", params.RepositoryID), nil)
	}

	coord := params.Coordinate.Normalize()
	if err := coord.Validate(); err != nil {
		return nil, fail(400, apierrors.CodeValidationError,
			fmt.Sprintf("Некорректная координата: %s", err.Error()), nil)
	}

	if !entry.repo.AcceptsVersion(coord) {
		kind := "release"
		if coord.IsSnapshot() {
			kind = "snapshot"
		}
		return nil, fail(409, apierrors.CodeVersionNotAllowed,
			fmt.Sprintf("Репозиторий %s не принимает %s-версии", entry.repo.ID, kind), nil)
	}

	// Сериализуем одновременные деплои одной координаты
	unlock := s.locks.acquire(params.RepositoryID + "|" + coord.Key())
	defer unlock()

	// 2. Разрешение путей
	deployVersion := coord.Version
	if coord.IsSnapshot() {
		expanded, err := layout.ExpandSnapshot(coord,
			entry.store.FullPath(layout.VersionDir(coord)), time.Now())
		if err != nil {
			return nil, fail(500, apierrors.CodeInternalError,
				"Ошибка разворачивания snapshot-версии", err)
		}
		deployVersion = expanded
	}

	versionDir := layout.VersionDir(coord)
	primaryRel := path.Join(versionDir, layout.ArtifactFileName(coord, deployVersion))
	if err := tracker.Advance(state.StateResolved); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка трекера состояния", err)
	}

	// 3. Политика блокировки повторных деплоев.
	// Snapshot-версии освобождены: каждый деплой разворачивается
	// в уникальное timestamp-имя и коллизий не создаёт.
	if entry.repo.BlockRedeployments && !coord.IsSnapshot() && entry.store.Exists(primaryRel) {
		_ = tracker.Advance(state.StateBlocked)
		return nil, fail(409, apierrors.CodeRedeploymentBlocked,
			fmt.Sprintf("Повторный деплой %s запрещён политикой репозитория %s",
				coord.String(), entry.repo.ID), nil)
	}
	if err := tracker.Advance(state.StateValidated); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка трекера состояния", err)
	}

	// 4. Запись основного артефакта
	primarySize, err := entry.store.Write(primaryRel, params.Artifact)
	if err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка записи артефакта", err)
	}

	// Дескриптор: предоставленный, синтезированный или никакого
	descriptorRel := ""
	var descriptorSize int64
	descriptorSource := params.Descriptor
	if descriptorSource == nil && params.GenerateDescriptor {
		pom, pomErr := metadata.SynthesizePOM(coord)
		if pomErr != nil {
			return nil, fail(500, apierrors.CodeInternalError, "Ошибка синтеза POM", pomErr)
		}
		descriptorSource = bytes.NewReader(pom)
	}
	if descriptorSource != nil {
		descriptorRel = path.Join(versionDir, layout.DescriptorFileName(coord, deployVersion))
		descriptorSize, err = entry.store.Write(descriptorRel, descriptorSource)
		if err != nil {
			return nil, fail(500, apierrors.CodeInternalError, "Ошибка записи дескриптора", err)
		}
	}
	if err := tracker.Advance(state.StateWritten); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка трекера состояния", err)
	}

	// 5. Контрольные суммы записанных файлов: каждому файлу — ровно
	// один sidecar на алгоритм, всегда от текущего содержимого.
	written := []string{primaryRel}
	if descriptorRel != "" {
		written = append(written, descriptorRel)
	}
	var sidecars []string
	for _, rel := range written {
		for _, alg := range checksum.Algorithms() {
			if _, csErr := checksum.WriteSidecar(entry.store.FullPath(rel), alg); csErr != nil {
				return nil, fail(500, apierrors.CodeChecksumIO,
					fmt.Sprintf("Ошибка генерации контрольной суммы %s для %s", alg, rel), csErr)
			}
			middleware.ChecksumFilesTotal.WithLabelValues(string(alg)).Inc()
			sidecars = append(sidecars, rel+"."+alg.Ext())
		}
	}
	if err := tracker.Advance(state.StateChecksummed); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка трекера состояния", err)
	}

	// 6. Дескриптор группы, его суммы и регистрация в metadata-репозитории
	metaRel := layout.GroupMetadataPath(coord)
	if err := metadata.Update(entry.store.FullPath(metaRel), coord, time.Now()); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка обновления дескриптора группы", err)
	}
	for _, alg := range checksum.Algorithms() {
		if _, csErr := checksum.WriteSidecar(entry.store.FullPath(metaRel), alg); csErr != nil {
			return nil, fail(500, apierrors.CodeChecksumIO,
				fmt.Sprintf("Ошибка генерации контрольной суммы %s для %s", alg, metaRel), csErr)
		}
		middleware.ChecksumFilesTotal.WithLabelValues(string(alg)).Inc()
		sidecars = append(sidecars, metaRel+"."+alg.Ext())
	}

	now := time.Now().UTC()
	primaryInfo := model.ArtifactInfo{
		Name:         path.Base(primaryRel),
		Version:      coord.Version,
		Size:         primarySize,
		WhenGathered: now,
		Facets:       map[string]string{model.FacetKindArtifactType: coord.Type},
	}
	if err := s.meta.AddArtifact(params.RepositoryID, coord.GroupID, coord.ArtifactID, coord.Version, primaryInfo); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка регистрации артефакта", err)
	}
	if descriptorRel != "" {
		descriptorInfo := model.ArtifactInfo{
			Name:         path.Base(descriptorRel),
			Version:      coord.Version,
			Size:         descriptorSize,
			WhenGathered: now,
			Facets:       map[string]string{model.FacetKindArtifactType: layout.DescriptorType},
		}
		if err := s.meta.AddArtifact(params.RepositoryID, coord.GroupID, coord.ArtifactID, coord.Version, descriptorInfo); err != nil {
			return nil, fail(500, apierrors.CodeInternalError, "Ошибка регистрации дескриптора", err)
		}
	}
	if err := tracker.Advance(state.StateMetadataUpdated); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка трекера состояния", err)
	}

	if err := tracker.Advance(state.StateSucceeded); err != nil {
		return nil, fail(500, apierrors.CodeInternalError, "Ошибка трекера состояния", err)
	}
	middleware.DeploymentsTotal.WithLabelValues("success").Inc()

	logger.Info("Артефакт задеплоен",
		slog.String("repo_id", params.RepositoryID),
		slog.String("coordinate", coord.String()),
		slog.String("deployed_version", deployVersion),
		slog.Int64("size", primarySize),
	)

	return &DeployResult{
		ID:              requestID,
		Coordinate:      coord,
		DeployedVersion: deployVersion,
		Files: StoredArtifactSet{
			Primary:       primaryRel,
			Descriptor:    descriptorRel,
			GroupMetadata: metaRel,
			Checksums:     sidecars,
		},
		State: tracker.History(),
	}, nil
}
