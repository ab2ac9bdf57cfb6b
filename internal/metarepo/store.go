// Пакет metarepo — metadata-репозиторий Repository Core.
//
// Дерево содержимого (namespace → проект → версия → артефакты) живёт
// в памяти под sync.RWMutex и атомарно персистится в content.json
// при каждой мутации; при старте восстанавливается с диска.
// Фасеты хранятся по одному JSON-файлу на имя фасета, имя с '/'
// разворачивается в поддиректории. Диск — единственный источник
// истины для фасетов.
package metarepo

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bigkaa/goartrepo/internal/domain/model"
)

// contentFilename — имя файла персистентного дерева содержимого репозитория.
const contentFilename = "content.json"

// facetsDirname — имя директории хранения фасетов внутри репозитория.
const facetsDirname = "facets"

// MetadataRepository — читающий интерфейс metadata-репозитория
// плюс хранилище фасетов. Его потребляют движки статистики.
type MetadataRepository interface {
	// GetRootNamespaces возвращает корневые namespace репозитория.
	GetRootNamespaces(repoID string) ([]string, error)
	// GetNamespaces возвращает непосредственные дочерние namespace
	// (простые имена, не полностью квалифицированные).
	GetNamespaces(repoID, ns string) ([]string, error)
	// GetProjects возвращает проекты, лежащие непосредственно в namespace.
	GetProjects(repoID, ns string) ([]string, error)
	// GetProjectVersions возвращает версии проекта.
	GetProjectVersions(repoID, ns, project string) ([]string, error)
	// GetArtifacts возвращает артефакты версии проекта.
	GetArtifacts(repoID, ns, project, version string) ([]model.ArtifactInfo, error)
	// GetMetadataFacets возвращает имена фасетов данного вида.
	GetMetadataFacets(repoID, facetKind string) ([]string, error)
	// GetMetadataFacet возвращает фасет по виду и имени.
	// Отсутствующий фасет — (nil, nil).
	GetMetadataFacet(repoID, facetKind, name string) (MetadataFacet, error)
	// AddMetadataFacet сохраняет фасет.
	AddMetadataFacet(repoID string, facet MetadataFacet) error
	// RemoveMetadataFacets удаляет все фасеты данного вида разом.
	RemoveMetadataFacets(repoID, facetKind string) error
}

// repoContent — персистентное дерево содержимого одного репозитория.
// Ключ первого уровня — полностью квалифицированный namespace.
type repoContent struct {
	// Projects: namespace → проект → версия → артефакты
	Projects map[string]map[string]map[string][]model.ArtifactInfo `json:"projects"`
}

// Store — файловый metadata-репозиторий.
// Потокобезопасен для конкурентного чтения и эксклюзивной записи.
type Store struct {
	mu        sync.RWMutex
	metaDir   string
	repos     map[string]*repoContent
	factories map[string]FacetFactory
	logger    *slog.Logger
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ MetadataRepository = (*Store)(nil)

// New создаёт Store с корнем metaDir и восстанавливает дерево
// содержимого всех репозиториев с диска.
// factories — фабрики фасетов по виду; фасеты незарегистрированных
// видов прочитать нельзя.
func New(metaDir string, factories map[string]FacetFactory, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(metaDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию метаданных %s: %w", metaDir, err)
	}

	s := &Store{
		metaDir:   metaDir,
		repos:     make(map[string]*repoContent),
		factories: factories,
		logger:    logger.With(slog.String("component", "metarepo")),
	}

	entries, err := os.ReadDir(metaDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории метаданных %s: %w", metaDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		repoID := e.Name()
		content, loadErr := loadContent(filepath.Join(metaDir, repoID, contentFilename))
		if loadErr != nil {
			return nil, fmt.Errorf("репозиторий %s: %w", repoID, loadErr)
		}
		if content != nil {
			s.repos[repoID] = content
		}
	}

	s.logger.Info("Metadata-репозиторий загружен",
		slog.Int("repositories", len(s.repos)),
		slog.String("meta_dir", metaDir),
	)

	return s, nil
}

// loadContent читает персистентное дерево содержимого.
// Возвращает (nil, nil), если файл отсутствует.
func loadContent(path string) (*repoContent, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}

	var content repoContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}
	if content.Projects == nil {
		content.Projects = make(map[string]map[string]map[string][]model.ArtifactInfo)
	}
	return &content, nil
}

// AddArtifact регистрирует артефакт в дереве содержимого и персистит
// дерево на диск. Артефакт с тем же именем в той же версии заменяется.
func (s *Store) AddArtifact(repoID, ns, project, version string, a model.ArtifactInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.repos[repoID]
	if !ok {
		content = &repoContent{Projects: make(map[string]map[string]map[string][]model.ArtifactInfo)}
		s.repos[repoID] = content
	}

	projects, ok := content.Projects[ns]
	if !ok {
		projects = make(map[string]map[string][]model.ArtifactInfo)
		content.Projects[ns] = projects
	}
	versions, ok := projects[project]
	if !ok {
		versions = make(map[string][]model.ArtifactInfo)
		projects[project] = versions
	}

	artifacts := versions[version]
	replaced := false
	for i, existing := range artifacts {
		if existing.Name == a.Name {
			artifacts[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		artifacts = append(artifacts, a)
	}
	versions[version] = artifacts

	return s.persistContent(repoID, content)
}

// persistContent атомарно записывает дерево содержимого репозитория.
// Вызывается под эксклюзивной блокировкой.
func (s *Store) persistContent(repoID string, content *repoContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации содержимого: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.metaDir, repoID, contentFilename), data)
}

// GetRootNamespaces возвращает отсортированные корневые namespace.
func (s *Store) GetRootNamespaces(repoID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.repos[repoID]
	if !ok {
		return nil, nil
	}

	seen := make(map[string]bool)
	for ns := range content.Projects {
		root, _, _ := strings.Cut(ns, ".")
		seen[root] = true
	}
	return sortedKeys(seen), nil
}

// GetNamespaces возвращает отсортированные непосредственные дочерние
// namespace (простые имена).
func (s *Store) GetNamespaces(repoID, ns string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.repos[repoID]
	if !ok {
		return nil, nil
	}

	prefix := ns + "."
	seen := make(map[string]bool)
	for candidate := range content.Projects {
		if !strings.HasPrefix(candidate, prefix) {
			continue
		}
		child, _, _ := strings.Cut(strings.TrimPrefix(candidate, prefix), ".")
		seen[child] = true
	}
	return sortedKeys(seen), nil
}

// GetProjects возвращает отсортированные проекты, лежащие
// непосредственно в namespace.
func (s *Store) GetProjects(repoID, ns string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.repos[repoID]
	if !ok {
		return nil, nil
	}

	projects, ok := content.Projects[ns]
	if !ok {
		return nil, nil
	}

	names := make([]string, 0, len(projects))
	for name := range projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetProjectVersions возвращает отсортированные версии проекта.
func (s *Store) GetProjectVersions(repoID, ns, project string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.repos[repoID]
	if !ok {
		return nil, nil
	}
	projects, ok := content.Projects[ns]
	if !ok {
		return nil, nil
	}
	versions, ok := projects[project]
	if !ok {
		return nil, nil
	}

	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetArtifacts возвращает копию списка артефактов версии проекта.
func (s *Store) GetArtifacts(repoID, ns, project, version string) ([]model.ArtifactInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.repos[repoID]
	if !ok {
		return nil, nil
	}
	projects, ok := content.Projects[ns]
	if !ok {
		return nil, nil
	}
	versions, ok := projects[project]
	if !ok {
		return nil, nil
	}

	artifacts := versions[version]
	copied := make([]model.ArtifactInfo, len(artifacts))
	copy(copied, artifacts)
	return copied, nil
}

// facetKindDir возвращает директорию фасетов данного вида.
func (s *Store) facetKindDir(repoID, facetKind string) string {
	return filepath.Join(s.metaDir, repoID, facetsDirname, facetKind)
}

// facetPath возвращает путь файла фасета. Слэши в имени фасета
// становятся поддиректориями.
func (s *Store) facetPath(repoID, facetKind, name string) string {
	return filepath.Join(s.facetKindDir(repoID, facetKind), filepath.FromSlash(name)+".json")
}

// GetMetadataFacets возвращает отсортированные имена фасетов вида.
func (s *Store) GetMetadataFacets(repoID, facetKind string) ([]string, error) {
	kindDir := s.facetKindDir(repoID, facetKind)

	var names []string
	err := filepath.WalkDir(kindDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		rel, relErr := filepath.Rel(kindDir, path)
		if relErr != nil {
			return relErr
		}
		names = append(names, strings.TrimSuffix(filepath.ToSlash(rel), ".json"))
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления фасетов %s/%s: %w", repoID, facetKind, err)
	}

	sort.Strings(names)
	return names, nil
}

// GetMetadataFacet читает фасет по виду и имени.
// Отсутствующий фасет — (nil, nil), отсутствующая фабрика вида — ошибка.
func (s *Store) GetMetadataFacet(repoID, facetKind, name string) (MetadataFacet, error) {
	factory, ok := s.factories[facetKind]
	if !ok {
		return nil, fmt.Errorf("фабрика фасетов вида %q не зарегистрирована", facetKind)
	}

	data, err := os.ReadFile(s.facetPath(repoID, facetKind, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения фасета %s/%s/%s: %w", repoID, facetKind, name, err)
	}

	facet := factory()
	if err := facet.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации фасета %s/%s/%s: %w", repoID, facetKind, name, err)
	}
	return facet, nil
}

// AddMetadataFacet атомарно сохраняет фасет.
// Существующий фасет с тем же именем перезаписывается.
func (s *Store) AddMetadataFacet(repoID string, facet MetadataFacet) error {
	data, err := facet.Marshal()
	if err != nil {
		return fmt.Errorf("ошибка сериализации фасета %s: %w", facet.Name(), err)
	}

	path := s.facetPath(repoID, facet.FacetID(), facet.Name())
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	s.logger.Debug("Фасет сохранён",
		slog.String("repo_id", repoID),
		slog.String("facet_kind", facet.FacetID()),
		slog.String("name", facet.Name()),
	)
	return nil
}

// RemoveMetadataFacets удаляет все фасеты вида разом
// (удаление директории вида). Отсутствие фасетов — не ошибка.
func (s *Store) RemoveMetadataFacets(repoID, facetKind string) error {
	if err := os.RemoveAll(s.facetKindDir(repoID, facetKind)); err != nil {
		return fmt.Errorf("ошибка удаления фасетов %s/%s: %w", repoID, facetKind, err)
	}
	return nil
}

// writeFileAtomic записывает данные атомарно: temp → fsync → rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// sortedKeys возвращает отсортированные ключи множества.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
