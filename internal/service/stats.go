// stats.go — движок статистики репозитория: рекурсивный обход дерева
// metadata-репозитория, запись неизменяемых снапшотов-фасетов
// и запросы по ним (последний, диапазон времени, удаление).
package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/goartrepo/internal/metarepo"
)

// FacetIDRepositoryStatistics — вид фасета статистики репозитория.
const FacetIDRepositoryStatistics = "repository-statistics"

// ScanTimestampFormat — формат имени снапшота статистики (UTC, по scanEndTime).
// Лексикографический порядок имён совпадает с хронологическим.
const ScanTimestampFormat = "2006/01/02/150405.000"

// statsCacheSize — ёмкость LRU-кэша разобранных снапшотов.
const statsCacheSize = 256

// statsCacheTTL — время жизни записи кэша. Снапшоты неизменяемы,
// TTL защищает только от внешнего вмешательства в файлы фасетов.
const statsCacheTTL = 10 * time.Minute

// RepositoryStatistics — снапшот агрегатов по всему дереву репозитория
// на момент окончания сканирования. Неизменяем после записи: повторное
// сканирование добавляет новый снапшот, не обновляя существующие.
type RepositoryStatistics struct {
	// ScanStartTime — начало сканирования (UTC)
	ScanStartTime time.Time `json:"scan_start_time"`
	// ScanEndTime — конец сканирования (UTC); его штамп — имя снапшота
	ScanEndTime time.Time `json:"scan_end_time"`
	// TotalFileCount — всего файлов в хранилище на момент сканирования
	TotalFileCount int64 `json:"total_file_count"`
	// NewFileCount — файлов, появившихся после предыдущего сканирования
	NewFileCount int64 `json:"new_file_count"`
	// TotalGroupCount — количество групп (namespace, непосредственно
	// содержащих хотя бы один проект)
	TotalGroupCount int64 `json:"total_group_count"`
	// TotalProjectCount — количество проектов
	TotalProjectCount int64 `json:"total_project_count"`
	// TotalArtifactCount — количество артефактов
	TotalArtifactCount int64 `json:"total_artifact_count"`
	// TotalArtifactFileSize — суммарный размер артефактов в байтах
	TotalArtifactFileSize int64 `json:"total_artifact_file_size"`
	// TotalCountByType — разбивка количества артефактов по типу упаковки
	TotalCountByType map[string]int64 `json:"total_count_by_type"`
}

// FacetID возвращает вид фасета статистики.
func (r *RepositoryStatistics) FacetID() string {
	return FacetIDRepositoryStatistics
}

// Name возвращает имя снапшота: scanEndTime в формате ScanTimestampFormat.
func (r *RepositoryStatistics) Name() string {
	return r.ScanEndTime.UTC().Format(ScanTimestampFormat)
}

// Marshal сериализует снапшот в JSON.
func (r *RepositoryStatistics) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Unmarshal восстанавливает снапшот из JSON.
func (r *RepositoryStatistics) Unmarshal(data []byte) error {
	return json.Unmarshal(data, r)
}

// addTypeCount увеличивает счётчик типа упаковки.
func (r *RepositoryStatistics) addTypeCount(artifactType string) {
	if r.TotalCountByType == nil {
		r.TotalCountByType = make(map[string]int64)
	}
	r.TotalCountByType[artifactType]++
}

// NewStatisticsFacetFactory возвращает фабрику фасетов статистики
// для регистрации в metadata-репозитории.
func NewStatisticsFacetFactory() metarepo.FacetFactory {
	return func() metarepo.MetadataFacet {
		return &RepositoryStatistics{}
	}
}

// StatsService — менеджер статистики репозитория.
// Безопасен для конкурентного использования.
type StatsService struct {
	meta   metarepo.MetadataRepository
	cache  *expirable.LRU[string, *RepositoryStatistics]
	logger *slog.Logger
}

// NewStatsService создаёт менеджер статистики.
func NewStatsService(meta metarepo.MetadataRepository, logger *slog.Logger) *StatsService {
	return &StatsService{
		meta:   meta,
		cache:  expirable.NewLRU[string, *RepositoryStatistics](statsCacheSize, nil, statsCacheTTL),
		logger: logger.With(slog.String("component", "stats_service")),
	}
}

// RecordScan строит свежий снапшот по четырём скалярным параметрам
// сканирования, обходит все корневые namespace репозитория и персистит
// результат под именем scanEndTime. Ошибка обхода оборачивается,
// при ошибке ничего не персистится (всё или ничего на сканирование).
func (s *StatsService) RecordScan(repoID string, startTime, endTime time.Time, totalFiles, newFiles int64) (*RepositoryStatistics, error) {
	stats := &RepositoryStatistics{
		ScanStartTime:    startTime.UTC(),
		ScanEndTime:      endTime.UTC(),
		TotalFileCount:   totalFiles,
		NewFileCount:     newFiles,
		TotalCountByType: make(map[string]int64),
	}

	walkStart := time.Now()
	roots, err := s.meta.GetRootNamespaces(repoID)
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления корневых namespace %s: %w", repoID, err)
	}
	for _, ns := range roots {
		if walkErr := s.walk(stats, repoID, ns); walkErr != nil {
			return nil, fmt.Errorf("ошибка обхода репозитория %s: %w", repoID, walkErr)
		}
	}

	if err := s.meta.AddMetadataFacet(repoID, stats); err != nil {
		return nil, fmt.Errorf("ошибка записи снапшота статистики %s: %w", repoID, err)
	}

	s.logger.Info("Снапшот статистики записан",
		slog.String("repo_id", repoID),
		slog.String("name", stats.Name()),
		slog.Int64("artifacts", stats.TotalArtifactCount),
		slog.Duration("walk_duration", time.Since(walkStart)),
	)

	return stats, nil
}

// walk рекурсивно обходит namespace в глубину, накапливая агрегаты
// в stats. Сначала дочерние namespace, затем проекты текущего уровня.
// Namespace считается группой, только если непосредственно содержит
// хотя бы один проект.
func (s *StatsService) walk(stats *RepositoryStatistics, repoID, ns string) error {
	children, err := s.meta.GetNamespaces(repoID, ns)
	if err != nil {
		return fmt.Errorf("namespace %s: %w", ns, err)
	}
	for _, child := range children {
		if err := s.walk(stats, repoID, ns+"."+child); err != nil {
			return err
		}
	}

	projects, err := s.meta.GetProjects(repoID, ns)
	if err != nil {
		return fmt.Errorf("проекты %s: %w", ns, err)
	}
	if len(projects) == 0 {
		return nil
	}

	stats.TotalGroupCount++
	stats.TotalProjectCount += int64(len(projects))

	for _, project := range projects {
		versions, err := s.meta.GetProjectVersions(repoID, ns, project)
		if err != nil {
			return fmt.Errorf("версии %s/%s: %w", ns, project, err)
		}
		for _, version := range versions {
			artifacts, err := s.meta.GetArtifacts(repoID, ns, project, version)
			if err != nil {
				return fmt.Errorf("артефакты %s/%s/%s: %w", ns, project, version, err)
			}
			for _, artifact := range artifacts {
				stats.TotalArtifactCount++
				stats.TotalArtifactFileSize += artifact.Size
				if artifactType, ok := artifact.TypeFacet(); ok {
					stats.addTypeCount(artifactType)
				}
			}
		}
	}

	return nil
}

// LastStatistics возвращает последний по времени снапшот
// или (nil, nil), если снапшотов нет. Благодаря фиксированному формату
// имени лексикографически последнее имя — хронологически последнее.
func (s *StatsService) LastStatistics(repoID string) (*RepositoryStatistics, error) {
	names, err := s.meta.GetMetadataFacets(repoID, FacetIDRepositoryStatistics)
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления снапшотов %s: %w", repoID, err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return s.getStatistics(repoID, names[len(names)-1])
}

// StatisticsInRange возвращает снапшоты в диапазоне времени по убыванию
// времени. Границы включительны; nil-граница означает отсутствие
// ограничения с этой стороны. Снапшоты с неразборчивым именем
// логируются и пропускаются, не прерывая запрос.
func (s *StatsService) StatisticsInRange(repoID string, startTime, endTime *time.Time) ([]*RepositoryStatistics, error) {
	names, err := s.meta.GetMetadataFacets(repoID, FacetIDRepositoryStatistics)
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления снапшотов %s: %w", repoID, err)
	}

	results := make([]*RepositoryStatistics, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		stamp, parseErr := time.ParseInLocation(ScanTimestampFormat, name, time.UTC)
		if parseErr != nil {
			s.logger.Error("Некорректное имя снапшота статистики, пропускаем",
				slog.String("repo_id", repoID),
				slog.String("name", name),
				slog.String("error", parseErr.Error()),
			)
			continue
		}
		if startTime != nil && stamp.Before(*startTime) {
			continue
		}
		if endTime != nil && stamp.After(*endTime) {
			continue
		}

		stats, getErr := s.getStatistics(repoID, name)
		if getErr != nil {
			return nil, getErr
		}
		if stats != nil {
			results = append(results, stats)
		}
	}

	return results, nil
}

// DeleteStatistics удаляет все снапшоты статистики репозитория разом
// и сбрасывает кэш.
func (s *StatsService) DeleteStatistics(repoID string) error {
	if err := s.meta.RemoveMetadataFacets(repoID, FacetIDRepositoryStatistics); err != nil {
		return fmt.Errorf("ошибка удаления снапшотов %s: %w", repoID, err)
	}
	s.cache.Purge()

	s.logger.Info("Снапшоты статистики удалены", slog.String("repo_id", repoID))
	return nil
}

// getStatistics читает снапшот по имени через LRU-кэш.
// Снапшоты неизменяемы, поэтому кэширование по имени безопасно.
func (s *StatsService) getStatistics(repoID, name string) (*RepositoryStatistics, error) {
	cacheKey := repoID + "/" + name
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	facet, err := s.meta.GetMetadataFacet(repoID, FacetIDRepositoryStatistics, name)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения снапшота %s/%s: %w", repoID, name, err)
	}
	if facet == nil {
		return nil, nil
	}

	stats, ok := facet.(*RepositoryStatistics)
	if !ok {
		return nil, fmt.Errorf("фасет %s/%s имеет неожиданный тип %T", repoID, name, facet)
	}

	s.cache.Add(cacheKey, stats)
	return stats, nil
}
