// scan.go — сервис сканирования управляемого репозитория.
//
// Сканирование обходит дерево хранилища на диске, регистрирует
// найденные артефакты в metadata-репозитории (восстанавливая координаты
// из путей раскладки), считает общее количество файлов и количество
// файлов, появившихся после предыдущего сканирования, и завершается
// записью снапшота статистики через StatsService.
//
// Запускается по требованию (HTTP) и как горутина с периодическим
// тикером (RC_SCAN_INTERVAL), сканирующая все репозитории.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/goartrepo/internal/api/errors"
	"github.com/bigkaa/goartrepo/internal/domain/model"
	"github.com/bigkaa/goartrepo/internal/layout"
	"github.com/bigkaa/goartrepo/internal/metarepo"
	"github.com/bigkaa/goartrepo/internal/storage/filestore"
)

// Prometheus метрики сканирования
var (
	// scanRunsTotal — количество сканирований по результату.
	scanRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rc_scan_runs_total",
		Help: "Общее количество сканирований репозиториев",
	}, []string{"repository", "result"})

	// scanDurationSeconds — длительность сканирования.
	scanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_scan_duration_seconds",
		Help:    "Длительность сканирования репозитория в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})

	// artifactsTotal — количество артефактов по последнему снапшоту.
	artifactsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rc_artifacts_total",
		Help: "Количество артефактов репозитория по последнему снапшоту статистики",
	}, []string{"repository"})
)

// ScanError — ошибка сканирования с HTTP-кодом.
type ScanError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ScanService — сервис сканирования репозиториев.
type ScanService struct {
	repos    map[string]repoEntry
	meta     *metarepo.Store
	stats    *StatsService
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex // защита от параллельного сканирования одного репозитория
	inProgress map[string]bool
	cancel     context.CancelFunc
}

// NewScanService создаёт сервис сканирования для набора управляемых
// репозиториев.
func NewScanService(
	repos []model.ManagedRepository,
	meta *metarepo.Store,
	stats *StatsService,
	interval time.Duration,
	logger *slog.Logger,
) (*ScanService, error) {
	entries := make(map[string]repoEntry, len(repos))
	for _, repo := range repos {
		store, err := filestore.New(repo.StorageRoot)
		if err != nil {
			return nil, fmt.Errorf("репозиторий %s: %w", repo.ID, err)
		}
		entries[repo.ID] = repoEntry{repo: repo, store: store}
	}

	return &ScanService{
		repos:      entries,
		meta:       meta,
		stats:      stats,
		interval:   interval,
		logger:     logger.With(slog.String("component", "scan_service")),
		inProgress: make(map[string]bool),
	}, nil
}

// Start запускает фоновую горутину периодического сканирования
// всех репозиториев. Нулевой интервал отключает фоновое сканирование.
func (s *ScanService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Фоновое сканирование отключено")
		return
	}

	scanCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(scanCtx)

	s.logger.Info("Фоновое сканирование запущено",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновое сканирование.
func (s *ScanService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// run — основной цикл фоновой горутины.
func (s *ScanService) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for repoID := range s.repos {
				if _, err := s.Scan(repoID); err != nil {
					s.logger.Error("Ошибка фонового сканирования",
						slog.String("repo_id", repoID),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}

// Scan выполняет одно сканирование репозитория и записывает снапшот
// статистики. Параллельное сканирование одного репозитория отклоняется.
// Сканирование не держит блокировку дерева: параллельные деплои могут
// дать приблизительную точку во времени, поэтому снапшот именуется
// по scanEndTime.
func (s *ScanService) Scan(repoID string) (*RepositoryStatistics, *ScanError) {
	entry, ok := s.repos[repoID]
	if !ok {
		return nil, &ScanError{
			StatusCode: 404,
			Code:       apierrors.CodeRepositoryNotFound,
			Message:    fmt.Sprintf("Репозиторий %q не сконфигурирован", repoID),
		}
	}

	s.mu.Lock()
	if s.inProgress[repoID] {
		s.mu.Unlock()
		return nil, &ScanError{
			StatusCode: 409,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Сканирование репозитория %s уже выполняется", repoID),
		}
	}
	s.inProgress[repoID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProgress[repoID] = false
		s.mu.Unlock()
	}()

	startTime := time.Now().UTC()

	// Порог новизны — конец предыдущего сканирования
	var previousEnd time.Time
	last, lastErr := s.stats.LastStatistics(repoID)
	switch {
	case lastErr != nil:
		// Нулевой порог: все файлы будут учтены как новые
		s.logger.Warn("Не удалось прочитать последний снапшот статистики",
			slog.String("repo_id", repoID),
			slog.String("error", lastErr.Error()),
		)
	case last != nil:
		previousEnd = last.ScanEndTime
	}

	totalFiles, newFiles, err := s.walkStorage(entry, previousEnd)
	if err != nil {
		scanRunsTotal.WithLabelValues(repoID, "failure").Inc()
		s.logger.Error("Ошибка сканирования хранилища",
			slog.String("repo_id", repoID),
			slog.String("error", err.Error()),
		)
		return nil, &ScanError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сканирования хранилища",
		}
	}

	endTime := time.Now().UTC()
	stats, err := s.stats.RecordScan(repoID, startTime, endTime, totalFiles, newFiles)
	if err != nil {
		scanRunsTotal.WithLabelValues(repoID, "failure").Inc()
		s.logger.Error("Ошибка записи снапшота статистики",
			slog.String("repo_id", repoID),
			slog.String("error", err.Error()),
		)
		return nil, &ScanError{
			StatusCode: 500,
			Code:       apierrors.CodeMetadataResolution,
			Message:    "Ошибка записи снапшота статистики",
		}
	}

	scanRunsTotal.WithLabelValues(repoID, "success").Inc()
	scanDurationSeconds.Observe(endTime.Sub(startTime).Seconds())
	artifactsTotal.WithLabelValues(repoID).Set(float64(stats.TotalArtifactCount))

	s.logger.Info("Сканирование завершено",
		slog.String("repo_id", repoID),
		slog.Int64("total_files", totalFiles),
		slog.Int64("new_files", newFiles),
		slog.Int64("artifacts", stats.TotalArtifactCount),
		slog.Duration("duration", endTime.Sub(startTime)),
	)

	return stats, nil
}

// walkStorage обходит дерево хранилища, регистрирует артефакты
// в metadata-репозитории и считает файлы. Потоково: дерево целиком
// в память не загружается.
func (s *ScanService) walkStorage(entry repoEntry, previousEnd time.Time) (totalFiles, newFiles int64, err error) {
	root := entry.store.Root()
	walkErr := filepath.WalkDir(root, func(fullPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		totalFiles++
		if info.ModTime().After(previousEnd) {
			newFiles++
		}

		if !layout.IsRepositoryFile(d.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(root, fullPath)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		coord, parseErr := layout.ParseArtifactPath(rel)
		if parseErr != nil {
			// Файл вне раскладки — учитывается в счётчиках файлов,
			// но артефактом не регистрируется
			s.logger.Debug("Файл вне раскладки репозитория",
				slog.String("repo_id", entry.repo.ID),
				slog.String("path", rel),
				slog.String("error", parseErr.Error()),
			)
			return nil
		}

		artifact := model.ArtifactInfo{
			Name:         d.Name(),
			Version:      coord.Version,
			Size:         info.Size(),
			WhenGathered: time.Now().UTC(),
			Facets:       map[string]string{model.FacetKindArtifactType: coord.Type},
		}
		return s.meta.AddArtifact(entry.repo.ID, coord.GroupID, coord.ArtifactID, coord.Version, artifact)
	})
	if walkErr != nil {
		return 0, 0, fmt.Errorf("ошибка обхода %s: %w", root, walkErr)
	}

	return totalFiles, newFiles, nil
}
