// metrics.go — Prometheus HTTP метрики ядра репозитория.
// Регистрирует метрики: rc_http_requests_total, rc_http_request_duration_seconds.
// Бизнес-метрики (rc_deployments_total, rc_scan_runs_total и др.) регистрируются
// в соответствующих пакетах и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_http_requests_total",
			Help: "Общее количество HTTP-запросов к ядру репозитория",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rc_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к ядру репозитория в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// DeploymentsTotal — общее количество деплоев артефактов по результату.
	DeploymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_deployments_total",
			Help: "Общее количество деплоев артефактов",
		},
		[]string{"result"},
	)

	// ChecksumFilesTotal — количество записанных файлов контрольных сумм.
	ChecksumFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_checksum_files_total",
			Help: "Количество записанных файлов контрольных сумм",
		},
		[]string{"algorithm"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем идентификатор репозитория на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

const repoPrefix = "/api/v1/repositories/"

// normalizePath заменяет идентификатор репозитория в пути на {id}
// для предотвращения взрывного роста кардинальности метрик.
// /api/v1/repositories/releases/artifacts → /api/v1/repositories/{id}/artifacts
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/api/v1/info":
		return path
	}
	if !strings.HasPrefix(path, repoPrefix) {
		return path
	}
	rest := path[len(repoPrefix):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return repoPrefix + "{id}"
	}
	return repoPrefix + "{id}" + rest[idx:]
}
