// logging.go — журнал HTTP-запросов.
//
// Каждому входящему запросу присваивается идентификатор (uuid): он
// кладётся в контекст запроса, возвращается клиенту в заголовке
// X-Request-Id и сопровождает итоговую запись журнала. Сервис деплоя
// берёт тот же идентификатор из контекста, так что записи обработчика
// и сервиса по одному запросу связываются по request_id.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDHeader — заголовок ответа с идентификатором запроса.
const RequestIDHeader = "X-Request-Id"

// RequestIDFromContext возвращает идентификатор, присвоенный запросу
// middleware RequestLogger, или пустую строку вне HTTP-запроса.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// accessWriter перехватывает статус-код и размер ответа.
type accessWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *accessWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap открывает оригинальный ResponseWriter для http.ResponseController.
func (w *accessWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// requestLevel выбирает уровень записи по статус-коду ответа:
// ERROR (5xx), WARN (4xx), иначе INFO.
func requestLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger присваивает запросу идентификатор и по завершении
// обработки пишет запись журнала: request_id, метод, путь, статус,
// длительность, размер ответа, адрес клиента.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New().String()
			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			wrapped := &accessWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			logger.LogAttrs(ctx, requestLevel(wrapped.status), "HTTP запрос",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
