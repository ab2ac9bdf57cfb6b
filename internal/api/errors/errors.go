// Пакет errors — конструкторы стандартных ошибок Repository Core.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт со stdlib сознательный, пакет внутренний

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок.
const (
	// CodeValidationError — некорректные входные данные запроса
	CodeValidationError = "VALIDATION_ERROR"
	// CodeRepositoryNotFound — неизвестный идентификатор репозитория
	CodeRepositoryNotFound = "REPOSITORY_NOT_FOUND"
	// CodeNotFound — ресурс не найден
	CodeNotFound = "NOT_FOUND"
	// CodeRedeploymentBlocked — повторный деплой release-версии запрещён политикой
	CodeRedeploymentBlocked = "REDEPLOYMENT_BLOCKED"
	// CodeVersionNotAllowed — политика репозитория не принимает версию
	CodeVersionNotAllowed = "VERSION_NOT_ALLOWED"
	// CodeChecksumIO — исходный файл не читается при генерации контрольной суммы
	CodeChecksumIO = "CHECKSUM_IO_FAILURE"
	// CodeMetadataResolution — перечисление уровня дерева метаданных не удалось
	CodeMetadataResolution = "METADATA_RESOLUTION_FAILURE"
	// CodeInternalError — внутренняя ошибка
	CodeInternalError = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// RepositoryNotFound — 404 неизвестный репозиторий.
func RepositoryNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeRepositoryNotFound, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
