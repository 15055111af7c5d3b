package res

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Error     string `json:"error"`                // Сообщение об ошибке (для пользователя)
	ErrorCode int    `json:"error_code,omitempty"` // Код ошибки (для программной обработки)
	Details   any    `json:"details,omitempty"`    // Детали ошибки (например, ошибки валидации)
}

// URLResponse - ответ с адресом для редиректа (checkout, portal).
type URLResponse struct {
	URL string `json:"url"`
}

// ReceivedResponse - подтверждение приема вебхука.
type ReceivedResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// JsonResponse отправляет JSON-ответ с заданным статусом.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JsonError отправляет ErrorResponse, дублируя статус в error_code.
func JsonError(w http.ResponseWriter, message string, status int) {
	JsonResponse(w, ErrorResponse{Error: message, ErrorCode: status}, status)
}
