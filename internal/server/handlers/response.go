package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/mooday/pkg/api"
)

// maxBodySize ограничивает размер JSON тела запроса
const maxBodySize = 1 << 16

// decodeJSON читает JSON тело запроса в dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(dst)
}

// sendJSON отправляет JSON ответ
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendMessage отправляет JSON ответ вида {"message": "..."}
func sendMessage(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	sendJSON(logger, w, api.MessageResponse{Message: message}, statusCode)
}
