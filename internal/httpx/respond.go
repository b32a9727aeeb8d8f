package httpx

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Reply is the envelope every endpoint returns. Data is omitted when nil.
type Reply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a success envelope with status 200.
func OK(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Reply{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope with a user-safe message.
func Fail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Reply{Success: false, Message: message})
}

// ServerError logs the underlying failure and writes an opaque 500. Backing
// store details never reach the caller.
func ServerError(w http.ResponseWriter, logger *zap.SugaredLogger, op string, err error) {
	logger.Errorw("internal error", "op", op, "err", err)
	WriteJSON(w, http.StatusInternalServerError, Reply{Success: false, Message: "internal server error"})
}
