package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/iudanet/mooday/internal/server/handlers"
)

// RequestIDHeader - заголовок с id запроса
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen ограничивает длину id, пришедшего от клиента
const maxRequestIDLen = 64

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), handlers.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
