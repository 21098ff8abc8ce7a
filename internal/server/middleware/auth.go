package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/mooday/internal/server/handlers"
	"github.com/iudanet/mooday/internal/server/jwt"
	"github.com/iudanet/mooday/pkg/api"
)

// TokenVerifier проверяет bearer-токен
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// Сообщения ответов AuthMiddleware
const (
	MsgMissingToken = "not logged in"
	MsgInvalidToken = "token is invalid or expired"
)

// AuthMiddleware создает middleware для проверки JWT токена.
// Нет токена - 401, токен не прошел проверку - 403
func AuthMiddleware(logger *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scheme, tokenString, _ := strings.Cut(r.Header.Get("Authorization"), " ")
			tokenString = strings.TrimSpace(tokenString)
			if tokenString == "" {
				logger.WarnContext(ctx, "missing bearer token", slog.String("path", r.URL.Path))
				writeMessage(w, MsgMissingToken, http.StatusUnauthorized)
				return
			}
			if !strings.EqualFold(scheme, "Bearer") {
				logger.WarnContext(ctx, "unsupported authorization scheme", slog.String("scheme", scheme))
				writeMessage(w, MsgInvalidToken, http.StatusForbidden)
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, jwt.ErrTokenExpired) {
					reason = "expired"
				}
				logger.WarnContext(ctx, "rejected bearer token", slog.String("reason", reason))
				writeMessage(w, MsgInvalidToken, http.StatusForbidden)
				return
			}

			// Добавляем данные из токена в контекст
			ctx = context.WithValue(ctx, handlers.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, handlers.UsernameKey, claims.Username)

			logger.DebugContext(ctx, "user authenticated",
				slog.String("user_id", claims.UserID),
				slog.String("username", claims.Username))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeMessage(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.MessageResponse{Message: message})
}
