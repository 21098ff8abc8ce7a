package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/iudanet/mooday/internal/server/handlers"
)

// ClientIPMiddleware определяет IP клиента и кладет его в контекст.
// trustedProxies - число доверенных reverse proxy перед сервером:
// 0 - используется адрес соединения, 1 - последний адрес X-Forwarded-For
// (его добавил наш proxy) и т.д.
func ClientIPMiddleware(trustedProxies int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r, trustedProxies)
			ctx := context.WithValue(r.Context(), handlers.ClientIPKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// getClientIP извлекает IP адрес клиента из запроса
// X-Forwarded-For учитывается только за доверенными proxy, X-Real-IP не учитывается
func getClientIP(r *http.Request, trustedProxies int) string {
	remote := remoteHost(r.RemoteAddr)
	if trustedProxies <= 0 {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		// Каждый доверенный proxy добавил по одному адресу справа
		idx := len(parts) - trustedProxies
		if idx < 0 {
			idx = 0
		}
		if ip := strings.TrimSpace(parts[idx]); ip != "" {
			return ip
		}
	}

	return remote
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
