package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/iudanet/mooday/internal/models"
	"github.com/iudanet/mooday/internal/server/auth"
	"github.com/iudanet/mooday/internal/server/captcha"
	"github.com/iudanet/mooday/internal/server/observability"
	"github.com/iudanet/mooday/internal/server/session"
	"github.com/iudanet/mooday/pkg/api"
)

// AuthService - сценарии аутентификации, которые обслуживает AuthHandler
type AuthService interface {
	IssueChallenge(ctx context.Context, identity, sid string) (*captcha.Challenge, error)
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	ChangePassword(ctx context.Context, in auth.ChangePasswordInput) error
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// Сообщения об успехе
const (
	MsgRegistered      = "registered successfully"
	MsgPasswordChanged = "password changed successfully"
	MsgInvalidBody     = "invalid request body"
	MsgUnauthorized    = "unauthorized"
)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger   *slog.Logger
	service  AuthService
	cookies  *session.Cookies
	sessions session.Store
	metrics  *observability.Metrics
}

// NewAuthHandler создает новый handler для авторизации.
// metrics может быть nil
func NewAuthHandler(logger *slog.Logger, service AuthService, cookies *session.Cookies, sessions session.Store, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		service:  service,
		cookies:  cookies,
		sessions: sessions,
		metrics:  metrics,
	}
}

// Captcha обрабатывает GET /api/captcha
// Выдает PNG капчи и при необходимости создает сессию
func (h *AuthHandler) Captcha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sid := h.cookies.Ensure(w, r)

	ch, err := h.service.IssueChallenge(ctx, clientIP(r), sid)
	if err != nil {
		if auth.KindOf(err) == auth.KindRateLimit {
			h.metrics.RateLimited()
		}
		h.sendServiceError(w, "captcha", err)
		return
	}

	h.metrics.CaptchaIssued()

	w.Header().Set("Content-Type", ch.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(ch.Image); err != nil {
		h.logger.WarnContext(ctx, "failed to write captcha image", slog.Any("error", err))
	}
}

// Register обрабатывает POST /api/register
// Регистрация нового пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendMessage(h.logger, w, MsgInvalidBody, http.StatusBadRequest)
		return
	}

	sid, _ := h.cookies.Read(r)

	_, err := h.service.Register(ctx, auth.RegisterInput{
		SessionID: sid,
		Username:  req.Username,
		Password:  req.Password,
		Captcha:   req.Captcha,
	})
	if err != nil {
		h.sendServiceError(w, "register", err)
		return
	}

	h.metrics.AuthOperation("register", "success")
	sendMessage(h.logger, w, MsgRegistered, http.StatusCreated)
}

// Login обрабатывает POST /api/login
// Аутентификация пользователя. При rememberMe сессия продлевается до 7 дней,
// иначе cookie сессии живет до закрытия браузера
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendMessage(h.logger, w, MsgInvalidBody, http.StatusBadRequest)
		return
	}

	sid, _ := h.cookies.Read(r)

	res, err := h.service.Login(ctx, auth.LoginInput{
		SessionID:  sid,
		Username:   req.Username,
		Password:   req.Password,
		Captcha:    req.Captcha,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		h.sendServiceError(w, "login", err)
		return
	}

	if sid != "" {
		h.refreshSession(ctx, w, sid, req.RememberMe)
	}

	h.metrics.AuthOperation("login", "success")
	sendJSON(h.logger, w, api.LoginResponse{
		Token:    res.Token,
		Username: res.Username,
	}, http.StatusOK)
}

// ChangePassword обрабатывает PUT /api/user/password
// Требует AuthMiddleware. Выданные токены не отзываются
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user_id not found in context")
		sendMessage(h.logger, w, MsgUnauthorized, http.StatusUnauthorized)
		return
	}

	var req api.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode change password request", slog.Any("error", err))
		sendMessage(h.logger, w, MsgInvalidBody, http.StatusBadRequest)
		return
	}

	sid, _ := h.cookies.Read(r)

	err := h.service.ChangePassword(ctx, auth.ChangePasswordInput{
		SessionID:   sid,
		UserID:      userID,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
		Captcha:     req.Captcha,
	})
	if err != nil {
		h.sendServiceError(w, "change_password", err)
		return
	}

	h.metrics.AuthOperation("change_password", "success")
	sendMessage(h.logger, w, MsgPasswordChanged, http.StatusOK)
}

// Me обрабатывает GET /api/user/me
// Возвращает владельца токена; используется для проверки сохраненного токена
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "user_id not found in context")
		sendMessage(h.logger, w, MsgUnauthorized, http.StatusUnauthorized)
		return
	}

	user, err := h.service.CurrentUser(ctx, userID)
	if err != nil {
		h.sendServiceError(w, "me", err)
		return
	}

	sendJSON(h.logger, w, api.UserResponse{
		ID:       user.ID,
		Username: user.Username,
	}, http.StatusOK)
}

// refreshSession выставляет срок жизни cookie сессии после входа
func (h *AuthHandler) refreshSession(ctx context.Context, w http.ResponseWriter, sid string, remember bool) {
	if !remember {
		h.cookies.Write(w, sid, 0)
		return
	}

	if err := h.sessions.Extend(ctx, sid, session.RememberTTL); err != nil {
		// Токен уже выпущен, продление сессии не критично
		h.logger.WarnContext(ctx, "failed to extend session", slog.Any("error", err))
		return
	}
	h.cookies.Write(w, sid, session.RememberTTL)
}

// sendServiceError переводит ошибку сервиса в HTTP ответ
func (h *AuthHandler) sendServiceError(w http.ResponseWriter, operation string, err error) {
	kind := auth.KindOf(err)
	h.metrics.AuthOperation(operation, kind.String())

	message := auth.MsgInternalServerError
	var svcErr *auth.Error
	if errors.As(err, &svcErr) && kind != auth.KindPersistence {
		message = svcErr.Message
	}

	sendMessage(h.logger, w, message, StatusForKind(kind))
}

// StatusForKind возвращает HTTP статус для вида ошибки сервиса
func StatusForKind(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation, auth.KindChallenge, auth.KindConflict, auth.KindAuth:
		return http.StatusBadRequest
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// clientIP возвращает IP клиента, определенный ClientIPMiddleware,
// или адрес соединения
func clientIP(r *http.Request) string {
	if ip, ok := GetClientIP(r.Context()); ok {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
