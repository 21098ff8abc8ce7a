// Package auth реализует сценарии регистрации, входа и смены пароля.
// Каждый сценарий сначала сжигает капчу сессии, затем проверяет ввод
// и обращается к хранилищу учетных записей.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/mooday/internal/crypto"
	"github.com/iudanet/mooday/internal/models"
	"github.com/iudanet/mooday/internal/server/captcha"
	"github.com/iudanet/mooday/internal/server/storage"
	"github.com/iudanet/mooday/internal/validation"
)

// Challenges выдает и проверяет капчи
type Challenges interface {
	Issue(ctx context.Context, identity, sid string) (*captcha.Challenge, error)
	Verify(ctx context.Context, sid, answer string) error
}

// TokenIssuer выпускает bearer-токены
type TokenIssuer interface {
	Issue(userID, username string, remember bool) (string, time.Time, error)
}

// RegisterInput - данные регистрации
type RegisterInput struct {
	SessionID string
	Username  string
	Password  string
	Captcha   string
}

// LoginInput - данные входа
type LoginInput struct {
	SessionID  string
	Username   string
	Password   string
	Captcha    string
	RememberMe bool
}

// LoginResult - результат успешного входа
type LoginResult struct {
	ExpiresAt time.Time
	Token     string
	UserID    string
	Username  string
}

// ChangePasswordInput - данные смены пароля. UserID берется из проверенного токена
type ChangePasswordInput struct {
	SessionID   string
	UserID      string
	OldPassword string
	NewPassword string
	Captcha     string
}

// Service оркестрирует сценарии аутентификации
type Service struct {
	logger     *slog.Logger
	users      storage.UserStorage
	hasher     crypto.PasswordHasher
	challenges Challenges
	tokens     TokenIssuer
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService создает сервис аутентификации
func NewService(logger *slog.Logger, users storage.UserStorage, hasher crypto.PasswordHasher, challenges Challenges, tokens TokenIssuer) *Service {
	return &Service{
		logger:     logger,
		users:      users,
		hasher:     hasher,
		challenges: challenges,
		tokens:     tokens,
		now:        time.Now,
	}
}

// IssueChallenge выдает капчу для сессии sid клиента identity
func (s *Service) IssueChallenge(ctx context.Context, identity, sid string) (*captcha.Challenge, error) {
	ch, err := s.challenges.Issue(ctx, identity, sid)
	if err != nil {
		if errors.Is(err, captcha.ErrRateLimited) {
			s.logger.WarnContext(ctx, "captcha rate limit exceeded", slog.String("client_ip", identity))
			return nil, newError(KindRateLimit, MsgTooManyRequests, err)
		}
		s.logger.ErrorContext(ctx, "failed to issue captcha", slog.Any("error", err))
		return nil, newError(KindPersistence, MsgInternalServerError, err)
	}

	return ch, nil
}

// Register создает учетную запись. Капча сжигается до проверки ввода,
// поэтому повтор после ошибки валидации требует новой капчи
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := s.consumeChallenge(ctx, in.SessionID, in.Captcha); err != nil {
		return nil, err
	}

	if in.Username == "" || in.Password == "" {
		return nil, newError(KindValidation, validation.ErrCredentialsRequired.Error(), nil)
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		s.logger.WarnContext(ctx, "invalid username", slog.String("username", in.Username))
		return nil, newError(KindValidation, err.Error(), err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, newError(KindValidation, err.Error(), err)
	}

	exists, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check username", slog.Any("error", err))
		return nil, newError(KindPersistence, MsgInternalServerError, err)
	}
	if exists {
		s.logger.WarnContext(ctx, "user already exists", slog.String("username", in.Username))
		return nil, newError(KindConflict, MsgUsernameTaken, storage.ErrUserAlreadyExists)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return nil, newError(KindPersistence, MsgInternalServerError, err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		// Параллельная регистрация того же имени упирается в ограничение схемы
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			s.logger.WarnContext(ctx, "user already exists", slog.String("username", in.Username))
			return nil, newError(KindConflict, MsgUsernameTaken, err)
		}
		s.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		return nil, newError(KindPersistence, MsgInternalServerError, err)
	}

	s.logger.InfoContext(ctx, "user registered successfully",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID))

	return user, nil
}

// Login проверяет учетные данные и выпускает токен.
// Неудачная проверка пароля не восстанавливает капчу
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := s.consumeChallenge(ctx, in.SessionID, in.Captcha); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
			return nil, newError(KindPersistence, MsgInternalServerError, err)
		}
		// Время ответа не должно выдавать существование пользователя
		_ = s.hasher.Verify(in.Password, s.dummy())
		s.logger.WarnContext(ctx, "login failed: user not found", slog.String("username", in.Username))
		return nil, newError(KindAuth, MsgInvalidCredentials, err)
	}

	if err := s.verifyPassword(ctx, user, in.Password); err != nil {
		if errors.Is(err, ErrAuth) {
			s.logger.WarnContext(ctx, "login failed: invalid password", slog.String("username", in.Username))
			return nil, newError(KindAuth, MsgInvalidCredentials, crypto.ErrPasswordMismatch)
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, in.RememberMe)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue token", slog.Any("error", err))
		return nil, newError(KindPersistence, MsgInternalServerError, err)
	}

	s.logger.InfoContext(ctx, "user logged in successfully",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID),
		slog.Bool("remember_me", in.RememberMe))

	return &LoginResult{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: expiresAt,
	}, nil
}

// ChangePassword меняет пароль пользователя из токена.
// Выданные ранее токены продолжают действовать до истечения срока
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" {
		return newError(KindValidation, MsgPasswordsRequired, nil)
	}

	if err := s.consumeChallenge(ctx, in.SessionID, in.Captcha); err != nil {
		return err
	}

	if err := validation.ValidatePassword(in.NewPassword); err != nil {
		return newError(KindValidation, err.Error(), err)
	}

	user, err := s.CurrentUser(ctx, in.UserID)
	if err != nil {
		return err
	}

	if err := s.verifyPassword(ctx, user, in.OldPassword); err != nil {
		if errors.Is(err, ErrAuth) {
			s.logger.WarnContext(ctx, "change password failed: invalid old password", slog.String("user_id", user.ID))
			return newError(KindAuth, MsgOldPasswordInvalid, crypto.ErrPasswordMismatch)
		}
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return newError(KindPersistence, MsgInternalServerError, err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return newError(KindNotFound, MsgUserNotFound, err)
		}
		s.logger.ErrorContext(ctx, "failed to update password", slog.Any("error", err))
		return newError(KindPersistence, MsgInternalServerError, err)
	}

	s.logger.InfoContext(ctx, "password changed successfully", slog.String("user_id", user.ID))

	return nil
}

// CurrentUser возвращает учетную запись по id из токена
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "user not found", slog.String("user_id", userID))
			return nil, newError(KindNotFound, MsgUserNotFound, err)
		}
		s.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		return nil, newError(KindPersistence, MsgInternalServerError, err)
	}

	return user, nil
}

// consumeChallenge проверяет и сжигает капчу сессии
func (s *Service) consumeChallenge(ctx context.Context, sid, answer string) error {
	err := s.challenges.Verify(ctx, sid, answer)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, captcha.ErrMissing):
		return newError(KindChallenge, MsgCaptchaRequired, err)
	case errors.Is(err, captcha.ErrExpired):
		return newError(KindChallenge, MsgCaptchaExpired, err)
	case errors.Is(err, captcha.ErrInvalid):
		s.logger.WarnContext(ctx, "captcha mismatch")
		return newError(KindChallenge, MsgCaptchaInvalid, err)
	default:
		s.logger.ErrorContext(ctx, "failed to verify captcha", slog.Any("error", err))
		return newError(KindPersistence, MsgInternalServerError, err)
	}
}

// verifyPassword возвращает ErrAuth при несовпадении пароля
func (s *Service) verifyPassword(ctx context.Context, user *models.User, password string) error {
	err := s.hasher.Verify(password, user.PasswordHash)
	if err == nil {
		return nil
	}
	if errors.Is(err, crypto.ErrPasswordMismatch) {
		return ErrAuth
	}

	s.logger.ErrorContext(ctx, "failed to verify password hash",
		slog.String("user_id", user.ID),
		slog.Any("error", err))
	return newError(KindPersistence, MsgInternalServerError, err)
}

// dummy возвращает хеш, с которым сравнивается пароль несуществующего пользователя
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.New().String()[:24])
		if err != nil {
			s.logger.Error("failed to prepare dummy hash", slog.Any("error", err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
