// Package jwt выпускает и проверяет bearer-токены (HS256).
// Токены stateless: отзыв до истечения срока не поддерживается.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL - срок жизни токена без "запомнить меня"
	DefaultTTL = 24 * time.Hour
	// RememberTTL - срок жизни токена с "запомнить меня"
	RememberTTL = 7 * 24 * time.Hour
	// DefaultIssuer - значение claim iss
	DefaultIssuer = "mooday"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
)

// Claims - содержимое токена
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	gojwt.RegisteredClaims
}

// Authority подписывает и проверяет токены общим секретом процесса
type Authority struct {
	now         func() time.Time
	issuer      string
	secret      []byte
	ttl         time.Duration
	rememberTTL time.Duration
}

// NewAuthority создает Authority с секретом secret
func NewAuthority(secret []byte) *Authority {
	return &Authority{
		now:         time.Now,
		issuer:      DefaultIssuer,
		secret:      secret,
		ttl:         DefaultTTL,
		rememberTTL: RememberTTL,
	}
}

// Issue выпускает токен для пользователя. remember выбирает срок 7 дней вместо 24 часов
func (a *Authority) Issue(userID, username string, remember bool) (string, time.Time, error) {
	ttl := a.ttl
	if remember {
		ttl = a.rememberTTL
	}

	now := a.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			Issuer:    a.issuer,
			Subject:   userID,
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify проверяет подпись и срок действия токена.
// Возвращает ErrTokenExpired для просроченного токена и ErrTokenInvalid для остальных ошибок
func (a *Authority) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := gojwt.ParseWithClaims(tokenString, claims, func(token *gojwt.Token) (interface{}, error) {
		// Принимаем только HMAC, иначе возможна подмена алгоритма
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		gojwt.WithIssuer(a.issuer),
		gojwt.WithTimeFunc(a.now),
		gojwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
