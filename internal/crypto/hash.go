package crypto

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Алгоритмы хеширования паролей
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost - стоимость bcrypt по умолчанию
const DefaultBcryptCost = 10

var (
	// ErrPasswordMismatch возвращается, если пароль не соответствует хешу
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrUnknownHashFormat возвращается для хеша неизвестного формата
	ErrUnknownHashFormat = errors.New("unknown password hash format")
)

// PasswordHasher хеширует и проверяет пароли
// Реализации безопасны для конкурентного использования
type PasswordHasher interface {
	// Hash возвращает соленый хеш пароля в самоописывающем формате
	Hash(password string) (string, error)
	// Verify возвращает nil, если пароль соответствует хешу,
	// ErrPasswordMismatch при несовпадении
	Verify(password, encodedHash string) error
}

// BcryptHasher хеширует пароли с помощью bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher создает bcrypt hasher с указанной стоимостью
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be in [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash хеширует пароль. Соль генерируется bcrypt и хранится внутри хеша
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify сравнивает пароль с bcrypt хешем за постоянное время
func (h *BcryptHasher) Verify(password, encodedHash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to compare password hash: %w", err)
	}
	return nil
}

// Hasher хеширует новым алгоритмом, а проверяет любым известным,
// определяя алгоритм по префиксу хеша. Это позволяет сменить алгоритм
// без сброса существующих паролей
type Hasher struct {
	primary PasswordHasher
	bcrypt  *BcryptHasher
	argon2  *Argon2Hasher
}

// NewHasher создает Hasher для алгоритма algorithm ("bcrypt" или "argon2id")
func NewHasher(algorithm string, bcryptCost int) (*Hasher, error) {
	bh, err := NewBcryptHasher(bcryptCost)
	if err != nil {
		return nil, err
	}
	ah := NewArgon2Hasher(DefaultArgon2Params())

	h := &Hasher{bcrypt: bh, argon2: ah}
	switch algorithm {
	case AlgorithmBcrypt, "":
		h.primary = bh
	case AlgorithmArgon2id:
		h.primary = ah
	default:
		return nil, fmt.Errorf("unsupported password hash algorithm %q", algorithm)
	}
	return h, nil
}

// Hash хеширует пароль основным алгоритмом
func (h *Hasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify проверяет пароль алгоритмом, которым был создан encodedHash
func (h *Hasher) Verify(password, encodedHash string) error {
	switch {
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return h.bcrypt.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$"+AlgorithmArgon2id+"$"):
		return h.argon2.Verify(password, encodedHash)
	default:
		return ErrUnknownHashFormat
	}
}
