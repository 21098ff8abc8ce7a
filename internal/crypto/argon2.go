package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id по умолчанию
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 16
)

// Argon2Params параметры Argon2id
type Argon2Params struct {
	Memory  uint32
	Time    uint32
	KeyLen  uint32
	Threads uint8
}

// DefaultArgon2Params возвращает параметры по умолчанию
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:  Argon2Memory,
		Time:    Argon2Time,
		Threads: Argon2Threads,
		KeyLen:  Argon2KeyLen,
	}
}

// Argon2Hasher хеширует пароли Argon2id и кодирует результат в PHC формате:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher создает Argon2id hasher
func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	return &Argon2Hasher{params: params}
}

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Hash хеширует пароль со случайной солью
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		AlgorithmArgon2id,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify пересчитывает хеш с параметрами из encodedHash и сравнивает
// результаты через subtle.ConstantTimeCompare
func (h *Argon2Hasher) Verify(password, encodedHash string) error {
	params, salt, key, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	if subtle.ConstantTimeCompare(computed, key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// decodeArgon2Hash разбирает PHC строку
func decodeArgon2Hash(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	// "", "argon2id", "v=19", "m=...,t=...,p=...", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != AlgorithmArgon2id {
		return params, nil, nil, ErrUnknownHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("failed to parse argon2 version: %w", err)
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return params, nil, nil, fmt.Errorf("failed to parse argon2 params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("failed to decode hash: %w", err)
	}
	params.KeyLen = uint32(len(key))

	return params, salt, key, nil
}
