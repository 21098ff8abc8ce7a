// Package captcha выдает и проверяет одноразовые CAPTCHA-челленджи.
// Ожидаемый ответ хранится в сессии, изображение отдается клиенту.
package captcha

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/steambap/captcha"

	"github.com/iudanet/mooday/internal/server/ratelimit"
	"github.com/iudanet/mooday/internal/server/session"
)

const (
	// Charset - алфавит без легко путаемых символов (0 o O 1 i I l)
	Charset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// Length - длина текста капчи
	Length = 4
	// Width и Height - размер изображения в пикселях
	Width  = 120
	Height = 48
	// ContentType изображения
	ContentType = "image/png"
)

var (
	ErrMissing     = errors.New("captcha answer is required")
	ErrExpired     = errors.New("captcha expired, request a new one")
	ErrInvalid     = errors.New("captcha answer is incorrect")
	ErrRateLimited = errors.New("too many captcha requests, try again later")
)

// Challenge - выданная клиенту капча
type Challenge struct {
	Image       []byte
	ContentType string
}

// Generator создает текст капчи и его изображение
type Generator interface {
	Generate() (text string, image []byte, err error)
}

// ImageGenerator рисует PNG с помощью steambap/captcha
type ImageGenerator struct {
	width  int
	height int
}

// NewImageGenerator создает генератор изображений заданного размера
func NewImageGenerator(width, height int) *ImageGenerator {
	return &ImageGenerator{width: width, height: height}
}

// Generate реализует Generator
func (g *ImageGenerator) Generate() (string, []byte, error) {
	data, err := captcha.New(g.width, g.height, func(o *captcha.Options) {
		o.CharPreset = Charset
		o.TextLength = Length
		o.Noise = 1
		o.CurveNumber = 1
		o.BackgroundColor = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate captcha: %w", err)
	}

	var buf bytes.Buffer
	if err := data.WriteImage(&buf); err != nil {
		return "", nil, fmt.Errorf("failed to encode captcha image: %w", err)
	}

	return data.Text, buf.Bytes(), nil
}

// Issuer выдает капчи с ограничением частоты и проверяет ответы
type Issuer struct {
	limiter   ratelimit.Limiter
	sessions  session.Store
	generator Generator
}

// NewIssuer создает Issuer
func NewIssuer(limiter ratelimit.Limiter, sessions session.Store, generator Generator) *Issuer {
	return &Issuer{
		limiter:   limiter,
		sessions:  sessions,
		generator: generator,
	}
}

// Issue выдает новую капчу для сессии sid клиента identity.
// Предыдущая капча сессии перезаписывается
func (i *Issuer) Issue(ctx context.Context, identity, sid string) (*Challenge, error) {
	allowed, err := i.limiter.Allow(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	text, image, err := i.generator.Generate()
	if err != nil {
		return nil, err
	}

	if err := i.sessions.SetChallenge(ctx, sid, strings.ToLower(text), session.DefaultTTL); err != nil {
		return nil, fmt.Errorf("failed to store captcha: %w", err)
	}

	return &Challenge{Image: image, ContentType: ContentType}, nil
}

// Verify проверяет ответ и всегда сжигает капчу сессии,
// даже если ответ пустой или неверный
func (i *Issuer) Verify(ctx context.Context, sid, answer string) error {
	expected, err := i.sessions.TakeChallenge(ctx, sid)
	if errors.Is(err, session.ErrNoChallenge) {
		if answer == "" {
			return ErrMissing
		}
		return ErrExpired
	}
	if err != nil {
		return fmt.Errorf("failed to read captcha: %w", err)
	}

	if answer == "" {
		return ErrMissing
	}
	if strings.ToLower(answer) != expected {
		return ErrInvalid
	}

	return nil
}
