package captcha

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mooday/internal/server/ratelimit"
	"github.com/iudanet/mooday/internal/server/session"
)

// stubGenerator возвращает заранее заданный текст
type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate() (string, []byte, error) {
	if g.err != nil {
		return "", nil, g.err
	}
	return g.text, []byte("png"), nil
}

// failingLimiter имитирует недоступный backend лимитера
type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, ratelimit.ErrUnavailable
}

func (failingLimiter) Sweep(context.Context) (int, error) { return 0, nil }

func newTestIssuer(text string) (*Issuer, *session.MemoryStore) {
	store := session.NewMemoryStore()
	limiter := ratelimit.NewMemoryLimiter(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	return NewIssuer(limiter, store, &stubGenerator{text: text}), store
}

func TestIssuer_Verify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		issue   bool
		answer  string
		wantErr error
	}{
		{name: "correct answer", issue: true, answer: "AbCd", wantErr: nil},
		{name: "answer is case-insensitive", issue: true, answer: "abcd", wantErr: nil},
		{name: "wrong answer", issue: true, answer: "zzzz", wantErr: ErrInvalid},
		{name: "empty answer", issue: true, answer: "", wantErr: ErrMissing},
		{name: "not issued", issue: false, answer: "abcd", wantErr: ErrExpired},
		{name: "not issued and empty", issue: false, answer: "", wantErr: ErrMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer, _ := newTestIssuer("ABcd")
			if tt.issue {
				_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
				require.NoError(t, err)
			}

			err := issuer.Verify(ctx, "sid", tt.answer)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestIssuer_SingleUse(t *testing.T) {
	ctx := context.Background()

	t.Run("correct answer cannot be replayed", func(t *testing.T) {
		issuer, _ := newTestIssuer("abcd")
		_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		require.NoError(t, err)

		require.NoError(t, issuer.Verify(ctx, "sid", "abcd"))
		assert.ErrorIs(t, issuer.Verify(ctx, "sid", "abcd"), ErrExpired)
	})

	t.Run("wrong answer burns the challenge", func(t *testing.T) {
		issuer, _ := newTestIssuer("abcd")
		_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		require.NoError(t, err)

		assert.ErrorIs(t, issuer.Verify(ctx, "sid", "wxyz"), ErrInvalid)
		assert.ErrorIs(t, issuer.Verify(ctx, "sid", "abcd"), ErrExpired)
	})

	t.Run("empty answer burns the challenge", func(t *testing.T) {
		issuer, _ := newTestIssuer("abcd")
		_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		require.NoError(t, err)

		assert.ErrorIs(t, issuer.Verify(ctx, "sid", ""), ErrMissing)
		assert.ErrorIs(t, issuer.Verify(ctx, "sid", "abcd"), ErrExpired)
	})

	t.Run("new challenge overwrites previous", func(t *testing.T) {
		gen := &stubGenerator{text: "aaaa"}
		issuer := NewIssuer(ratelimit.NewMemoryLimiter(30, ratelimit.DefaultWindow), session.NewMemoryStore(), gen)

		_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		require.NoError(t, err)
		gen.text = "bbbb"
		_, err = issuer.Issue(ctx, "1.2.3.4", "sid")
		require.NoError(t, err)

		assert.NoError(t, issuer.Verify(ctx, "sid", "bbbb"))
	})
}

func TestIssuer_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("stores lowercase answer", func(t *testing.T) {
		issuer, store := newTestIssuer("AbCd")
		ch, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		require.NoError(t, err)
		assert.Equal(t, ContentType, ch.ContentType)
		assert.Equal(t, []byte("png"), ch.Image)

		answer, err := store.TakeChallenge(ctx, "sid")
		require.NoError(t, err)
		assert.Equal(t, "abcd", answer)
	})

	t.Run("rate limited after 30 requests", func(t *testing.T) {
		issuer, _ := newTestIssuer("abcd")
		for i := 0; i < ratelimit.DefaultLimit; i++ {
			_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
			require.NoError(t, err)
		}

		_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		assert.ErrorIs(t, err, ErrRateLimited)

		// Другой клиент не затронут
		_, err = issuer.Issue(ctx, "5.6.7.8", "other")
		assert.NoError(t, err)
	})

	t.Run("limiter failure", func(t *testing.T) {
		issuer := NewIssuer(failingLimiter{}, session.NewMemoryStore(), &stubGenerator{text: "abcd"})
		_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		assert.ErrorIs(t, err, ratelimit.ErrUnavailable)
		assert.False(t, errors.Is(err, ErrRateLimited))
	})

	t.Run("generator failure leaves no challenge", func(t *testing.T) {
		store := session.NewMemoryStore()
		issuer := NewIssuer(ratelimit.NewMemoryLimiter(30, ratelimit.DefaultWindow), store, &stubGenerator{err: errors.New("boom")})
		_, err := issuer.Issue(ctx, "1.2.3.4", "sid")
		assert.Error(t, err)

		_, err = store.TakeChallenge(ctx, "sid")
		assert.ErrorIs(t, err, session.ErrNoChallenge)
	})
}

func TestImageGenerator_Generate(t *testing.T) {
	gen := NewImageGenerator(Width, Height)

	text, image, err := gen.Generate()
	require.NoError(t, err)
	assert.Len(t, text, Length)
	for _, r := range text {
		assert.True(t, strings.ContainsRune(Charset, r), "unexpected character %q", r)
	}
	assert.False(t, strings.ContainsAny(text, "0oO1iIl"))

	img, err := png.Decode(bytes.NewReader(image))
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())
}
