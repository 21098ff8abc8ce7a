package cli

import (
	"context"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/mooday/internal/client/storage"
	"github.com/iudanet/mooday/pkg/api"
)

// tokenClaims - поля токена, которые клиент читает без проверки подписи
type tokenClaims struct {
	UserID string `json:"id"`
	gojwt.RegisteredClaims
}

func (c *Cli) runLogin(ctx context.Context, remember bool) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	answer, err := c.solveCaptcha(ctx)
	if err != nil {
		return err
	}

	resp, err := c.apiClient.Login(ctx, api.LoginRequest{
		Username:   username,
		Password:   password,
		Captcha:    answer,
		RememberMe: remember,
	})
	if err != nil {
		return err
	}

	// Подпись проверяет сервер, клиенту нужны только id и срок действия
	var claims tokenClaims
	if _, _, err := gojwt.NewParser().ParseUnverified(resp.Token, &claims); err != nil {
		return fmt.Errorf("server returned malformed token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return fmt.Errorf("server returned token without expiry")
	}

	authData := &storage.AuthData{
		Username:  resp.Username,
		UserID:    claims.UserID,
		Token:     resp.Token,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	if err := c.store.SaveAuth(ctx, authData); err != nil {
		return fmt.Errorf("failed to save auth data: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Username: %s\n", resp.Username)
	c.io.Printf("Token expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))

	return nil
}
