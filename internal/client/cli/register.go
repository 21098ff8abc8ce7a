package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/mooday/internal/validation"
	"github.com/iudanet/mooday/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password (6-24 letters or digits): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	// Проверяем до запроса капчи, чтобы не тратить ее зря
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	answer, err := c.solveCaptcha(ctx)
	if err != nil {
		return err
	}

	if _, err := c.apiClient.Register(ctx, api.RegisterRequest{
		Username: username,
		Password: password,
		Captcha:  answer,
	}); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("Username: %s\n", username)
	c.io.Println("Please run 'mooday login' to start using the service.")

	return nil
}
