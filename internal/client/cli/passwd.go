package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/mooday/internal/validation"
	"github.com/iudanet/mooday/pkg/api"
)

func (c *Cli) runPasswd(ctx context.Context) error {
	c.io.Println("=== Change Password ===")
	c.io.Println()

	if _, err := c.loadSession(ctx); err != nil {
		return err
	}

	oldPassword, err := c.io.ReadPassword("Current password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	newPassword, err := c.io.ReadPassword("New password (6-24 letters or digits): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm new password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	if newPassword != confirm {
		return fmt.Errorf("passwords do not match")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	answer, err := c.solveCaptcha(ctx)
	if err != nil {
		return err
	}

	if _, err := c.apiClient.ChangePassword(ctx, api.ChangePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
		Captcha:     answer,
	}); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Password changed!")
	c.io.Println("Tokens issued before the change stay valid until they expire.")

	return nil
}
