package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apiclient "github.com/iudanet/mooday/internal/client/api"
	"github.com/iudanet/mooday/internal/client/storage"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()

	authData, err := c.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'mooday login' to authenticate.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get auth data: %w", err)
	}

	expiresAt := time.Unix(authData.ExpiresAt, 0)
	remaining := expiresAt.Sub(c.now())

	c.io.Printf("Username: %s\n", authData.Username)
	c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))

	if remaining > 0 {
		c.io.Println("Status: Authenticated")
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	} else {
		c.io.Println("Status: Token has expired. Please login again.")
	}

	return nil
}

func (c *Cli) runWhoAmI(ctx context.Context) error {
	if _, err := c.loadSession(ctx); err != nil {
		return err
	}

	user, err := c.apiClient.Me(ctx)
	if err != nil {
		switch apiclient.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("server rejected the saved token, run 'mooday login': %w", err)
		}
		return err
	}

	c.io.Printf("%s (%s)\n", user.Username, user.ID)
	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	if err := c.store.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			c.io.Println("No saved session.")
			return nil
		}
		return fmt.Errorf("logout failed: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	c.io.Println("Your local session has been deleted.")

	return nil
}
