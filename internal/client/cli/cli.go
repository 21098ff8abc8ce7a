// Package cli - интерактивный клиент mooday: регистрация, вход
// и смена пароля с капчей
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iudanet/mooday/internal/client/iocli"
	"github.com/iudanet/mooday/internal/client/storage"
	"github.com/iudanet/mooday/pkg/api"
)

// APIClient - запросы к серверу mooday
type APIClient interface {
	Captcha(ctx context.Context) ([]byte, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.MessageResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	ChangePassword(ctx context.Context, req api.ChangePasswordRequest) (*api.MessageResponse, error)
	Me(ctx context.Context) (*api.UserResponse, error)
	SetToken(token string)
}

// ErrNotLoggedIn возвращается командами, которым нужна сохраненная сессия
var ErrNotLoggedIn = errors.New("not logged in, run 'mooday login' first")

type Cli struct {
	apiClient   APIClient
	store       storage.AuthStorage
	io          iocli.IO
	captchaPath string
	now         func() time.Time
}

// New создает клиент. Изображение капчи сохраняется в captchaPath
func New(apiClient APIClient, store storage.AuthStorage, io iocli.IO, captchaPath string) *Cli {
	return &Cli{
		apiClient:   apiClient,
		store:       store,
		io:          io,
		captchaPath: captchaPath,
		now:         time.Now,
	}
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		remember := fs.Bool("remember", false, "keep the session for 7 days")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.runLogin(ctx, *remember)
	case "passwd":
		return c.runPasswd(ctx)
	case "whoami":
		return c.runWhoAmI(ctx)
	case "status":
		return c.runStatus(ctx)
	case "logout":
		return c.runLogout(ctx)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// solveCaptcha запрашивает капчу, сохраняет изображение и читает ответ
func (c *Cli) solveCaptcha(ctx context.Context) (string, error) {
	img, err := c.apiClient.Captcha(ctx)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(c.captchaPath, img, 0o600); err != nil {
		return "", fmt.Errorf("failed to save captcha image: %w", err)
	}

	c.io.Printf("Captcha image saved to %s\n", c.captchaPath)
	answer, err := c.io.ReadInput("Captcha: ")
	if err != nil {
		return "", fmt.Errorf("failed to read captcha: %w", err)
	}
	return answer, nil
}

// loadSession подставляет сохраненный токен в API клиент
func (c *Cli) loadSession(ctx context.Context) (*storage.AuthData, error) {
	ok, err := c.store.IsAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check authentication: %w", err)
	}
	if !ok {
		return nil, ErrNotLoggedIn
	}

	authData, err := c.store.GetAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth data: %w", err)
	}

	c.apiClient.SetToken(authData.Token)
	return authData, nil
}

func PrintUsage() {
	fmt.Println("Mooday Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mooday [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version          Show version information")
	fmt.Println("  --server URL       Server URL (default: http://localhost:3000)")
	fmt.Println("  --db PATH          Path to local session database (default: mooday-client.db)")
	fmt.Println("  --captcha PATH     Where to save the captcha image (default: captcha.png)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register           Register new user")
	fmt.Println("  login [-remember]  Login, -remember keeps the session for 7 days")
	fmt.Println("  passwd             Change password")
	fmt.Println("  whoami             Check the saved token with the server")
	fmt.Println("  status             Show local authentication status")
	fmt.Println("  logout             Delete the local session")
}
