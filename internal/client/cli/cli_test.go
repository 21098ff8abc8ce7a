package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiclient "github.com/iudanet/mooday/internal/client/api"
	"github.com/iudanet/mooday/internal/client/storage"
	"github.com/iudanet/mooday/internal/client/storage/boltdb"
	"github.com/iudanet/mooday/pkg/api"
)

// scriptedIO отдает заранее заданные ответы и пишет вывод в буфер
type scriptedIO struct {
	inputs    []string
	passwords []string
	out       bytes.Buffer
}

func (s *scriptedIO) Println(a ...any)               { fmt.Fprintln(&s.out, a...) }
func (s *scriptedIO) Printf(format string, a ...any) { fmt.Fprintf(&s.out, format, a...) }
func (s *scriptedIO) Write(p []byte) (int, error)    { return s.out.Write(p) }

func (s *scriptedIO) ReadInput(string) (string, error) {
	if len(s.inputs) == 0 {
		return "", io.EOF
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	return v, nil
}

func (s *scriptedIO) ReadPassword(string) (string, error) {
	if len(s.passwords) == 0 {
		return "", io.EOF
	}
	v := s.passwords[0]
	s.passwords = s.passwords[1:]
	return v, nil
}

// mockAPIClient записывает запросы и возвращает заданные ответы
type mockAPIClient struct {
	captchaErr error
	captchas   int

	registerReq *api.RegisterRequest
	registerErr error

	loginReq  *api.LoginRequest
	loginResp *api.LoginResponse
	loginErr  error

	changeReq *api.ChangePasswordRequest
	changeErr error

	meResp *api.UserResponse
	meErr  error

	token string
}

func (m *mockAPIClient) Captcha(context.Context) ([]byte, error) {
	if m.captchaErr != nil {
		return nil, m.captchaErr
	}
	m.captchas++
	return []byte("\x89PNG"), nil
}

func (m *mockAPIClient) Register(_ context.Context, req api.RegisterRequest) (*api.MessageResponse, error) {
	m.registerReq = &req
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &api.MessageResponse{Message: "registered successfully"}, nil
}

func (m *mockAPIClient) Login(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	m.loginReq = &req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.loginResp, nil
}

func (m *mockAPIClient) ChangePassword(_ context.Context, req api.ChangePasswordRequest) (*api.MessageResponse, error) {
	m.changeReq = &req
	if m.changeErr != nil {
		return nil, m.changeErr
	}
	return &api.MessageResponse{Message: "password changed successfully"}, nil
}

func (m *mockAPIClient) Me(context.Context) (*api.UserResponse, error) {
	if m.meErr != nil {
		return nil, m.meErr
	}
	return m.meResp, nil
}

func (m *mockAPIClient) SetToken(token string) { m.token = token }

type cliEnv struct {
	cli   *Cli
	api   *mockAPIClient
	io    *scriptedIO
	store *boltdb.Storage
}

func newCliEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := boltdb.New(context.Background(), filepath.Join(dir, "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := &cliEnv{
		api:   &mockAPIClient{},
		io:    &scriptedIO{},
		store: store,
	}
	env.cli = New(env.api, store, env.io, filepath.Join(dir, "captcha.png"))
	return env
}

func signedToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, tokenClaims{
		UserID: userID,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
		},
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return token
}

func TestRun_UnknownCommand(t *testing.T) {
	env := newCliEnv(t)
	err := env.cli.Run(context.Background(), "sync", nil)
	assert.ErrorContains(t, err, "unknown command")
}

func TestRegister(t *testing.T) {
	env := newCliEnv(t)
	env.io.inputs = []string{"alice", "Ab3d"}
	env.io.passwords = []string{"secret1", "secret1"}

	err := env.cli.Run(context.Background(), "register", nil)
	require.NoError(t, err)

	require.NotNil(t, env.api.registerReq)
	assert.Equal(t, api.RegisterRequest{Username: "alice", Password: "secret1", Captcha: "Ab3d"}, *env.api.registerReq)
	assert.Contains(t, env.io.out.String(), "Registration successful")

	img, err := os.ReadFile(env.cli.captchaPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img)
}

func TestRegister_LocalValidation(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		passwords []string
		wantErr   string
	}{
		{name: "mismatch", username: "alice", passwords: []string{"secret1", "secret2"}, wantErr: "passwords do not match"},
		{name: "short username", username: "a", passwords: []string{"secret1", "secret1"}, wantErr: "username"},
		{name: "short password", username: "alice", passwords: []string{"abc", "abc"}, wantErr: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCliEnv(t)
			env.io.inputs = []string{tt.username}
			env.io.passwords = tt.passwords

			err := env.cli.Run(context.Background(), "register", nil)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Zero(t, env.api.captchas, "captcha must not be spent")
			assert.Nil(t, env.api.registerReq)
		})
	}
}

func TestRegister_ServerError(t *testing.T) {
	env := newCliEnv(t)
	env.io.inputs = []string{"alice", "zzzz"}
	env.io.passwords = []string{"secret1", "secret1"}
	env.api.registerErr = &apiclient.StatusError{StatusCode: 400, Message: "captcha is invalid"}

	err := env.cli.Run(context.Background(), "register", nil)
	assert.ErrorContains(t, err, "captcha is invalid")
}

func TestLogin(t *testing.T) {
	env := newCliEnv(t)
	ctx := context.Background()
	expires := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
	token := signedToken(t, "user-1", expires)

	env.io.inputs = []string{"alice", "Ab3d"}
	env.io.passwords = []string{"secret1"}
	env.api.loginResp = &api.LoginResponse{Token: token, Username: "alice"}

	err := env.cli.Run(ctx, "login", []string{"-remember"})
	require.NoError(t, err)

	require.NotNil(t, env.api.loginReq)
	assert.True(t, env.api.loginReq.RememberMe)
	assert.Equal(t, "Ab3d", env.api.loginReq.Captcha)

	saved, err := env.store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, &storage.AuthData{
		Username:  "alice",
		UserID:    "user-1",
		Token:     token,
		ExpiresAt: expires.Unix(),
	}, saved)
}

func TestLogin_Errors(t *testing.T) {
	t.Run("bad flag", func(t *testing.T) {
		env := newCliEnv(t)
		err := env.cli.Run(context.Background(), "login", []string{"-forever"})
		assert.Error(t, err)
	})

	t.Run("captcha rate limited", func(t *testing.T) {
		env := newCliEnv(t)
		env.io.inputs = []string{"alice"}
		env.io.passwords = []string{"secret1"}
		env.api.captchaErr = &apiclient.StatusError{StatusCode: 429, Message: "too many requests"}

		err := env.cli.Run(context.Background(), "login", nil)
		assert.ErrorContains(t, err, "too many requests")
		assert.Nil(t, env.api.loginReq)
	})

	t.Run("malformed token", func(t *testing.T) {
		env := newCliEnv(t)
		env.io.inputs = []string{"alice", "Ab3d"}
		env.io.passwords = []string{"secret1"}
		env.api.loginResp = &api.LoginResponse{Token: "garbage", Username: "alice"}

		err := env.cli.Run(context.Background(), "login", nil)
		assert.ErrorContains(t, err, "malformed token")

		_, err = env.store.GetAuth(context.Background())
		assert.ErrorIs(t, err, storage.ErrAuthNotFound)
	})
}

func saveSession(t *testing.T, env *cliEnv, expiresAt time.Time) string {
	t.Helper()
	token := signedToken(t, "user-1", expiresAt)
	require.NoError(t, env.store.SaveAuth(context.Background(), &storage.AuthData{
		Username:  "alice",
		UserID:    "user-1",
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	}))
	return token
}

func TestPasswd(t *testing.T) {
	env := newCliEnv(t)
	token := saveSession(t, env, time.Now().Add(time.Hour))

	env.io.inputs = []string{"Ab3d"}
	env.io.passwords = []string{"secret1", "secret2", "secret2"}

	err := env.cli.Run(context.Background(), "passwd", nil)
	require.NoError(t, err)

	assert.Equal(t, token, env.api.token)
	require.NotNil(t, env.api.changeReq)
	assert.Equal(t, api.ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret2", Captcha: "Ab3d"}, *env.api.changeReq)
	assert.Contains(t, env.io.out.String(), "Password changed")
}

func TestPasswd_RequiresSession(t *testing.T) {
	env := newCliEnv(t)

	err := env.cli.Run(context.Background(), "passwd", nil)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	saveSession(t, env, time.Now().Add(-time.Minute))
	err = env.cli.Run(context.Background(), "passwd", nil)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Zero(t, env.api.captchas)
}

func TestWhoAmI(t *testing.T) {
	env := newCliEnv(t)
	saveSession(t, env, time.Now().Add(time.Hour))
	env.api.meResp = &api.UserResponse{ID: "user-1", Username: "alice"}

	err := env.cli.Run(context.Background(), "whoami", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice (user-1)\n", env.io.out.String())

	env.api.meErr = &apiclient.StatusError{StatusCode: 403, Message: "token is invalid or expired"}
	err = env.cli.Run(context.Background(), "whoami", nil)
	assert.ErrorContains(t, err, "mooday login")
}

func TestStatus(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		env := newCliEnv(t)
		require.NoError(t, env.cli.Run(context.Background(), "status", nil))
		assert.Contains(t, env.io.out.String(), "Not authenticated")
	})

	t.Run("authenticated", func(t *testing.T) {
		env := newCliEnv(t)
		now := time.Now()
		env.cli.now = func() time.Time { return now }
		saveSession(t, env, now.Add(2*time.Hour))

		require.NoError(t, env.cli.Run(context.Background(), "status", nil))
		assert.Contains(t, env.io.out.String(), "Status: Authenticated")
		assert.Contains(t, env.io.out.String(), "Username: alice")
	})

	t.Run("expired", func(t *testing.T) {
		env := newCliEnv(t)
		saveSession(t, env, time.Now().Add(-time.Hour))

		require.NoError(t, env.cli.Run(context.Background(), "status", nil))
		assert.Contains(t, env.io.out.String(), "expired")
	})
}

func TestLogout(t *testing.T) {
	env := newCliEnv(t)
	ctx := context.Background()
	saveSession(t, env, time.Now().Add(time.Hour))

	require.NoError(t, env.cli.Run(ctx, "logout", nil))
	assert.Contains(t, env.io.out.String(), "Logout successful")

	_, err := env.store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	// Повторный logout не ошибка
	require.NoError(t, env.cli.Run(ctx, "logout", nil))
	assert.Contains(t, env.io.out.String(), "No saved session")
}
