package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/iudanet/mooday/pkg/api"
)

// StatusError - ответ сервера с кодом вне 2xx
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// StatusCode возвращает HTTP статус из ошибки клиента или 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Client представляет HTTP клиент для взаимодействия с сервером.
// Cookie сессии хранятся в jar, поэтому капча и запрос с ответом на нее
// должны идти через один Client
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu    sync.RWMutex
	token string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil) // ошибка возможна только с PublicSuffixList
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken задает bearer-токен для защищенных запросов
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token возвращает текущий bearer-токен
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Captcha запрашивает новую капчу и возвращает PNG
func (c *Client) Captcha(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/captcha", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("captcha request failed: %w", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		return nil, fmt.Errorf("captcha request failed: unexpected content type %q", ct)
	}
	return body, nil
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/register", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя и запоминает токен
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/login", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// ChangePassword меняет пароль текущего пользователя
func (c *Client) ChangePassword(ctx context.Context, req api.ChangePasswordRequest) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	err := c.doRequest(ctx, http.MethodPut, "/api/user/password", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("change password request failed: %w", err)
	}
	return &resp, nil
}

// Me возвращает владельца текущего токена
func (c *Client) Me(ctx context.Context) (*api.UserResponse, error) {
	var resp api.UserResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/user/me", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	return &resp, nil
}

// Health запрашивает состояние сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет JSON запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	_, respBody, err := c.do(req)
	if err != nil {
		return err
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// do отправляет запрос с токеном и возвращает тело успешного ответа
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var msg api.MessageResponse
		if err := json.Unmarshal(respBody, &msg); err == nil && msg.Message != "" {
			statusErr.Message = msg.Message
		}
		return nil, nil, statusErr
	}

	return resp, respBody, nil
}
