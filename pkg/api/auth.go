package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"` // 2-16 символов: буквы, цифры, _
	Password string `json:"password"` // 6-24 символа: буквы и цифры
	Captcha  string `json:"captcha"`  // ответ на капчу текущей сессии
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Captcha    string `json:"captcha"`
	RememberMe bool   `json:"rememberMe"` // токен на 7 дней вместо 24 часов
}

// LoginResponse представляет ответ на успешный вход
type LoginResponse struct {
	Token    string `json:"token"`    // JWT bearer token
	Username string `json:"username"` // username в исходном регистре
}

// ChangePasswordRequest представляет запрос на смену пароля
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
	Captcha     string `json:"captcha"`
}

// UserResponse представляет текущего пользователя
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// MessageResponse представляет ответ с сообщением (успех или ошибка)
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version,omitempty"`
}
