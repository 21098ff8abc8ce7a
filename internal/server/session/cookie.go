package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName - имя cookie сессии
const DefaultCookieName = "mooday.sid"

// Cookies выдает и проверяет подписанную cookie с id сессии.
// Значение cookie: <id>.<base64url(HMAC-SHA256(id))>
type Cookies struct {
	name   string
	secret []byte
	secure bool
}

// NewCookies создает менеджер cookie. secure включает флаг Secure
func NewCookies(name string, secret []byte, secure bool) *Cookies {
	if name == "" {
		name = DefaultCookieName
	}
	return &Cookies{name: name, secret: secret, secure: secure}
}

// Read возвращает id сессии из запроса.
// ok=false если cookie нет или подпись не сходится
func (c *Cookies) Read(r *http.Request) (id string, ok bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", false
	}

	id, sig, found := strings.Cut(cookie.Value, ".")
	if !found || id == "" {
		return "", false
	}

	expected := c.sign(id)
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, expected) {
		return "", false
	}

	return id, true
}

// Write устанавливает cookie сессии.
// maxAge == 0 дает cookie до закрытия браузера
func (c *Cookies) Write(w http.ResponseWriter, id string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     c.name,
		Value:    id + "." + base64.RawURLEncoding.EncodeToString(c.sign(id)),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = time.Now().Add(maxAge)
	}

	http.SetCookie(w, cookie)
}

// Ensure возвращает id существующей сессии или создает новую и пишет cookie
func (c *Cookies) Ensure(w http.ResponseWriter, r *http.Request) string {
	if id, ok := c.Read(r); ok {
		return id
	}

	id := NewID()
	c.Write(w, id, DefaultTTL)
	return id
}

func (c *Cookies) sign(id string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return mac.Sum(nil)
}
