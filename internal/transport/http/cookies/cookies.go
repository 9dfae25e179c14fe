// cookies инкапсулирует работу с парой аутентификационных куки.
//
// Оба значения — httpOnly: фронту не нужен (и не должен быть доступен)
// ни access-, ни refresh-токен; браузер прикладывает их сам.
package cookies

import (
	"net/http"
	"time"

	"github.com/avoronova/erp-auth-service/internal/models"
)

// Имена куки стабильны — на них завязан фронт.
const (
	AccessCookie  = "auth_token"
	RefreshCookie = "refresh_token"
)

// Baker выставляет и сбрасывает аутентификационные куки
// с едиными атрибутами (Domain/Secure берутся из конфигурации).
type Baker struct {
	Domain string
	Secure bool
}

// SetPair записывает свежую пару токенов. Max-Age каждой куки совпадает
// со сроком жизни соответствующего токена.
func (b Baker) SetPair(w http.ResponseWriter, pair *models.TokenPair) {
	now := time.Now()

	http.SetCookie(w, b.build(AccessCookie, pair.AccessToken, pair.AccessExpiresAt, now))
	http.SetCookie(w, b.build(RefreshCookie, pair.RefreshToken, pair.RefreshExpiresAt, now))
}

// Clear сбрасывает обе куки: пустое значение и просроченный expiry.
func (b Baker) Clear(w http.ResponseWriter) {
	epoch := time.Unix(0, 0)

	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   b.Domain,
			Expires:  epoch,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   b.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (b Baker) build(name, value string, expiresAt, now time.Time) *http.Cookie {
	maxAge := int(expiresAt.Sub(now).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   b.Domain,
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   b.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
