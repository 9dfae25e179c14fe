package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avoronova/erp-auth-service/internal/models"
	logctx "github.com/avoronova/erp-auth-service/internal/pkg/log"
	"github.com/avoronova/erp-auth-service/internal/service"
	"github.com/avoronova/erp-auth-service/internal/transport/http/cookies"
)

// Authenticator — часть сервисного слоя, нужная сессионному мидлвару.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken, refreshToken string) (models.Identity, *models.TokenPair, error)
}

// Session — мидлвар прозрачного продления сессии. На каждый запрос:
//
//  1. достаёт access/refresh токены из куки (отсутствие куки — пустая строка);
//  2. вызывает Authenticate: валидный access-токен даёт идентичность без
//     обращений к БД, иначе погашается refresh-сессия с ротацией;
//  3. кладёт итоговую идентичность в контекст (IdentityFrom);
//  4. если произошла ротация — выставляет свежую пару куки.
//
// Мидлвар НИКОГДА не отклоняет запрос: любой исход, включая блокировку
// за replay, даёт анонимную идентичность, а отказ отдают guard'ы или
// сами хендлеры. На путях из skipWrite куки не трогаются вовсе —
// их записью владеет хендлер (login/logout).
func Session(auth Authenticator, baker cookies.Baker, skipWrite ...string) Middleware {
	skip := make(map[string]struct{}, len(skipWrite))
	for _, p := range skipWrite {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessToken := cookieValue(r, cookies.AccessCookie)
			refreshToken := cookieValue(r, cookies.RefreshCookie)

			identity, pair, err := auth.Authenticate(r.Context(), accessToken, refreshToken)

			_, ownCookies := skip[r.URL.Path]

			switch {
			case err == nil:
				if pair != nil && !ownCookies {
					baker.SetPair(w, pair)
				}

			case errors.Is(err, service.ErrAccountBlocked):
				// Учётная запись заблокирована (возможно, прямо сейчас за replay):
				// куки больше не пригодятся, сбрасываем.
				if !ownCookies {
					baker.Clear(w)
				}
				identity = models.Anonymous()

			case errors.Is(err, service.ErrUnauthenticated):
				identity = models.Anonymous()

			default:
				// Инфраструктурная ошибка (БД и т.п.): запрос продолжается
				// анонимно, детали — только в логах.
				logctx.From(r.Context()).Error("session_authenticate_failed",
					slog.String("path", r.URL.Path),
					slog.String("err", err.Error()),
				)
				identity = models.Anonymous()
			}

			ctx := context.WithValue(r.Context(), ctxIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
