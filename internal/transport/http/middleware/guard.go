package middleware

import (
	"net/http"

	"github.com/avoronova/erp-auth-service/internal/models"
	logctx "github.com/avoronova/erp-auth-service/internal/pkg/log"
	"github.com/avoronova/erp-auth-service/internal/service"
	"github.com/avoronova/erp-auth-service/internal/transport/http/apierrors"
)

// RequireRoles — ролевой guard. Пустой список ролей означает «любой
// аутентифицированный пользователь».
//
// Отказы:
//   - нет идентичности — 401/unauthenticated;
//   - роль не входит в список — 403/permission_denied.
//
// OPTIONS пропускается без проверок: CORS preflight не несёт куки
// и не должен получать 401.
func RequireRoles(roles ...models.Role) Middleware {
	if len(roles) == 0 {
		roles = models.AllRoles
	}

	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			identity := IdentityFrom(r.Context())
			if !identity.Authenticated {
				apierrors.WriteError(w, r, service.ErrUnauthenticated)
				return
			}

			if _, ok := allowed[identity.Role]; !ok {
				apierrors.WriteError(w, r, apierrors.ErrPermissionDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GuardDisabled — явная заглушка для маршрутов, намеренно оставленных
// без ролевой проверки. Каждый запрос через неё логируется предупреждением,
// чтобы открытый маршрут нельзя было не заметить.
func GuardDisabled() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logctx.From(r.Context()).Warn("route_guard_disabled",
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r)
		})
	}
}
