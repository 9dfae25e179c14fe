package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avoronova/erp-auth-service/internal/service"
	"github.com/avoronova/erp-auth-service/internal/transport/http/cookies"
	"github.com/avoronova/erp-auth-service/internal/transport/http/handlers"
	"github.com/avoronova/erp-auth-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Baker   cookies.Baker

	// Health опционально проверяет зависимости (ping БД) для /healthz.
	Health func(ctx context.Context) error
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний). Session идёт после логирования,
	// чтобы его предупреждения несли request_id, и до guard'ов —
	// они читают идентичность из контекста.
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Metrics(),
		middleware.Session(svc, opts.Baker, "/auth/login", "/auth/logout"),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(svc, opts.Baker)

	// auth
	root.Post("/auth/login", h.Login)
	root.Post("/auth/logout", h.Logout)
	root.With(middleware.RequireRoles()).Post("/auth/password", h.ChangePassword)
	root.With(middleware.RequireRoles()).Get("/auth/me", h.Me)

	// служебные эндпойнты
	root.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			if err := opts.Health(r.Context()); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return root
}
