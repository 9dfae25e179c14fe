// middleware содержит HTTP-мидлвары сервиса: служебные (request id,
// логирование, recover, таймаут), сессионный мидлвар прозрачного
// продления (Session) и ролевые guard'ы (RequireRoles).
package middleware

import (
	"context"
	"net/http"

	"github.com/avoronova/erp-auth-service/internal/models"
)

// Middleware — стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

// Chain применяет мидлвары к обработчику в порядке их перечисления.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxIdentity
)

// IdentityFrom возвращает идентичность запроса, установленную Session.
// До Session в цепочке (или при его отсутствии) — анонимная идентичность.
func IdentityFrom(ctx context.Context) models.Identity {
	if id, ok := ctx.Value(ctxIdentity).(models.Identity); ok {
		return id
	}
	return models.Anonymous()
}

// RequestIDFrom возвращает request id из контекста, если он там есть.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// statusWriter оборачивает ResponseWriter, чтобы перехватить статус и размер.
type statusWriter struct {
	http.ResponseWriter
	status int
	count  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	count, err := w.ResponseWriter.Write(p)
	w.count += count
	return count, err
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}
