package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/avoronova/erp-auth-service/internal/models"
	"github.com/avoronova/erp-auth-service/internal/transport/http/apierrors"
	"github.com/avoronova/erp-auth-service/internal/transport/http/cookies"

	"github.com/google/uuid"
)

// AuthService — часть сервисного слоя, нужная хендлерам.
// Authenticate сюда не входит: им владеет сессионный мидлвар.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*models.User, *models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
}

// Handlers агрегирует зависимости HTTP-хендлеров.
type Handlers struct {
	Service AuthService
	Baker   cookies.Baker
}

func New(svc AuthService, baker cookies.Baker) *Handlers {
	return &Handlers{Service: svc, Baker: baker}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return apierrors.ErrInvalidArgument
	}
	return nil
}
