package handlers

import (
	"net/http"

	"github.com/avoronova/erp-auth-service/internal/transport/http/apierrors"
	"github.com/avoronova/erp-auth-service/internal/transport/http/cookies"
	"github.com/avoronova/erp-auth-service/internal/transport/http/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login — POST /auth/login. Успех: пара токенов в httpOnly-куках и профиль
// в теле. Любой отказ дополнительно сбрасывает куки: после неудачного входа
// на клиенте не должно оставаться старых токенов.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		h.Baker.Clear(w)
		apierrors.WriteError(w, r, err)
		return
	}

	user, pair, err := h.Service.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		h.Baker.Clear(w)
		apierrors.WriteError(w, r, err)
		return
	}

	h.Baker.SetPair(w, pair)
	writeJSON(w, http.StatusOK, userResponse{
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     string(user.Role),
	})
}

// Logout — POST /auth/logout. Идемпотентен: всегда сбрасывает куки и
// отвечает 204, даже если сессии уже нет.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if c, err := r.Cookie(cookies.RefreshCookie); err == nil {
		refreshToken = c.Value
	}

	if err := h.Service.Logout(r.Context(), refreshToken); err != nil {
		h.Baker.Clear(w)
		apierrors.WriteError(w, r, err)
		return
	}

	h.Baker.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword — POST /auth/password. Требует аутентификации (guard).
// Успех инвалидирует все refresh-сессии пользователя, поэтому остальные
// его входы отвалятся на ближайшей ротации.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	var in changePasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), identity.UserID, in.OldPassword, in.NewPassword); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me — GET /auth/me. Возвращает идентичность текущего запроса.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())

	writeJSON(w, http.StatusOK, userResponse{
		UserID:   identity.UserID.String(),
		Username: identity.Username,
		Role:     string(identity.Role),
	})
}
