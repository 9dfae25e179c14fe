package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avoronova/erp-auth-service/internal/models"
	"github.com/avoronova/erp-auth-service/internal/service"
	"github.com/avoronova/erp-auth-service/internal/transport/http/cookies"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeAuth — управляемая заглушка Authenticator для тестов мидлвара.
type fakeAuth struct {
	identity models.Identity
	pair     *models.TokenPair
	err      error

	gotAccess  string
	gotRefresh string
	calls      int
}

func (f *fakeAuth) Authenticate(_ context.Context, accessToken, refreshToken string) (models.Identity, *models.TokenPair, error) {
	f.calls++
	f.gotAccess = accessToken
	f.gotRefresh = refreshToken
	return f.identity, f.pair, f.err
}

func employeeIdentity() models.Identity {
	return models.Identity{
		Authenticated: true,
		UserID:        uuid.New(),
		Username:      "ivanov",
		Role:          models.RoleEmployee,
	}
}

func testPair() *models.TokenPair {
	now := time.Now()
	return &models.TokenPair{
		AccessToken:      "new-access",
		RefreshToken:     "new-refresh",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}
}

func cookieByName(t *testing.T, res *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errEnvelope struct {
	Error apiError `json:"error"`
}

func TestChain_Order(t *testing.T) {
	order := []string{}

	m1 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m1-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m1-end")
		})
	}

	m2 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m2-begin")
			next.ServeHTTP(w, r)
			order = append(order, "m2-end")
		})
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	h := Chain(final, m1, m2)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}), RequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotEmpty(t, seen)
	require.Len(t, seen, 32)
	require.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "abc-123", RequestIDFrom(r.Context()))
	}), RequestID())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc-123")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestSession_PassesCookiesToService(t *testing.T) {
	auth := &fakeAuth{identity: employeeIdentity()}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Session(auth, cookies.Baker{}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.AddCookie(&http.Cookie{Name: cookies.AccessCookie, Value: "acc"})
	req.AddCookie(&http.Cookie{Name: cookies.RefreshCookie, Value: "ref"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, 1, auth.calls)
	require.Equal(t, "acc", auth.gotAccess)
	require.Equal(t, "ref", auth.gotRefresh)
}

func TestSession_IdentityInContext(t *testing.T) {
	want := employeeIdentity()
	auth := &fakeAuth{identity: want}

	var got models.Identity
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFrom(r.Context())
	}), Session(auth, cookies.Baker{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Equal(t, want, got)
}

// Ротация: мидлвар выставляет свежую пару куки с атрибутами httpOnly/Path=/.
func TestSession_RotationSetsCookies(t *testing.T) {
	auth := &fakeAuth{identity: employeeIdentity(), pair: testPair()}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Session(auth, cookies.Baker{Secure: true}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	res := rec.Result()
	acc := cookieByName(t, res, cookies.AccessCookie)
	ref := cookieByName(t, res, cookies.RefreshCookie)

	require.NotNil(t, acc)
	require.NotNil(t, ref)
	require.Equal(t, "new-access", acc.Value)
	require.Equal(t, "new-refresh", ref.Value)
	for _, c := range []*http.Cookie{acc, ref} {
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, "/", c.Path)
		require.Greater(t, c.MaxAge, 0)
	}
}

// Быстрый путь (pair == nil): заголовки Set-Cookie не трогаются.
func TestSession_FastPathNoCookies(t *testing.T) {
	auth := &fakeAuth{identity: employeeIdentity(), pair: nil}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Session(auth, cookies.Baker{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Empty(t, rec.Result().Cookies())
}

// Мидлвар никогда не отклоняет запрос сам: отказ аутентификации
// даёт анонимную идентичность и статус решает хендлер/guard.
func TestSession_NeverRejects(t *testing.T) {
	auth := &fakeAuth{err: service.ErrUnauthenticated}

	var got models.Identity
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}), Session(auth, cookies.Baker{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, got.Authenticated)
}

func TestSession_InfraErrorAnonymous(t *testing.T) {
	auth := &fakeAuth{err: errors.New("db down")}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.False(t, IdentityFrom(r.Context()).Authenticated)
		w.WriteHeader(http.StatusOK)
	}), Session(auth, cookies.Baker{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

// Блокировка за replay: куки сбрасываются, запрос продолжается анонимно.
func TestSession_BlockedClearsCookies(t *testing.T) {
	auth := &fakeAuth{err: service.ErrAccountBlocked}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Session(auth, cookies.Baker{}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	res := rec.Result()
	acc := cookieByName(t, res, cookies.AccessCookie)
	require.NotNil(t, acc)
	require.Empty(t, acc.Value)
	require.Less(t, acc.MaxAge, 0)
}

// На путях из skipWrite мидлвар куки не трогает — ими владеет хендлер.
func TestSession_SkipWritePaths(t *testing.T) {
	auth := &fakeAuth{identity: employeeIdentity(), pair: testPair()}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Session(auth, cookies.Baker{}, "/auth/login"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	require.Empty(t, rec.Result().Cookies())
}

func guardedOK() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func withIdentity(req *http.Request, id models.Identity) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), ctxIdentity, id))
}

func TestRequireRoles_Unauthenticated(t *testing.T) {
	h := Chain(guardedOK(), RequireRoles())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var env errEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "unauthenticated", env.Error.Code)
}

func TestRequireRoles_EmptyListAllowsAnyAuthenticated(t *testing.T) {
	h := Chain(guardedOK(), RequireRoles())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/auth/me", nil), employeeIdentity())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoles_WrongRole(t *testing.T) {
	h := Chain(guardedOK(), RequireRoles(models.RoleAdmin))

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), employeeIdentity())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	var env errEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "permission_denied", env.Error.Code)
}

func TestRequireRoles_MatchingRole(t *testing.T) {
	h := Chain(guardedOK(), RequireRoles(models.RoleAdmin, models.RoleManager))

	id := employeeIdentity()
	id.Role = models.RoleManager

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil), id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

// CORS preflight не несёт куки и не должен получать 401.
func TestRequireRoles_OptionsBypass(t *testing.T) {
	h := Chain(guardedOK(), RequireRoles(models.RoleAdmin))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/admin", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGuardDisabled_PassesThrough(t *testing.T) {
	h := Chain(guardedOK(), GuardDisabled())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}
