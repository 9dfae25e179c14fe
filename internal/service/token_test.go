package service

import (
	"context"
	"testing"
	"time"

	"github.com/avoronova/erp-auth-service/internal/storage"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func TestValidateAccessToken_OK(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := testUser(t, svc, "pw")
	token, err := svc.generateAccessToken(context.Background(), user, time.Now().UTC())
	require.NoError(t, err)

	identity, err := svc.validateAccessToken(token)
	require.NoError(t, err)
	require.True(t, identity.Authenticated)
	require.Equal(t, user.ID, identity.UserID)
	require.Equal(t, user.Username, identity.Username)
	require.Equal(t, user.Role, identity.Role)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := testUser(t, svc, "pw")
	// TTL 30s + leeway 5s: час назад — гарантированно просрочен.
	token, err := svc.generateAccessToken(context.Background(), user, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	_, err = svc.validateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	cfg := testCfg()
	cfg.JWTSecret = "another-secret"
	foreign := New(nil, cfg)

	user := testUser(t, svc, "pw")
	token, err := foreign.generateAccessToken(context.Background(), user, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.validateAccessToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_WrongAudience(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	cfg := testCfg()
	cfg.Audience = "another-frontend"
	foreign := New(nil, cfg)

	user := testUser(t, svc, "pw")
	token, err := foreign.generateAccessToken(context.Background(), user, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.validateAccessToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.validateAccessToken("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateRefreshToken_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := testUser(t, svc, "pw")

	st.EXPECT().SaveSession(gomock.Any(), gomock.Any()).Return(nil)

	plain, expiresAt, err := svc.generateRefreshToken(context.Background(), user.ID)
	require.NoError(t, err)
	// 32 случайных байта в hex — всегда 64 символа.
	require.Len(t, plain, 64)
	require.WithinDuration(t, time.Now().Add(svc.cfg.RefreshTokenTTL), expiresAt, 2*time.Second)
}

// Коллизия хэша при сохранении приводит к повторной генерации, а не к ошибке.
func TestGenerateRefreshToken_CollisionRetry(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := testUser(t, svc, "pw")

	gomock.InOrder(
		st.EXPECT().SaveSession(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists),
		st.EXPECT().SaveSession(gomock.Any(), gomock.Any()).Return(nil),
	)

	plain, _, err := svc.generateRefreshToken(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, plain)
}

func TestGenerateRefreshToken_CollisionExhausted(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := testUser(t, svc, "pw")

	st.EXPECT().SaveSession(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists).Times(5)

	_, _, err := svc.generateRefreshToken(context.Background(), user.ID)
	require.ErrorIs(t, err, ErrRefreshTokenCollision)
}

func TestHashRefreshToken_Deterministic(t *testing.T) {
	t.Parallel()

	a := hashRefreshToken("token-value")
	b := hashRefreshToken("token-value")
	c := hashRefreshToken("other-value")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	// В БД не должно попадать сырое значение.
	require.NotContains(t, a, "token-value")
}
