package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_And_Check(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	hash := mustHashPW(t, svc, "Secret1!")

	require.True(t, checkPassword(hash, "Secret1!"))
	require.False(t, checkPassword(hash, "secret1!"))
	require.False(t, checkPassword(hash, ""))
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	t.Parallel()

	require.False(t, checkPassword("not-a-bcrypt-hash", "pw"))
	require.False(t, checkPassword("", "pw"))
}

// Некорректный cost в конфигурации тихо заменяется на DefaultCost.
func TestHashPassword_BadCostFallsBackToDefault(t *testing.T) {
	t.Parallel()

	cfg := testCfg()
	cfg.BcryptCost = 99
	svc := New(nil, cfg)

	hash, err := svc.hashPassword("pw")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)
}

func TestPasswordNeedsRehash(t *testing.T) {
	t.Parallel()

	cfg := testCfg()
	cfg.BcryptCost = bcrypt.MinCost + 2
	svc := New(nil, cfg)

	low, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.True(t, svc.passwordNeedsRehash(string(low)))

	exact, err := bcrypt.GenerateFromPassword([]byte("pw"), cfg.BcryptCost)
	require.NoError(t, err)
	require.False(t, svc.passwordNeedsRehash(string(exact)))

	require.False(t, svc.passwordNeedsRehash("garbage"))
}
