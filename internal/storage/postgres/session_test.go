package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avoronova/erp-auth-service/internal/models"
	"github.com/avoronova/erp-auth-service/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newSession(userID uuid.UUID, tokenHash string) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		TokenHash: tokenHash,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestIntegration_SaveSession_And_SessionByToken_OK(t *testing.T) {
	st, pool, cleanup := startPostgres(t)
	defer cleanup()

	u := newSeedUser("ivanov")
	seedUser(t, pool, u)

	sess := newSession(u.ID, "hash-1")
	require.NoError(t, st.SaveSession(context.Background(), sess))

	got, err := st.SessionByToken(context.Background(), sess.TokenHash)
	require.NoError(t, err)
	require.Equal(t, sess.TokenHash, got.TokenHash)
	require.Equal(t, u.ID, got.UserID)
	require.Nil(t, got.LastUsedAt)
	require.True(t, got.Redeemable(time.Now().UTC()))
	require.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestIntegration_SaveSession_Duplicate(t *testing.T) {
	st, pool, cleanup := startPostgres(t)
	defer cleanup()

	u := newSeedUser("ivanov")
	seedUser(t, pool, u)

	sess := newSession(u.ID, "hash-dup")
	require.NoError(t, st.SaveSession(context.Background(), sess))

	err := st.SaveSession(context.Background(), newSession(u.ID, "hash-dup"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_SessionByToken_NotFound(t *testing.T) {
	st, _, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.SessionByToken(context.Background(), "no-such-hash")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// Однократное погашение: первый вызов выигрывает, второй получает (false, nil).
func TestIntegration_MarkSessionUsed_OnceOnly(t *testing.T) {
	st, pool, cleanup := startPostgres(t)
	defer cleanup()

	u := newSeedUser("ivanov")
	seedUser(t, pool, u)

	sess := newSession(u.ID, "hash-redeem")
	require.NoError(t, st.SaveSession(context.Background(), sess))

	now := time.Now().UTC()

	won, err := st.MarkSessionUsed(context.Background(), sess.TokenHash, now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = st.MarkSessionUsed(context.Background(), sess.TokenHash, now)
	require.NoError(t, err)
	require.False(t, won)

	got, err := st.SessionByToken(context.Background(), sess.TokenHash)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	require.False(t, got.Redeemable(now))
	require.WithinDuration(t, now, *got.LastUsedAt, time.Second)
}

func TestIntegration_MarkSessionUsed_NotFound(t *testing.T) {
	st, _, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.MarkSessionUsed(context.Background(), "no-such-hash", time.Now().UTC())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// Конкурентное погашение одной сессии: победитель ровно один,
// остальные получают (false, nil) — это фундамент защиты от replay.
func TestIntegration_MarkSessionUsed_Concurrent_SingleWinner(t *testing.T) {
	st, pool, cleanup := startPostgres(t)
	defer cleanup()

	u := newSeedUser("ivanov")
	seedUser(t, pool, u)

	sess := newSession(u.ID, "hash-race")
	require.NoError(t, st.SaveSession(context.Background(), sess))

	const workers = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			won, err := st.MarkSessionUsed(context.Background(), sess.TokenHash, time.Now().UTC())
			require.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	close(start)
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestIntegration_DeleteSession_Idempotent(t *testing.T) {
	st, pool, cleanup := startPostgres(t)
	defer cleanup()

	u := newSeedUser("ivanov")
	seedUser(t, pool, u)

	sess := newSession(u.ID, "hash-del")
	require.NoError(t, st.SaveSession(context.Background(), sess))

	require.NoError(t, st.DeleteSession(context.Background(), sess.TokenHash))

	_, err := st.SessionByToken(context.Background(), sess.TokenHash)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Повторное удаление — не ошибка.
	require.NoError(t, st.DeleteSession(context.Background(), sess.TokenHash))
}

func TestIntegration_DeleteSessionsByUser(t *testing.T) {
	st, pool, cleanup := startPostgres(t)
	defer cleanup()

	a := newSeedUser("ivanov")
	b := newSeedUser("petrova")
	seedUser(t, pool, a)
	seedUser(t, pool, b)

	require.NoError(t, st.SaveSession(context.Background(), newSession(a.ID, "a-1")))
	require.NoError(t, st.SaveSession(context.Background(), newSession(a.ID, "a-2")))
	require.NoError(t, st.SaveSession(context.Background(), newSession(b.ID, "b-1")))

	require.NoError(t, st.DeleteSessionsByUser(context.Background(), a.ID))

	_, err := st.SessionByToken(context.Background(), "a-1")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = st.SessionByToken(context.Background(), "a-2")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Чужие сессии не задеты.
	_, err = st.SessionByToken(context.Background(), "b-1")
	require.NoError(t, err)
}

func TestIntegration_DeleteExpiredSessions(t *testing.T) {
	st, pool, cleanup := startPostgres(t)
	defer cleanup()

	u := newSeedUser("ivanov")
	seedUser(t, pool, u)

	now := time.Now().UTC()

	expired := newSession(u.ID, "hash-expired")
	expired.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, st.SaveSession(context.Background(), expired))

	alive := newSession(u.ID, "hash-alive")
	require.NoError(t, st.SaveSession(context.Background(), alive))

	require.NoError(t, st.DeleteExpiredSessions(context.Background(), now))

	_, err := st.SessionByToken(context.Background(), "hash-expired")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.SessionByToken(context.Background(), "hash-alive")
	require.NoError(t, err)
}
