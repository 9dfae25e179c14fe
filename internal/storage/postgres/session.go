package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avoronova/erp-auth-service/internal/models"
	"github.com/avoronova/erp-auth-service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SaveSession сохраняет новую refresh-сессию в БД.
func (s *Storage) SaveSession(ctx context.Context, session *models.Session) error {
	const op = "storage.postgres.SaveSession"

	query := `
        INSERT INTO sessions(token_hash, user_id, created_at, expires_at, last_used_at)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err := s.db.Exec(ctx, query,
		session.TokenHash,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastUsedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SessionByToken находит сессию по хэшу токена.
func (s *Storage) SessionByToken(ctx context.Context, tokenHash string) (*models.Session, error) {
	const op = "storage.postgres.SessionByToken"

	query := `
        SELECT token_hash, user_id, created_at, expires_at, last_used_at
        FROM sessions
        WHERE token_hash = $1
    `

	var session models.Session
	err := s.db.QueryRow(ctx, query, tokenHash).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastUsedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &session, nil
}

// MarkSessionUsed пытается погасить сессию, если она ещё не была погашена.
// Один атомарный UPDATE с условием last_used_at IS NULL закрывает гонку
// двух конкурентных погашений: выиграть может ровно один запрос.
// Возвращает:
//
//	(true, nil)  — сессия была непогашенной и погашена сейчас;
//	(false, nil) — сессия существует, но уже была погашена;
//	(false, ErrNotFound) — сессия не найдена.
func (s *Storage) MarkSessionUsed(ctx context.Context, tokenHash string, usedAt time.Time) (bool, error) {
	const op = "storage.postgres.MarkSessionUsed"

	const upd = `
		UPDATE sessions
		SET last_used_at = $2
		WHERE token_hash = $1 AND last_used_at IS NULL
		RETURNING user_id
	`

	var userID string
	err := s.db.QueryRow(ctx, upd, tokenHash, usedAt).Scan(&userID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `
		SELECT last_used_at
		FROM sessions
		WHERE token_hash = $1
	`

	var lastUsed *time.Time
	err = s.db.QueryRow(ctx, sel, tokenHash).Scan(&lastUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// DeleteSession удаляет одну сессию. Отсутствие записи — не ошибка (logout идемпотентен).
func (s *Storage) DeleteSession(ctx context.Context, tokenHash string) error {
	const op = "storage.postgres.DeleteSession"

	query := `
        DELETE FROM sessions
        WHERE token_hash = $1
    `

	if _, err := s.db.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteSessionsByUser удаляет все сессии пользователя.
func (s *Storage) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.postgres.DeleteSessionsByUser"

	query := `
        DELETE FROM sessions
        WHERE user_id = $1
    `

	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredSessions удаляет все просроченные сессии.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredSessions"

	query := `
        DELETE FROM sessions
        WHERE expires_at <= $1
    `

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
