package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avoronova/erp-auth-service/internal/models"
	"github.com/avoronova/erp-auth-service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserByUsername находит пользователя по имени.
// Сравнение регистрозависимое: колонка username — обычный TEXT с уникальным индексом.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.UserByUsername"

	query := `
		SELECT id, username, password_hash, role, blocked, hidden, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	return s.scanUser(ctx, op, query, username)
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
		SELECT id, username, password_hash, role, blocked, hidden, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return s.scanUser(ctx, op, query, id)
}

func (s *Storage) scanUser(ctx context.Context, op, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.Blocked,
		&user.Hidden,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

// UpdatePasswordHash сохраняет новый хэш пароля.
func (s *Storage) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	const op = "storage.postgres.UpdatePasswordHash"

	query := `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// BlockUser выставляет blocked=true. Повторный вызов — no-op.
func (s *Storage) BlockUser(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.BlockUser"

	query := `
		UPDATE users
		SET blocked = TRUE, updated_at = $2
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
