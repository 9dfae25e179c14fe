package storage

import (
	"context"
	"errors"
	"time"

	"github.com/avoronova/erp-auth-service/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/сессия).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/token_hash).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// UserByUsername находит пользователя по имени (регистрозависимо).
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdatePasswordHash сохраняет новый хэш пароля.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	// BlockUser выставляет blocked=true. Идемпотентна.
	BlockUser(ctx context.Context, id uuid.UUID) error
}

// SessionStorage выполняет операции над refresh-сессиями.
type SessionStorage interface {
	// SaveSession сохраняет новую сессию.
	SaveSession(ctx context.Context, session *models.Session) error
	// SessionByToken находит сессию по хэшу токена.
	SessionByToken(ctx context.Context, tokenHash string) (*models.Session, error)
	// MarkSessionUsed пытается погасить сессию (CAS: last_used_at IS NULL).
	// Возвращает:
	//
	//	(true, nil)  — сессия была непогашенной и погашена сейчас;
	//	(false, nil) — сессия существует, но уже была погашена ранее;
	//	(false, ErrNotFound) — сессия не найдена.
	MarkSessionUsed(ctx context.Context, tokenHash string, usedAt time.Time) (bool, error)
	// DeleteSession удаляет одну сессию. Отсутствие записи — не ошибка.
	DeleteSession(ctx context.Context, tokenHash string) error
	// DeleteSessionsByUser удаляет все сессии пользователя (смена пароля).
	DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error
	// DeleteExpiredSessions удаляет все просроченные сессии.
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
