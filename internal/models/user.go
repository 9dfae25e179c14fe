package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись сотрудника в системе.
//
// Поля Blocked и Hidden управляются подсистемой аутентификации:
//   - Blocked выставляется при обнаружении повторного использования
//     refresh-токена (replay) и запрещает любой вход до ручной разблокировки;
//   - Hidden исключает пользователя из списков, но не влияет на аутентификацию.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
	Blocked      bool
	Hidden       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
