package models

import (
	"time"

	"github.com/google/uuid"
)

// Session — запись о выданном refresh-токене.
//
// Инварианты:
//   - LastUsedAt == nil тогда и только тогда, когда токен ещё ни разу
//     не был погашен;
//   - токен пригоден к погашению, если now < ExpiresAt и LastUsedAt == nil;
//   - погашение возможно ровно один раз; любая последующая попытка — replay.
//
// В БД хранится только SHA-256 хэш значения токена (TokenHash — первичный ключ);
// сам секрет существует только у клиента.
type Session struct {
	TokenHash  string
	UserID     uuid.UUID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt *time.Time
}

// Redeemable сообщает, пригодна ли сессия к погашению в момент now.
func (s *Session) Redeemable(now time.Time) bool {
	return now.Before(s.ExpiresAt) && s.LastUsedAt == nil
}
