package models

import "github.com/google/uuid"

// Identity — request-scoped результат аутентификации.
//
// Формируется middleware на каждый запрос и передаётся дальше по стеку
// через context; guard'ы и бизнес-хендлеры читают только её и никогда
// не работают с токенами напрямую.
type Identity struct {
	Authenticated bool
	UserID        uuid.UUID
	Username      string
	Role          Role
}

// Anonymous — идентичность неаутентифицированного запроса.
func Anonymous() Identity {
	return Identity{}
}
