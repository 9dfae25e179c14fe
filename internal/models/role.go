package models

// Role — роль пользователя. Набор ролей фиксирован.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// AllRoles — полный набор ролей; используется guard'ами как значение по умолчанию.
var AllRoles = []Role{RoleAdmin, RoleManager, RoleEmployee}

// Valid сообщает, входит ли роль в фиксированный набор.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}

	return false
}
