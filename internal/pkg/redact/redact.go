// redact содержит хелперы для безопасного логирования чувствительных значений.
package redact

// Username маскирует имя пользователя, оставляя первые два символа.
func Username(s string) string {
	if len(s) <= 2 {
		return "***"
	}

	return s[:2] + "***"
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
