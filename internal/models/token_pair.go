package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе и при ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — случайный секрет (hex, 64 символа), который клиент
//     предъявляет для выпуска новой пары; на сервере хранится только его хэш;
//   - AccessExpiresAt / RefreshExpiresAt — моменты истечения (UTC), по ним
//     транспорт выставляет max-age соответствующих cookie.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
