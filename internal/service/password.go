package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword хэширует пароль с помощью bcrypt (соль встроена в результат).
func (s *Service) hashPassword(password string) (string, error) {
	const op = "service.password.hashPassword"

	cost := s.cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
// Возвращает false и для некорректного хэша — без паник и без ошибки.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// passwordNeedsRehash сообщает, был ли хэш получен с cost ниже текущего
// сконфигурированного. Используется для ленивого апгрейда хэшей при входе:
// проверка выполняется только после успешного checkPassword, поэтому
// некорректный хэш сюда не попадает, но на всякий случай отвечаем false.
func (s *Service) passwordNeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}

	want := s.cfg.BcryptCost
	if want < bcrypt.MinCost || want > bcrypt.MaxCost {
		want = bcrypt.DefaultCost
	}

	return cost < want
}
