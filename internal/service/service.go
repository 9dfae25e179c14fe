// service содержит бизнес-логику подсистемы аутентификации:
// вход по логину/паролю, прозрачную проверку и ротацию токенов,
// обнаружение повторного использования refresh-токена (replay)
// с блокировкой учётной записи, logout и смену пароля.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Единственный источник истины о refresh-сессиях — БД; инвариант
//     однократного погашения обеспечивается атомарным условным UPDATE
//     (storage.MarkSessionUsed), а не чтением с последующей записью.
//   - Ошибки возвращаются сентинелами и далее маппятся транспортом
//     на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"github.com/avoronova/erp-auth-service/internal/cache"
	"github.com/avoronova/erp-auth-service/internal/config"
	"github.com/avoronova/erp-auth-service/internal/storage"
)

var (
	// ErrUserNotFound — пользователь с таким именем не существует.
	// Транспорт отдаёт тот же ответ, что и для ErrInvalidCredentials (HTTP 401),
	// чтобы не раскрывать существование имён; различие остаётся только в логах.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials — пароль не подошёл (вход или смена пароля).
	// Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountBlocked — учётная запись заблокирована: либо флаг уже стоял,
	// либо только что обнаружен replay refresh-токена. Транспорт: HTTP 403.
	ErrAccountBlocked = errors.New("account blocked")

	// ErrUnauthenticated — запрос не удалось аутентифицировать: токены
	// отсутствуют, refresh-сессия не найдена или просрочена. Отсутствие и
	// просрочка намеренно неразличимы в ответе. Транспорт: HTTP 401.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken — access-токен некорректен по формату/подписи/audience
	// или не содержит обязательных claims. Внутренняя ошибка кодека: наружу
	// не отдаётся, Authenticate переходит на refresh-ветку.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия access-токена истёк.
	// Внутренняя ошибка кодека, как и ErrInvalidToken.
	ErrTokenExpired = errors.New("token expired")

	// ErrEmptyPassword — новый пароль пустой (смена пароля).
	// Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный
	// refresh-токен (редкий случай коллизий при сохранении хэша в БД после
	// нескольких ретраев). Транспорт: HTTP 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")
)

// Service описывает бизнес-логику подсистемы аутентификации.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	scache  cache.SessionCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetSessionCache устанавливает кэш refresh-сессий (опционально).
func (s *Service) SetSessionCache(c cache.SessionCache) {
	s.scache = c
}
