package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoronova/erp-auth-service/internal/models"
	"github.com/avoronova/erp-auth-service/internal/pkg/log"
	"github.com/avoronova/erp-auth-service/internal/pkg/redact"
	"github.com/avoronova/erp-auth-service/internal/storage"

	"github.com/google/uuid"
)

// Login выполняет вход по имени пользователя и паролю.
//
// Порядок проверок:
//  1. поиск пользователя (ErrUserNotFound);
//  2. проверка пароля (ErrInvalidCredentials);
//  3. ленивый апгрейд хэша — best-effort, неудача не влияет на результат входа;
//  4. флаг blocked (ErrAccountBlocked) — до выпуска каких-либо токенов;
//  5. выпуск пары access+refresh.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, *models.TokenPair, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	user, err := s.storage.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("login_unknown_user",
				slog.String("op", op),
				slog.String("username", redact.Username(username)),
			)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Warn("login_bad_password",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if s.passwordNeedsRehash(user.PasswordHash) {
		if newHash, err := s.hashPassword(password); err == nil {
			if err := s.storage.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
				lg.Warn("password_rehash_failed",
					slog.String("op", op),
					slog.String("user_id", user.ID.String()),
					slog.String("err", err.Error()),
				)
			} else {
				user.PasswordHash = newHash
			}
		}
	}

	if user.Blocked {
		lg.Warn("login_blocked_account",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAccountBlocked)
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, pair, nil
}

// Authenticate — операция, которую middleware вызывает на каждый запрос.
//
// Быстрый путь: валидный access-токен даёт идентичность без единого
// обращения к хранилищу и без выпуска новых токенов.
//
// Медленный путь (access-токен отсутствует/невалиден/просрочен):
// погашение refresh-сессии с ротацией. Повторное предъявление уже
// погашенного токена — доказательство кражи или дублирования, поэтому
// учётная запись блокируется целиком (ErrAccountBlocked), а не получает
// мягкий отказ. Проигрыш CAS-гонки при конкурентном погашении трактуется
// так же, как replay, обнаруженный чтением.
//
// Возвращает идентичность и, если произошла ротация, новую пару токенов.
func (s *Service) Authenticate(ctx context.Context, accessToken, refreshToken string) (models.Identity, *models.TokenPair, error) {
	const op = "service.auth.Authenticate"

	if accessToken != "" {
		if identity, err := s.validateAccessToken(accessToken); err == nil {
			return identity, nil, nil
		}
		// Причина отказа кодека (просрочка/подпись/audience/клеймы) наружу
		// не различается: все случаи уходят на refresh-ветку.
	}

	if refreshToken == "" {
		return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	lg := log.From(ctx)
	hash := hashRefreshToken(refreshToken)
	now := time.Now().UTC()

	// Кэш: used=1 пишется только по авторитетному результату БД, поэтому
	// попадание с used=1 — достоверный replay. Остальные случаи решает БД.
	if s.scache != nil {
		if entry, ok, err := s.scache.Get(ctx, hash); err != nil {
			lg.Warn("session_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok {
			if entry.Used {
				return s.blockOnReplay(ctx, op, entry.UserID)
			}

			if !now.Before(entry.ExpiresAt) {
				return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
			}
		}
	}

	session, err := s.storage.SessionByToken(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Незнакомый токен и просроченный токен неразличимы в ответе.
			lg.Warn("refresh_lookup_not_found",
				slog.String("op", op),
			)
			return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
		}

		return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, err)
	}

	if !now.Before(session.ExpiresAt) {
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", session.UserID.String()),
		)
		return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	if session.LastUsedAt != nil {
		return s.blockOnReplay(ctx, op, session.UserID)
	}

	won, err := s.storage.MarkSessionUsed(ctx, hash, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Сессию успели удалить (logout/смена пароля) — просто неаутентифицирован.
			return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
		}

		return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, err)
	}
	if !won {
		// Ноль затронутых строк: конкурентное погашение выиграло раньше нас.
		return s.blockOnReplay(ctx, op, session.UserID)
	}

	if s.scache != nil {
		if err := s.scache.MarkUsed(ctx, hash); err != nil {
			lg.Warn("session_cache_mark_used_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	user, err := s.storage.UserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
		}

		return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.Blocked {
		lg.Warn("refresh_blocked_account",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrAccountBlocked)
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, err)
	}

	identity := models.Identity{
		Authenticated: true,
		UserID:        user.ID,
		Username:      user.Username,
		Role:          user.Role,
	}

	return identity, pair, nil
}

// blockOnReplay — общий исход для повторного погашения: блокировка
// учётной записи и ErrAccountBlocked. Неудача записи флага логируется,
// но ответ остаётся ErrAccountBlocked — мягче делать нельзя.
func (s *Service) blockOnReplay(ctx context.Context, op string, userID uuid.UUID) (models.Identity, *models.TokenPair, error) {
	lg := log.From(ctx)

	lg.Warn("refresh_replay_detected",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)

	if err := s.storage.BlockUser(ctx, userID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		lg.Error("block_user_failed",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
	}

	return models.Anonymous(), nil, fmt.Errorf("%s: %w", op, ErrAccountBlocked)
}

// Logout удаляет refresh-сессию. Идемпотентен: отсутствующий или уже
// недействительный токен не считается ошибкой.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	if refreshToken == "" {
		return nil
	}

	hash := hashRefreshToken(refreshToken)

	if err := s.storage.DeleteSession(ctx, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.scache != nil {
		if err := s.scache.Delete(ctx, hash); err != nil {
			log.From(ctx).Warn("session_cache_delete_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return nil
}

// ChangePassword меняет пароль и удаляет все refresh-сессии пользователя:
// преднамеренная инвалидация всех активных входов, а не только текущего.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.auth.ChangePassword"

	if newPassword == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, oldPassword) {
		log.From(ctx).Warn("change_password_bad_old",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	newHash, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteSessionsByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// issueTokenPair выпускает новую пару access+refresh токенов.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plain, refreshExpiresAt, err := s.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     plain,
		AccessExpiresAt:  now.Add(s.cfg.AccessTokenTTL),
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}
