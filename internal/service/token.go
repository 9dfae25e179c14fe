package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoronova/erp-auth-service/internal/cache"
	"github.com/avoronova/erp-auth-service/internal/models"
	"github.com/avoronova/erp-auth-service/internal/pkg/log"
	"github.com/avoronova/erp-auth-service/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type accessClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// generateAccessToken генерирует access-токен: HS256 JWT c claims
// {sub, iat, exp, aud, username, role}. Снимок username/role фиксируется
// на момент выпуска и живёт до истечения токена.
func (s *Service) generateAccessToken(ctx context.Context, user *models.User, now time.Time) (string, error) {
	const op = "service.token.generateAccessToken"

	lg := log.From(ctx)

	claims := accessClaims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// validateAccessToken валидирует access-токен и возвращает вшитую идентичность.
// Проверка «всё или ничего»: подпись, exp, aud и наличие обязательных claims;
// при любой неудаче ни один claim не считается достоверным.
func (s *Service) validateAccessToken(tokenStr string) (models.Identity, error) {
	const op = "service.token.validateAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &accessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Anonymous(), fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return models.Anonymous(), fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return models.Anonymous(), fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Anonymous(), fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	role := models.Role(claims.Role)
	if claims.Username == "" || !role.Valid() {
		return models.Anonymous(), fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return models.Identity{
		Authenticated: true,
		UserID:        uid,
		Username:      claims.Username,
		Role:          role,
	}, nil
}

// generateRefreshToken создает новую refresh-сессию и возвращает секрет.
// Секрет — 32 случайных байта в hex (64 символа); клиент хранит его как есть,
// в БД попадает только SHA-256 хэш. Коллизия хэша в БД крайне маловероятна,
// но обрабатывается повторной генерацией.
func (s *Service) generateRefreshToken(ctx context.Context, userID uuid.UUID) (string, time.Time, error) {
	const (
		op          = "service.token.generateRefreshToken"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
		}
		plain := hex.EncodeToString(b)
		hash := hashRefreshToken(plain)

		now := time.Now().UTC()
		expiresAt := now.Add(s.cfg.RefreshTokenTTL)
		session := &models.Session{
			TokenHash:  hash,
			UserID:     userID,
			CreatedAt:  now,
			ExpiresAt:  expiresAt,
			LastUsedAt: nil,
		}

		if err := s.storage.SaveSession(ctx, session); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}

			lg.Error("save_session_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
		}

		s.cacheSession(ctx, hash, session)

		return plain, expiresAt, nil
	}

	lg.Error("refresh_collision_exceeded",
		slog.String("op", op),
	)

	return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// cacheSession кладёт свежесозданную сессию в кэш (best-effort).
func (s *Service) cacheSession(ctx context.Context, hash string, session *models.Session) {
	if s.scache == nil {
		return
	}

	entry := &cache.SessionEntry{
		UserID:    session.UserID,
		Used:      false,
		ExpiresAt: session.ExpiresAt,
	}

	ttl := time.Until(session.ExpiresAt)
	if err := s.scache.Set(ctx, hash, entry, ttl); err != nil {
		log.From(ctx).Warn("session_cache_set_failed",
			slog.String("err", err.Error()),
		)
	}
}

// hashRefreshToken — хэш значения refresh-токена для хранения (sha256 → base64url).
func hashRefreshToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
