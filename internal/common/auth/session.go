// internal/common/auth/session.go
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "nearserve/internal/common/errors"
	"nearserve/internal/common/logger"
	"nearserve/internal/models"
)

// SessionResolver resolves bearer tokens to sessions. Sessions are written by
// the platform auth flow; this service reads them cache-aside through Redis.
type SessionResolver struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewSessionResolver(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *SessionResolver {
	return &SessionResolver{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "auth"}),
	}
}

func sessionCacheKey(token string) string {
	return "session:" + token
}

// Resolve returns the session for a token, or an UNAUTHENTICATED error when
// the token is unknown or expired.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, apperrors.NewUnauthenticatedError("missing session token")
	}

	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, sessionCacheKey(token)).Result(); err == nil {
			var session models.Session
			if err := json.Unmarshal([]byte(cached), &session); err == nil {
				if session.IsExpired() {
					return nil, apperrors.NewUnauthenticatedError("session expired")
				}
				return &session, nil
			}
		}
	}

	var session models.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.user_id, s.token, u.role, s.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1`,
		token,
	).Scan(&session.ID, &session.UserID, &session.Token, &session.Role,
		&session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewUnauthenticatedError("unknown session token")
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("session lookup: %w", err))
	}

	if session.IsExpired() {
		return nil, apperrors.NewUnauthenticatedError("session expired")
	}

	if r.redis != nil {
		ttl := r.cacheTTL
		if until := time.Until(session.ExpiresAt); until < ttl {
			ttl = until
		}
		if data, err := json.Marshal(&session); err == nil && ttl > 0 {
			if err := r.redis.Set(ctx, sessionCacheKey(token), data, ttl).Err(); err != nil {
				r.logger.Warn("session cache set failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}

	return &session, nil
}
