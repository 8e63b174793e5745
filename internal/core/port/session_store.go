package port

import (
	"context"
	"time"

	"github.com/arklim/auth-gateway/internal/core/domain"
)

// SessionStore persists sessions keyed by token hash. Implementations must
// keep expired records readable for a retention window so validation can
// distinguish an expired session from an unknown one; revoked sessions may be
// removed immediately.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// Extend moves the expiry forward for a rolling session.
	Extend(ctx context.Context, tokenHash string, expiresAt, lastSeen time.Time) error
	Revoke(ctx context.Context, tokenHash, reason string, at time.Time) error
	// RevokeAllForUser revokes every live session of the user and reports how
	// many were affected.
	RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int, error)
	ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.Session, error)
	// PurgeExpired reclaims storage for records whose retention window has
	// passed. Validation correctness never depends on it running.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int, error)
}
