package port

import (
	"context"

	"github.com/arklim/auth-gateway/internal/core/domain"
)

// EventPublisher emits authentication lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
}
