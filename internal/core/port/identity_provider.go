package port

import (
	"context"

	"github.com/arklim/auth-gateway/internal/core/domain"
)

// CallbackPayload carries the parameters an external provider sent back to
// the redirect endpoint. Extra holds provider-specific fields verbatim.
type CallbackPayload struct {
	Code        string
	State       string
	RedirectURI string
	Extra       map[string]string
}

// IdentityProvider normalizes one external provider's callback into a
// canonical identity claim. Implementations must honor the caller context for
// cancellation and never fail on malformed profile claims; whatever claims
// are present come back as-is.
type IdentityProvider interface {
	Name() string
	Exchange(ctx context.Context, payload CallbackPayload) (domain.IdentityClaim, error)
}
