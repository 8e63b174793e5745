// Package identity implements the external identity provider adapters: each
// adapter exchanges a provider callback for a normalized identity claim.
package identity

import (
	"errors"
	"sort"

	"github.com/arklim/auth-gateway/internal/core/port"
)

// Provider names understood by the registry.
const (
	ProviderTwitter  = "twitter"
	ProviderFacebook = "facebook"
	ProviderGitHub   = "github"
	ProviderGoogle   = "google"
	ProviderYandex   = "yandex"
	ProviderVK       = "vk"
)

var (
	// ErrProviderUnreachable indicates a network failure or timeout talking to
	// the external identity service. The caller may retry with backoff; the
	// adapter itself never retries.
	ErrProviderUnreachable = errors.New("identity: provider unreachable")
	// ErrProviderRejected indicates the external service reported an invalid
	// or expired authorization code.
	ErrProviderRejected = errors.New("identity: provider rejected exchange")
	// ErrUnknownProvider indicates no adapter is registered under the name.
	ErrUnknownProvider = errors.New("identity: unknown provider")
)

// Registry dispatches to the adapter registered under a provider name.
type Registry struct {
	providers map[string]port.IdentityProvider
}

// NewRegistry constructs a registry holding the supplied adapters.
func NewRegistry(providers ...port.IdentityProvider) *Registry {
	r := &Registry{providers: make(map[string]port.IdentityProvider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the adapter for its provider name.
func (r *Registry) Register(p port.IdentityProvider) {
	if p == nil || p.Name() == "" {
		return
	}
	r.providers[p.Name()] = p
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (port.IdentityProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
