package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/auth-gateway/internal/infra/config"
)

// Provider holds the business-level metric collectors. Request-level metrics
// live in the HTTP middleware.
type Provider struct {
	loginOutcomes *prometheus.CounterVec
}

// Attach registers the business metric collectors with the default registry
// and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	outcomes := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authgw",
		Name:      "login_attempts_total",
		Help:      "Login attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	return &Provider{loginOutcomes: outcomes}, nil
}

// ObserveLogin records a login attempt outcome for the given provider.
func (p *Provider) ObserveLogin(provider, outcome string) {
	if p == nil || p.loginOutcomes == nil {
		return
	}
	p.loginOutcomes.WithLabelValues(provider, outcome).Inc()
}
