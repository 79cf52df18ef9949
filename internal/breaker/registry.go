// Package breaker provides the per-tenant and global circuit breakers
// that guard outbound calls to the AST extraction provider: a
// TenantRegistry gives each tenant its own failure count (so one noisy
// tenant's rate limiting can't open the breaker for everyone else), and
// GlobalProviderBreaker additionally trips on provider-wide network
// failures regardless of which tenant triggered them. Grounded on
// circuit_breaker.py's CircuitBreaker/TenantCircuitBreakerRegistry/
// GlobalProviderBreaker.
package breaker

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/R3E-Network/graphctl/infrastructure/logging"
	"github.com/R3E-Network/graphctl/infrastructure/resilience"
)

// DefaultTenantRegistrySize bounds how many tenants can have a live
// breaker at once; the least-recently-used tenant's breaker is evicted
// (and recreated fresh on its next call) once the registry is full,
// trading perfect historical failure counts for bounded memory in a
// multi-tenant deployment with a long tail of rarely-active tenants.
const DefaultTenantRegistrySize = 4096

// TenantRegistry hands out one resilience.CircuitBreaker per tenant,
// creating it lazily on first use.
type TenantRegistry struct {
	cache  *lru.Cache[string, *resilience.CircuitBreaker]
	config resilience.Config
	logger *logging.Logger
}

// NewTenantRegistry builds a registry capped at size entries, using cfg
// as the breaker configuration for every tenant.
func NewTenantRegistry(size int, cfg resilience.Config, logger *logging.Logger) (*TenantRegistry, error) {
	if size <= 0 {
		size = DefaultTenantRegistrySize
	}
	cache, err := lru.New[string, *resilience.CircuitBreaker](size)
	if err != nil {
		return nil, err
	}
	return &TenantRegistry{cache: cache, config: cfg, logger: logger}, nil
}

// Get returns the breaker for tenantID, creating it if this is the
// tenant's first call.
func (r *TenantRegistry) Get(tenantID string) *resilience.CircuitBreaker {
	if cb, ok := r.cache.Get(tenantID); ok {
		return cb
	}
	cb := resilience.New(r.config)
	r.cache.Add(tenantID, cb)
	return cb
}

// Len reports how many tenants currently have a live breaker.
func (r *TenantRegistry) Len() int { return r.cache.Len() }
