package breaker

import (
	"context"
	"errors"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/R3E-Network/graphctl/infrastructure/resilience"
)

// rateLimitPattern matches provider rate-limit signaling that must stay
// scoped to the offending tenant's own breaker rather than tripping the
// shared network breaker for every tenant, grounded on
// circuit_breaker.py's is_provider_rate_limit.
var rateLimitPattern = regexp.MustCompile(`(?i)\b(429|rate limit|resource_exhausted|quota exceeded)\b`)

// IsProviderRateLimit reports whether err looks like an upstream
// rate-limit/quota rejection (HTTP 429, "RESOURCE_EXHAUSTED", "quota
// exceeded"). These are per-tenant failures, never fed to the global
// breaker.
func IsProviderRateLimit(err error) bool {
	if err == nil {
		return false
	}
	return rateLimitPattern.MatchString(err.Error())
}

// IsGlobalFailure reports whether err is network-class: connection
// refused, DNS/timeout, or any other os.SyscallError/net.Error — the only
// class of failure allowed to trip GlobalProviderBreaker, per
// SPEC_FULL.md section 4.3. Provider rate-limit errors are explicitly
// excluded even though some carry network-looking phrasing.
func IsGlobalFailure(err error) bool {
	if err == nil || IsProviderRateLimit(err) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var syscallErr *os.SyscallError
	if errors.As(err, &syscallErr) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{"connection refused", "connection reset", "no such host", "network is unreachable", "broken pipe", "i/o timeout"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// Classifier decides whether an error should count against the global
// breaker.
type Classifier func(error) bool

// GlobalProviderBreaker wraps a TenantRegistry with one additional
// breaker that trips only on network-class failures (IsGlobalFailure),
// shared across every tenant. Grounded on circuit_breaker.py's
// GlobalProviderBreaker.
type GlobalProviderBreaker struct {
	registry   *TenantRegistry
	global     *resilience.CircuitBreaker
	classifier Classifier
}

// NewGlobalProviderBreaker builds a GlobalProviderBreaker backed by
// registry for per-tenant state and globalCfg for the shared network
// breaker. A nil classifier defaults to IsGlobalFailure.
func NewGlobalProviderBreaker(registry *TenantRegistry, globalCfg resilience.Config, classifier Classifier) *GlobalProviderBreaker {
	if classifier == nil {
		classifier = IsGlobalFailure
	}
	return &GlobalProviderBreaker{
		registry:   registry,
		global:     resilience.New(globalCfg),
		classifier: classifier,
	}
}

// GlobalState reports the shared network breaker's state.
func (g *GlobalProviderBreaker) GlobalState() resilience.State {
	return g.global.State()
}

// Call executes fn through tenantID's own breaker, additionally feeding
// the outcome into the shared global breaker when the failure is
// network-class. While the global breaker is open, every tenant is
// rejected immediately without invoking fn or touching the tenant's own
// breaker state.
func (g *GlobalProviderBreaker) Call(ctx context.Context, tenantID string, fn func() error) error {
	if g.global.State() == resilience.StateOpen {
		return resilience.ErrCircuitOpen
	}

	tenantCB := g.registry.Get(tenantID)
	callErr := tenantCB.Execute(ctx, fn)

	switch {
	case callErr == nil:
		_ = g.global.Execute(ctx, func() error { return nil })
	case g.classifier(callErr):
		_ = g.global.Execute(ctx, func() error { return callErr })
	}

	return callErr
}
