package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider holds the auth-domain Prometheus collectors. HTTP-level metrics
// live in the transport middleware; these track decisions the service makes.
type Provider struct {
	loginOutcomes    *prometheus.CounterVec
	admissions       *prometheus.CounterVec
	revocationChecks *prometheus.CounterVec
	lockouts         prometheus.Counter
}

// Attach registers the auth collectors with the given registerer and returns
// a provider handle. A nil registerer uses the default registry.
func Attach(reg prometheus.Registerer) (*Provider, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	loginOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authcore",
		Subsystem: "auth",
		Name:      "login_outcomes_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"})

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authcore",
		Subsystem: "auth",
		Name:      "admission_decisions_total",
		Help:      "Rate limiter decisions partitioned by scope and decision.",
	}, []string{"scope", "decision"})

	revocationChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authcore",
		Subsystem: "auth",
		Name:      "revocation_checks_total",
		Help:      "Revocation store lookups partitioned by result.",
	}, []string{"result"})

	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authcore",
		Subsystem: "auth",
		Name:      "lockouts_total",
		Help:      "Accounts transitioned into the locked state.",
	})

	var err error
	if loginOutcomes, err = registerCounterVec(reg, loginOutcomes); err != nil {
		return nil, err
	}
	if admissions, err = registerCounterVec(reg, admissions); err != nil {
		return nil, err
	}
	if revocationChecks, err = registerCounterVec(reg, revocationChecks); err != nil {
		return nil, err
	}
	if err = reg.Register(lockouts); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				lockouts = existing
			} else {
				return nil, fmt.Errorf("existing lockout collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register lockout collector: %w", err)
		}
	}

	return &Provider{
		loginOutcomes:    loginOutcomes,
		admissions:       admissions,
		revocationChecks: revocationChecks,
		lockouts:         lockouts,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return nil, fmt.Errorf("register auth collector: %w", err)
	}
	return vec, nil
}

// ObserveLogin counts a login attempt by outcome, e.g. "success",
// "invalid_credentials", "locked", "requires_2fa", "rate_limited".
func (p *Provider) ObserveLogin(outcome string) {
	if p == nil {
		return
	}
	p.loginOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveAdmission counts a rate limiter decision for a scope.
func (p *Provider) ObserveAdmission(scope, decision string) {
	if p == nil {
		return
	}
	p.admissions.WithLabelValues(scope, decision).Inc()
}

// ObserveRevocationCheck counts a revocation lookup result, one of
// "revoked", "active", or "error".
func (p *Provider) ObserveRevocationCheck(result string) {
	if p == nil {
		return
	}
	p.revocationChecks.WithLabelValues(result).Inc()
}

// ObserveLockout counts an account entering the locked state.
func (p *Provider) ObserveLockout() {
	if p == nil {
		return
	}
	p.lockouts.Inc()
}
