package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "authkit", Name: "session_validations_total", Help: "Session validation outcomes."},
		[]string{"outcome"},
	)
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "authkit", Name: "logins_total", Help: "Login attempts by method and result."},
		[]string{"method", "result"},
	)
	Registrations = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "authkit", Name: "registrations_total", Help: "Accounts created."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "authkit", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "authkit", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SessionValidations)
	reg.MustRegister(Logins)
	reg.MustRegister(Registrations)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
