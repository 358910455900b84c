package services

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for signup_submissions_total.
const (
	outcomeAccepted = "accepted"
	outcomeReplay   = "replay"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_submissions_total",
			Help: "Sign-up submissions by outcome (accepted, replay, or rejection kind).",
		},
		[]string{"outcome"},
	)

	auditFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_audit_append_failures_total",
			Help: "Audit entries that could not be written, by action.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, auditFailuresTotal)
}
