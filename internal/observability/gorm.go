package observability

import (
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// InstrumentGORM registers the OpenTelemetry tracing plugin on db so every
// query becomes a child span of the request or pipeline stage that issued
// it. Bound variables are left out of spans: they carry customer emails and
// phone numbers. Metrics stay with Prometheus.
func InstrumentGORM(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(
		tracing.WithoutMetrics(),
		tracing.WithoutQueryVariables(),
	))
}
