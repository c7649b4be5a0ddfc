package services

import (
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// Shared fixtures for the package. The metrics collector registers with the
// default Prometheus registry, so the package holds exactly one instance.
var (
	testLogger  = logging.NewStructuredLogger("test", "0.0.0", logging.ErrorLevel)
	testMetrics = metrics.NewCollector("services_test")
)
