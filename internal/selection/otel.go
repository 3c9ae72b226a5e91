package selection

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/streetside/panoview/internal/selection"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
