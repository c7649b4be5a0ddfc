package services

import (
	"context"
	"sort"

	"demand-pipeline/internal/models"
	"demand-pipeline/pkg/logging"
)

// Rolling spans in hourly samples.
const (
	Span3h   = 3
	Span24h  = 24
	Span168h = 168
)

// RollingFeatureCalculator derives trailing statistics and lag features
// from a region's history. The history is expected to already contain the
// current reading as its tail.
type RollingFeatureCalculator struct {
	defaultDemand float64
	logger        *logging.StructuredLogger
}

// NewRollingFeatureCalculator creates a calculator. defaultDemand is used
// only when the current reading has no demand value and no prior history
// exists for its region.
func NewRollingFeatureCalculator(defaultDemand float64, logger *logging.StructuredLogger) *RollingFeatureCalculator {
	return &RollingFeatureCalculator{
		defaultDemand: defaultDemand,
		logger:        logger,
	}
}

// Compute calculates rolling statistics for the current reading given its
// region's history. Insufficient history never fails: span and lag fields
// fall back to the current demand so short histories degrade to "assume no
// change" instead of a discontinuous zero.
func (c *RollingFeatureCalculator) Compute(ctx context.Context, history []*models.Reading, current *models.Reading) models.RollingFeatures {
	demand := make([]float64, 0, len(history))
	for _, reading := range history {
		if v, ok := reading.DemandValue(); ok {
			demand = append(demand, v)
		}
	}

	fallback, hasCurrent := current.DemandValue()
	if !hasCurrent && len(demand) > 0 {
		// Demand gap with history: short-span fields assume no change from
		// the most recent present value.
		fallback = demand[len(demand)-1]
	}

	if len(demand) == 0 {
		if !hasCurrent {
			// Data-quality degradation: nothing to compute from at all.
			fallback = c.defaultDemand
			c.logger.Warn(ctx, "[ROLLING_NO_DATA] Reading has no demand and no history, using default", logging.Fields{
				"region":       current.Region,
				"timestamp_ms": current.TimestampMs,
				"default":      c.defaultDemand,
			})
		}
		return uniformFeatures(fallback)
	}

	n := len(demand)
	features := models.RollingFeatures{
		FullMean:   mean(demand),
		FullMedian: median(demand),
		Mean3:      mean(trailing(demand, Span3h)),
		Median3:    median(trailing(demand, Span3h)),
		Mean24:     mean(trailing(demand, Span24h)),
		Median24:   median(trailing(demand, Span24h)),
		Mean168:    mean(trailing(demand, Span168h)),
		Median168:  median(trailing(demand, Span168h)),
		Lag1h:      fallback,
		Lag24h:     fallback,
		Lag168h:    fallback,
	}

	// demand[n-1] is the current reading itself; lag-k reaches k positions
	// before it.
	if n >= 2 {
		features.Lag1h = demand[n-2]
	}
	if n >= 25 {
		features.Lag24h = demand[n-25]
	}
	if n >= 169 {
		features.Lag168h = demand[n-169]
	}

	return features
}

// uniformFeatures fills every statistical field with a single value.
func uniformFeatures(v float64) models.RollingFeatures {
	return models.RollingFeatures{
		FullMean:   v,
		FullMedian: v,
		Mean3:      v,
		Median3:    v,
		Mean24:     v,
		Median24:   v,
		Mean168:    v,
		Median168:  v,
		Lag1h:      v,
		Lag24h:     v,
		Lag168h:    v,
	}
}

// trailing returns the last min(len(values), span) elements.
func trailing(values []float64, span int) []float64 {
	if len(values) <= span {
		return values
	}
	return values[len(values)-span:]
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median uses the average-of-two-middle-elements definition for
// even-length input.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
