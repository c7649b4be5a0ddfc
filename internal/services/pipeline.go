package services

import (
	"context"
	"fmt"
	"time"

	"demand-pipeline/internal/models"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// Sink receives enriched readings from the pipeline. Implementations
// include the Kafka output topic writer and the feature store sink.
type Sink interface {
	Emit(ctx context.Context, reading *models.EnrichedReading) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, reading *models.EnrichedReading) error

func (f SinkFunc) Emit(ctx context.Context, reading *models.EnrichedReading) error {
	return f(ctx, reading)
}

// FeaturePipeline composes the feature engine per incoming reading, in a
// fixed order: touch liveness, encode time features, upsert into the window
// store, compute rolling features, emit downstream. Upsert happens before
// the rolling computation so the current reading contributes to its own
// trailing window.
//
// The pipeline processes one record at a time; it owns the window store
// exclusively and must not be called from concurrent goroutines.
type FeaturePipeline struct {
	encoder *TimeFeatureEncoder
	store   *WindowStore
	rolling *RollingFeatureCalculator
	monitor *LivenessMonitor
	sinks   []Sink
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFeaturePipeline creates a pipeline driver. The monitor may be nil for
// live mode, where idle shutdown is disabled.
func NewFeaturePipeline(
	encoder *TimeFeatureEncoder,
	store *WindowStore,
	rolling *RollingFeatureCalculator,
	monitor *LivenessMonitor,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	sinks ...Sink,
) *FeaturePipeline {
	return &FeaturePipeline{
		encoder: encoder,
		store:   store,
		rolling: rolling,
		monitor: monitor,
		sinks:   sinks,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ProcessRaw decodes and processes one raw record. Structurally invalid
// records are rejected with a *models.ValidationError after being logged
// with enough context for offline inspection; the caller decides retry or
// dead-letter policy.
func (p *FeaturePipeline) ProcessRaw(ctx context.Context, data []byte) (*models.EnrichedReading, error) {
	reading, err := models.ParseReading(data)
	if err != nil {
		p.metrics.RecordPipelineError("invalid_record")
		p.logger.Warn(ctx, "[PIPELINE_REJECT] Rejected malformed record", logging.Fields{
			"error":   err.Error(),
			"payload": string(data),
		})
		return nil, err
	}
	return p.Process(ctx, reading)
}

// Process runs one reading through the full enrichment path and emits the
// result to every sink. Missing or insufficient historical data never
// fails; only sink errors are returned.
func (p *FeaturePipeline) Process(ctx context.Context, reading *models.Reading) (*models.EnrichedReading, error) {
	start := time.Now()

	if p.monitor != nil {
		p.monitor.Touch()
	}

	enriched := &models.EnrichedReading{Reading: *reading}
	enriched.TimeFeatures = p.encoder.Encode(reading)

	p.store.Upsert(reading)
	history := p.store.History(reading.Region)
	enriched.RollingFeatures = p.rolling.Compute(ctx, history, reading)

	for _, sink := range p.sinks {
		if err := sink.Emit(ctx, enriched); err != nil {
			p.metrics.RecordPipelineError("sink_error")
			return nil, fmt.Errorf("failed to emit enriched reading for %s: %w", reading.Region, err)
		}
	}

	p.metrics.RecordsProcessed.Inc()
	p.metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	p.metrics.WindowLength.WithLabelValues(reading.Region).Set(float64(p.store.Len(reading.Region)))

	return enriched, nil
}
