package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"demand-pipeline/internal/models"
	"demand-pipeline/internal/repository"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// Feature store sink defaults.
const (
	DefaultSinkBatchSize     = 100
	DefaultSinkFlushInterval = 10 * time.Second
)

// FeatureStoreSink batches enriched readings and writes them to the feature
// repository. Emit buffers on the record path and only blocks when a batch
// fills; a background ticker flushes partial batches so a slow stream still
// reaches storage.
type FeatureStoreSink struct {
	repo          repository.FeatureRepository
	batchSize     int
	flushInterval time.Duration
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector

	mu      sync.Mutex
	pending []*models.EnrichedReading
	regions map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeatureStoreSink creates a sink writing to repo. Non-positive batch
// size or interval fall back to the defaults.
func NewFeatureStoreSink(repo repository.FeatureRepository, batchSize int, flushInterval time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FeatureStoreSink {
	if batchSize <= 0 {
		batchSize = DefaultSinkBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultSinkFlushInterval
	}
	return &FeatureStoreSink{
		repo:          repo,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		metrics:       metricsCollector,
		pending:       make([]*models.EnrichedReading, 0, batchSize),
		regions:       make(map[string]bool),
		done:          make(chan struct{}),
	}
}

// Start launches the periodic flush loop.
func (s *FeatureStoreSink) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Flush(ctx); err != nil {
					s.logger.Error(ctx, "[SINK_FLUSH_ERROR] Periodic flush failed", logging.Fields{}, err)
				}
			}
		}
	}()
}

// Emit buffers one enriched reading, flushing when the batch is full.
func (s *FeatureStoreSink) Emit(ctx context.Context, reading *models.EnrichedReading) error {
	s.mu.Lock()
	s.pending = append(s.pending, reading)
	full := len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered readings to the repository. New regions are
// registered before their first feature rows. A failed batch is re-buffered
// ahead of newer readings so the next flush retries it.
func (s *FeatureStoreSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = make([]*models.EnrichedReading, 0, s.batchSize)

	var newRegions []string
	for _, reading := range batch {
		if !s.regions[reading.Region] {
			s.regions[reading.Region] = true
			newRegions = append(newRegions, reading.Region)
		}
	}
	s.mu.Unlock()

	for _, region := range newRegions {
		if err := s.repo.UpsertRegion(ctx, region); err != nil {
			s.mu.Lock()
			delete(s.regions, region)
			s.mu.Unlock()
			s.requeue(batch)
			return fmt.Errorf("failed to register region %s: %w", region, err)
		}
	}

	if err := s.repo.InsertFeaturesBatch(ctx, batch); err != nil {
		s.metrics.RecordPipelineError("store_error")
		s.requeue(batch)
		return err
	}

	s.logger.Debug(ctx, "[SINK_FLUSH] Feature batch persisted", logging.Fields{
		"count": len(batch),
	})

	return nil
}

// requeue puts a failed batch back at the front of the buffer, ahead of
// anything emitted during the flush attempt, so the next flush retries it.
func (s *FeatureStoreSink) requeue(batch []*models.EnrichedReading) {
	s.mu.Lock()
	s.pending = append(batch, s.pending...)
	s.mu.Unlock()
}

// Close stops the flush loop and drains any buffered readings.
func (s *FeatureStoreSink) Close(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return s.Flush(ctx)
}
