package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-pipeline/internal/models"
	"demand-pipeline/internal/repository"
)

// fakeFeatureRepo records writes in memory.
type fakeFeatureRepo struct {
	mu        sync.Mutex
	regions   []string
	inserted  [][]*models.EnrichedReading
	regionErr error
	insertErr error
}

func (r *fakeFeatureRepo) UpsertRegion(ctx context.Context, region string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.regionErr != nil {
		return r.regionErr
	}
	r.regions = append(r.regions, region)
	return nil
}

func (r *fakeFeatureRepo) ListRegions(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.regions...), nil
}

func (r *fakeFeatureRepo) InsertFeaturesBatch(ctx context.Context, readings []*models.EnrichedReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.inserted = append(r.inserted, readings)
	return nil
}

func (r *fakeFeatureRepo) GetFeatures(ctx context.Context, filter repository.FeatureFilter) ([]*repository.StoredFeature, int, error) {
	return nil, 0, nil
}

func (r *fakeFeatureRepo) GetLatestFeature(ctx context.Context, region string) (*repository.StoredFeature, error) {
	return nil, &models.NotFoundError{Resource: "demand_feature", ID: region}
}

func (r *fakeFeatureRepo) HealthCheck(ctx context.Context) error {
	return nil
}

func (r *fakeFeatureRepo) batches() [][]*models.EnrichedReading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]*models.EnrichedReading(nil), r.inserted...)
}

func (r *fakeFeatureRepo) knownRegions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.regions...)
}

func enrichedFor(region string, timestampMs int64) *models.EnrichedReading {
	demand := 100.0
	return &models.EnrichedReading{
		Reading: models.Reading{Region: region, TimestampMs: timestampMs, Demand: &demand},
	}
}

func TestFeatureStoreSink_FlushesFullBatch(t *testing.T) {
	repo := &fakeFeatureRepo{}
	sink := NewFeatureStoreSink(repo, 3, time.Hour, testLogger, testMetrics)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", int64(i))))
	}

	batches := repo.batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Equal(t, []string{"CAL"}, repo.knownRegions())
}

func TestFeatureStoreSink_PartialBatchStaysBuffered(t *testing.T) {
	repo := &fakeFeatureRepo{}
	sink := NewFeatureStoreSink(repo, 10, time.Hour, testLogger, testMetrics)
	ctx := context.Background()

	require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", 1)))
	assert.Empty(t, repo.batches(), "partial batch must not be written before flush")

	require.NoError(t, sink.Flush(ctx))
	assert.Len(t, repo.batches(), 1)
}

func TestFeatureStoreSink_RegisterOnceEvenAcrossBatches(t *testing.T) {
	repo := &fakeFeatureRepo{}
	sink := NewFeatureStoreSink(repo, 2, time.Hour, testLogger, testMetrics)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", int64(i))))
	}

	assert.Len(t, repo.knownRegions(), 1, "repeated region must be registered once")
	assert.Len(t, repo.batches(), 2)
}

func TestFeatureStoreSink_RegionFailureRetriesNextFlush(t *testing.T) {
	repo := &fakeFeatureRepo{regionErr: errors.New("db down")}
	sink := NewFeatureStoreSink(repo, 1, time.Hour, testLogger, testMetrics)
	ctx := context.Background()

	require.Error(t, sink.Emit(ctx, enrichedFor("CAL", 1)))

	// Registration recovers: the region must be retried, not remembered as
	// already registered, and the reading buffered before the failure must
	// still reach storage.
	repo.mu.Lock()
	repo.regionErr = nil
	repo.mu.Unlock()

	require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", 2)))
	assert.Equal(t, []string{"CAL"}, repo.knownRegions())

	var persisted []int64
	for _, batch := range repo.batches() {
		for _, reading := range batch {
			persisted = append(persisted, reading.TimestampMs)
		}
	}
	assert.Equal(t, []int64{1, 2}, persisted, "reading buffered before the transient failure must be retried")
}

func TestFeatureStoreSink_InsertFailureSurfaces(t *testing.T) {
	insertErr := errors.New("constraint violation")
	repo := &fakeFeatureRepo{insertErr: insertErr}
	sink := NewFeatureStoreSink(repo, 1, time.Hour, testLogger, testMetrics)

	err := sink.Emit(context.Background(), enrichedFor("CAL", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)
}

func TestFeatureStoreSink_InsertFailureRequeuesBatch(t *testing.T) {
	repo := &fakeFeatureRepo{insertErr: errors.New("connection reset")}
	sink := NewFeatureStoreSink(repo, 2, time.Hour, testLogger, testMetrics)
	ctx := context.Background()

	require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", 1)))
	require.Error(t, sink.Emit(ctx, enrichedFor("CAL", 2)))
	assert.Empty(t, repo.batches())

	// The write path recovers: a later flush must deliver the earlier
	// readings, oldest first, ahead of anything emitted since.
	repo.mu.Lock()
	repo.insertErr = nil
	repo.mu.Unlock()

	require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", 3)))
	require.NoError(t, sink.Flush(ctx))

	var persisted []int64
	for _, batch := range repo.batches() {
		for _, reading := range batch {
			persisted = append(persisted, reading.TimestampMs)
		}
	}
	assert.Equal(t, []int64{1, 2, 3}, persisted, "failed batch must be retried, not dropped")
}

func TestFeatureStoreSink_CloseDrains(t *testing.T) {
	repo := &fakeFeatureRepo{}
	sink := NewFeatureStoreSink(repo, 100, time.Hour, testLogger, testMetrics)
	ctx := context.Background()

	sink.Start(ctx)
	require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", 1)))

	require.NoError(t, sink.Close(ctx))
	assert.Len(t, repo.batches(), 1, "Close must drain the buffer")
}

func TestFeatureStoreSink_PeriodicFlush(t *testing.T) {
	repo := &fakeFeatureRepo{}
	sink := NewFeatureStoreSink(repo, 100, 5*time.Millisecond, testLogger, testMetrics)
	ctx := context.Background()

	sink.Start(ctx)
	defer sink.Close(ctx)

	require.NoError(t, sink.Emit(ctx, enrichedFor("CAL", 1)))

	assert.Eventually(t, func() bool {
		return len(repo.batches()) >= 1
	}, 2*time.Second, time.Millisecond, "periodic flush never wrote the buffered batch")
}
