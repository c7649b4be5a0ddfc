package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"demand-pipeline/internal/models"
	"demand-pipeline/pkg/database"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// FeatureRepository provides data access for the demand feature group.
type FeatureRepository interface {
	// Region operations
	UpsertRegion(ctx context.Context, region string) error
	ListRegions(ctx context.Context) ([]string, error)

	// Feature operations
	InsertFeaturesBatch(ctx context.Context, readings []*models.EnrichedReading) error
	GetFeatures(ctx context.Context, filter FeatureFilter) ([]*StoredFeature, int, error)
	GetLatestFeature(ctx context.Context, region string) (*StoredFeature, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// FeatureFilter defines filters for querying stored features.
type FeatureFilter struct {
	Region    *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// StoredFeature is one persisted enriched reading row.
type StoredFeature struct {
	ID          int64     `json:"id" db:"id"`
	Region      string    `json:"region" db:"region"`
	TimestampMs int64     `json:"timestamp_ms" db:"timestamp_ms"`
	Demand      *float64  `json:"demand,omitempty" db:"demand"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	models.TimeFeatures
	models.RollingFeatures
}

// featureRepository implements FeatureRepository on PostgreSQL.
type featureRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFeatureRepository creates a new feature repository.
func NewFeatureRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) FeatureRepository {
	return &featureRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// UpsertRegion registers a region, ignoring duplicates.
func (r *featureRepository) UpsertRegion(ctx context.Context, region string) error {
	query := `
		INSERT INTO demand_regions (region, created_at)
		VALUES ($1, $2)
		ON CONFLICT (region) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, "upsert_region", query, region, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert region: %w", err)
	}

	return nil
}

// ListRegions returns all known regions in lexical order.
func (r *featureRepository) ListRegions(ctx context.Context) ([]string, error) {
	query := `SELECT region FROM demand_regions ORDER BY region`

	var regions []string
	if err := r.db.SelectContext(ctx, "list_regions", &regions, query); err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	return regions, nil
}

const insertFeatureQuery = `
	INSERT INTO demand_features (
		region, timestamp_ms, demand,
		is_holiday, hour_category, hour_category_num,
		hour_sin, hour_cos, day_of_week_sin, day_of_week_cos, month_sin, month_cos,
		full_mean, full_median, mean_3, median_3, mean_24, median_24, mean_168, median_168,
		lag_1h, lag_24h, lag_168h,
		created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
	        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	ON CONFLICT (region, timestamp_ms) DO UPDATE SET
		demand = EXCLUDED.demand,
		is_holiday = EXCLUDED.is_holiday,
		hour_category = EXCLUDED.hour_category,
		hour_category_num = EXCLUDED.hour_category_num,
		hour_sin = EXCLUDED.hour_sin,
		hour_cos = EXCLUDED.hour_cos,
		day_of_week_sin = EXCLUDED.day_of_week_sin,
		day_of_week_cos = EXCLUDED.day_of_week_cos,
		month_sin = EXCLUDED.month_sin,
		month_cos = EXCLUDED.month_cos,
		full_mean = EXCLUDED.full_mean,
		full_median = EXCLUDED.full_median,
		mean_3 = EXCLUDED.mean_3,
		median_3 = EXCLUDED.median_3,
		mean_24 = EXCLUDED.mean_24,
		median_24 = EXCLUDED.median_24,
		mean_168 = EXCLUDED.mean_168,
		median_168 = EXCLUDED.median_168,
		lag_1h = EXCLUDED.lag_1h,
		lag_24h = EXCLUDED.lag_24h,
		lag_168h = EXCLUDED.lag_168h
`

// InsertFeaturesBatch writes a batch of enriched readings in one
// transaction. The (region, timestamp_ms) conflict target keeps replayed
// windows idempotent in storage, matching the window store's upsert rule.
func (r *featureRepository) InsertFeaturesBatch(ctx context.Context, readings []*models.EnrichedReading) error {
	if len(readings) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.StoreBatchSize.Observe(float64(len(readings)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Feature batch insert completed", logging.Fields{
			"count":       len(readings),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertFeatureQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, reading := range readings {
		_, err := stmt.ExecContext(ctx,
			reading.Region,
			reading.TimestampMs,
			reading.Demand,
			reading.IsHoliday,
			reading.HourCategory,
			reading.HourCategoryNum,
			reading.HourSin,
			reading.HourCos,
			reading.DayOfWeekSin,
			reading.DayOfWeekCos,
			reading.MonthSin,
			reading.MonthCos,
			reading.FullMean,
			reading.FullMedian,
			reading.Mean3,
			reading.Median3,
			reading.Mean24,
			reading.Median24,
			reading.Mean168,
			reading.Median168,
			reading.Lag1h,
			reading.Lag24h,
			reading.Lag168h,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert feature row for %s: %w", reading.Region, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.StoreRecordsTotal.Add(float64(len(readings)))

	return nil
}

const selectFeatureColumns = `
	SELECT id, region, timestamp_ms, demand,
	       is_holiday, hour_category, hour_category_num,
	       hour_sin, hour_cos, day_of_week_sin, day_of_week_cos, month_sin, month_cos,
	       full_mean, full_median, mean_3, median_3, mean_24, median_24, mean_168, median_168,
	       lag_1h, lag_24h, lag_168h,
	       created_at
	FROM demand_features
`

// GetFeatures retrieves stored features with filtering and pagination.
func (r *featureRepository) GetFeatures(ctx context.Context, filter FeatureFilter) ([]*StoredFeature, int, error) {
	query := selectFeatureColumns + " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.Region != nil {
		query += fmt.Sprintf(" AND region = $%d", argNum)
		args = append(args, *filter.Region)
		argNum++
	}

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp_ms >= $%d", argNum)
		args = append(args, filter.StartTime.UnixMilli())
		argNum++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp_ms <= $%d", argNum)
		args = append(args, filter.EndTime.UnixMilli())
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_features", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count features: %w", err)
	}

	query += " ORDER BY timestamp_ms DESC, region"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var features []*StoredFeature
	if err := r.db.SelectContext(ctx, "get_features", &features, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get features: %w", err)
	}

	return features, totalCount, nil
}

// GetLatestFeature retrieves the most recent stored feature for a region.
func (r *featureRepository) GetLatestFeature(ctx context.Context, region string) (*StoredFeature, error) {
	query := selectFeatureColumns + `
		WHERE region = $1
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	var feature StoredFeature
	err := r.db.GetContext(ctx, "get_latest_feature", &feature, query, region)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{
			Resource: "demand_feature",
			ID:       region,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get latest feature: %w", err)
	}

	return &feature, nil
}

// HealthCheck performs a repository health check.
func (r *featureRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
