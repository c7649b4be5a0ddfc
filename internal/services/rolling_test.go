package services

import (
	"context"
	"math"
	"testing"

	"demand-pipeline/internal/models"
)

// buildHistory creates hourly readings for one region with the given demand
// values, the last of which is the "current" reading.
func buildHistory(region string, demands []float64) ([]*models.Reading, *models.Reading) {
	history := make([]*models.Reading, len(demands))
	for i, d := range demands {
		history[i] = newReading(region, int64(i)*3600_000, d)
	}
	return history, history[len(history)-1]
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRollingFeatureCalculator_Compute(t *testing.T) {
	calc := NewRollingFeatureCalculator(0.0, testLogger)
	ctx := context.Background()

	tests := []struct {
		name    string
		demands []float64
		check   func(*testing.T, models.RollingFeatures)
	}{
		{
			name:    "single reading falls back to current demand everywhere",
			demands: []float64{100},
			check: func(t *testing.T, f models.RollingFeatures) {
				for field, got := range map[string]float64{
					"full_mean":   f.FullMean,
					"full_median": f.FullMedian,
					"mean_3":      f.Mean3,
					"median_3":    f.Median3,
					"mean_24":     f.Mean24,
					"median_24":   f.Median24,
					"mean_168":    f.Mean168,
					"median_168":  f.Median168,
					"lag_1h":      f.Lag1h,
					"lag_24h":     f.Lag24h,
					"lag_168h":    f.Lag168h,
				} {
					if got != 100 {
						t.Errorf("%s = %v, want %v", field, got, 100.0)
					}
				}
			},
		},
		{
			name:    "three readings",
			demands: []float64{100, 200, 300},
			check: func(t *testing.T, f models.RollingFeatures) {
				if !almostEqual(f.Mean3, 200) {
					t.Errorf("mean_3 = %v, want %v", f.Mean3, 200.0)
				}
				if !almostEqual(f.Median3, 200) {
					t.Errorf("median_3 = %v, want %v", f.Median3, 200.0)
				}
				if f.Lag1h != 200 {
					t.Errorf("lag_1h = %v, want %v", f.Lag1h, 200.0)
				}
				// Not enough history for the longer lags yet.
				if f.Lag24h != 300 {
					t.Errorf("lag_24h = %v, want current demand %v", f.Lag24h, 300.0)
				}
				if f.Lag168h != 300 {
					t.Errorf("lag_168h = %v, want current demand %v", f.Lag168h, 300.0)
				}
			},
		},
		{
			name:    "trailing span excludes older readings",
			demands: []float64{1000, 1000, 100, 200, 300},
			check: func(t *testing.T, f models.RollingFeatures) {
				if !almostEqual(f.Mean3, 200) {
					t.Errorf("mean_3 = %v, want %v", f.Mean3, 200.0)
				}
				if !almostEqual(f.FullMean, 520) {
					t.Errorf("full_mean = %v, want %v", f.FullMean, 520.0)
				}
				if !almostEqual(f.FullMedian, 300) {
					t.Errorf("full_median = %v, want %v", f.FullMedian, 300.0)
				}
			},
		},
		{
			name:    "even count median averages the middle pair",
			demands: []float64{100, 400, 200, 300},
			check: func(t *testing.T, f models.RollingFeatures) {
				if !almostEqual(f.FullMedian, 250) {
					t.Errorf("full_median = %v, want %v", f.FullMedian, 250.0)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, current := buildHistory("CAL", tt.demands)
			tt.check(t, calc.Compute(ctx, history, current))
		})
	}
}

func TestRollingFeatureCalculator_Lags(t *testing.T) {
	calc := NewRollingFeatureCalculator(0.0, testLogger)
	ctx := context.Background()

	// 25 readings: lag_24h reaches the first one.
	demands := make([]float64, 25)
	for i := range demands {
		demands[i] = float64(i + 1)
	}
	history, current := buildHistory("CAL", demands)
	features := calc.Compute(ctx, history, current)

	if features.Lag1h != 24 {
		t.Errorf("lag_1h = %v, want %v", features.Lag1h, 24.0)
	}
	if features.Lag24h != 1 {
		t.Errorf("lag_24h = %v, want %v", features.Lag24h, 1.0)
	}
	if features.Lag168h != 25 {
		t.Errorf("lag_168h = %v, want current demand %v", features.Lag168h, 25.0)
	}

	// 169 readings: lag_168h reaches the first one.
	demands = make([]float64, 169)
	for i := range demands {
		demands[i] = float64(i + 1)
	}
	history, current = buildHistory("CAL", demands)
	features = calc.Compute(ctx, history, current)

	if features.Lag168h != 1 {
		t.Errorf("lag_168h = %v, want %v", features.Lag168h, 1.0)
	}
	if features.Lag24h != 145 {
		t.Errorf("lag_24h = %v, want %v", features.Lag24h, 145.0)
	}
}

func TestRollingFeatureCalculator_SkipsMissingDemand(t *testing.T) {
	calc := NewRollingFeatureCalculator(0.0, testLogger)
	ctx := context.Background()

	history := []*models.Reading{
		newReading("CAL", 0, 100),
		{Region: "CAL", TimestampMs: 3600_000}, // gap, no demand
		newReading("CAL", 7200_000, 300),
	}
	features := calc.Compute(ctx, history, history[2])

	if !almostEqual(features.Mean3, 200) {
		t.Errorf("mean_3 = %v, want %v (nil demand must be skipped)", features.Mean3, 200.0)
	}
	if features.Lag1h != 100 {
		t.Errorf("lag_1h = %v, want %v (lag positions count present demands only)", features.Lag1h, 100.0)
	}
}

func TestRollingFeatureCalculator_CurrentWithoutDemand(t *testing.T) {
	calc := NewRollingFeatureCalculator(0.0, testLogger)
	ctx := context.Background()

	// History exists: the gap reading inherits stats from prior demands.
	history := []*models.Reading{
		newReading("CAL", 0, 100),
		newReading("CAL", 3600_000, 200),
		{Region: "CAL", TimestampMs: 7200_000},
	}
	features := calc.Compute(ctx, history, history[2])

	if !almostEqual(features.Mean3, 150) {
		t.Errorf("mean_3 = %v, want %v", features.Mean3, 150.0)
	}
	if features.Lag1h != 100 {
		t.Errorf("lag_1h = %v, want %v", features.Lag1h, 100.0)
	}
	if features.Lag24h != 200 {
		t.Errorf("lag_24h = %v, want most recent present demand %v", features.Lag24h, 200.0)
	}
}

func TestRollingFeatureCalculator_NoDataAtAll(t *testing.T) {
	calc := NewRollingFeatureCalculator(42.0, testLogger)
	ctx := context.Background()

	current := &models.Reading{Region: "CAL", TimestampMs: 0}
	features := calc.Compute(ctx, []*models.Reading{current}, current)

	if features.FullMean != 42 || features.Lag168h != 42 {
		t.Errorf("features = %+v, want default demand 42 everywhere", features)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"single", []float64{5}, 5},
		{"odd count", []float64{3, 1, 2}, 2},
		{"even count", []float64{4, 1, 3, 2}, 2.5},
		{"unsorted input", []float64{100, 1, 50}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := make([]float64, len(tt.values))
			copy(input, tt.values)

			if got := median(tt.values); got != tt.want {
				t.Errorf("median(%v) = %v, want %v", tt.values, got, tt.want)
			}

			// median must not reorder its input
			for i := range input {
				if tt.values[i] != input[i] {
					t.Errorf("median mutated input: %v, want %v", tt.values, input)
					break
				}
			}
		})
	}
}
