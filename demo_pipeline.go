package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"demand-pipeline/internal/models"
	"demand-pipeline/internal/services"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// DemoPipeline demonstrates the feature engine without Kafka or a database
func main() {
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("DEMAND PIPELINE - FEATURE ENGINE DEMONSTRATION")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println()

	// Initialize logger
	logger := logging.NewStructuredLogger("demo", "1.0.0", logging.WarnLevel)
	ctx := context.Background()

	metricsCollector := metrics.NewCollector("demand_demo")

	// Collect enriched output in memory instead of Kafka/Postgres
	var enriched []*models.EnrichedReading
	captureSink := services.SinkFunc(func(ctx context.Context, reading *models.EnrichedReading) error {
		enriched = append(enriched, reading)
		return nil
	})

	pipeline := services.NewFeaturePipeline(
		services.NewTimeFeatureEncoder(services.NewUSFederalHolidays()),
		services.NewWindowStore(services.DefaultMaxWindowSize),
		services.NewRollingFeatureCalculator(0.0, logger),
		nil, // no liveness monitor in the demo
		logger,
		metricsCollector,
		captureSink,
	)

	// Generate 48 hours of synthetic hourly demand for two regions: a
	// daily sinusoid with an evening peak, plus one reading with missing
	// demand and one late correction for an already-seen hour.
	regions := []string{"CAL", "TEX"}
	base := map[string]float64{"CAL": 25000, "TEX": 40000}
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	totalRecords := 0
	for hour := 0; hour < 48; hour++ {
		ts := start.Add(time.Duration(hour) * time.Hour)
		for _, region := range regions {
			demand := base[region] + 5000*math.Sin(2*math.Pi*float64(ts.Hour()-6)/24)
			reading := &models.Reading{
				Region:      region,
				TimestampMs: ts.UnixMilli(),
				Demand:      &demand,
			}

			// Simulate a telemetry gap: one hour arrives without demand.
			if hour == 30 && region == "CAL" {
				reading.Demand = nil
			}

			if _, err := pipeline.Process(ctx, reading); err != nil {
				fmt.Printf("Processing error: %v\n", err)
				return
			}
			totalRecords++
		}
	}

	// Late correction: a revised value for an hour already in the window
	// replaces the original rather than appending a duplicate.
	corrected := base["CAL"] + 1234.5
	correction := &models.Reading{
		Region:      "CAL",
		TimestampMs: start.Add(47 * time.Hour).UnixMilli(),
		Demand:      &corrected,
	}
	if _, err := pipeline.Process(ctx, correction); err != nil {
		fmt.Printf("Processing error: %v\n", err)
		return
	}
	totalRecords++

	fmt.Printf("Processed %d readings across %d regions\n\n", totalRecords, len(regions))

	// Show how features evolve as history accumulates
	fmt.Println("─────────────────────────────────────────────────────────────")
	fmt.Println("Feature evolution for region CAL")
	fmt.Println("─────────────────────────────────────────────────────────────")

	show := map[int]string{
		0:  "first reading (no history, stats fall back to current demand)",
		2:  "three readings (mean_3/median_3 become meaningful)",
		24: "25 readings (lag_24h now reflects a real prior value)",
		47: "full two days of history",
	}

	seen := 0
	for _, e := range enriched {
		if e.Region != "CAL" {
			continue
		}
		if note, ok := show[seen]; ok {
			ts := e.Time().Format("2006-01-02 15:04")
			fmt.Printf("\n  [%s] %s\n", ts, note)
			if demand, ok := e.DemandValue(); ok {
				fmt.Printf("    demand:     %.1f\n", demand)
			} else {
				fmt.Printf("    demand:     NULL\n")
			}
			fmt.Printf("    category:   %s (is_holiday=%d)\n", e.HourCategory, e.IsHoliday)
			fmt.Printf("    mean_3:     %.1f | median_3:   %.1f\n", e.Mean3, e.Median3)
			fmt.Printf("    mean_24:    %.1f | median_24:  %.1f\n", e.Mean24, e.Median24)
			fmt.Printf("    lag_1h:     %.1f | lag_24h:    %.1f | lag_168h: %.1f\n", e.Lag1h, e.Lag24h, e.Lag168h)
		}
		seen++
	}

	// The correction is the last CAL record emitted
	last := enriched[len(enriched)-1]
	fmt.Printf("\n  [%s] late correction (same hour replaced in window)\n", last.Time().Format("2006-01-02 15:04"))
	if demand, ok := last.DemandValue(); ok {
		fmt.Printf("    demand:     %.1f\n", demand)
	}
	fmt.Printf("    mean_3:     %.1f | lag_1h: %.1f\n", last.Mean3, last.Lag1h)

	fmt.Println()
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("✅ FEATURE ENGINE DEMONSTRATION COMPLETE")
	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println("The engine successfully:")
	fmt.Println("  ✓ Encoded cyclical time features (hour/day/month sin+cos)")
	fmt.Println("  ✓ Categorized hours (off_peak / office_hours / evening_peak)")
	fmt.Println("  ✓ Maintained bounded per-region windows (168 readings)")
	fmt.Println("  ✓ Computed rolling means, medians, and lags over 3/24/168 spans")
	fmt.Println("  ✓ Replaced same-hour duplicates instead of appending")
	fmt.Println("  ✓ Fell back gracefully on missing demand values")
	fmt.Println()
	fmt.Println("With Kafka and Postgres, this would:")
	fmt.Println("  • Consume raw readings from the demand-readings topic")
	fmt.Println("  • Publish enriched features to the demand-features topic")
	fmt.Println("  • Batch-write features to the demand_features table")
	fmt.Println("  • Serve features via REST API endpoints")
	fmt.Println()
}
