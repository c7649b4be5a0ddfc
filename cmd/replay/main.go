package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"demand-pipeline/internal/config"
	"demand-pipeline/internal/messaging"
	"demand-pipeline/internal/models"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// Replays a file of historical demand readings onto the input topic, one
// JSON record per line. Records are published keyed by region so the
// feature service sees them in per-region order.
func main() {
	dataFile := flag.String("data-file", "./data/demand.jsonl", "File containing demand readings, one JSON record per line")
	rate := flag.Int("rate", 0, "Records per second (0 = as fast as possible)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("demand-replay", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[REPLAY_START] Starting historical demand replay", logging.Fields{
		"version":   "1.0.0",
		"data_file": *dataFile,
		"topic":     cfg.Kafka.InputTopic,
		"rate":      *rate,
	})

	metricsCollector := metrics.NewCollector("demand_replay")

	producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.InputTopic, logger, metricsCollector)
	defer producer.Close()

	file, err := os.Open(*dataFile)
	if err != nil {
		logger.Fatal(ctx, "[REPLAY_ERROR] Failed to open data file", logging.Fields{
			"data_file": *dataFile,
		}, err)
	}
	defer file.Close()

	var interval time.Duration
	if *rate > 0 {
		interval = time.Second / time.Duration(*rate)
	}

	startTime := time.Now()
	published := 0
	skipped := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Validate before publishing so malformed rows surface here, not
		// in the feature service's reject log.
		reading, err := models.ParseReading([]byte(line))
		if err != nil {
			skipped++
			logger.Warn(ctx, "[REPLAY_SKIP] Skipping malformed record", logging.Fields{
				"error": err.Error(),
				"line":  line,
			})
			continue
		}

		if err := producer.Publish(ctx, reading.Region, json.RawMessage(line)); err != nil {
			logger.Fatal(ctx, "[REPLAY_ERROR] Failed to publish record", logging.Fields{
				"region":       reading.Region,
				"timestamp_ms": reading.TimestampMs,
			}, err)
		}
		published++

		if interval > 0 {
			time.Sleep(interval)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Fatal(ctx, "[REPLAY_ERROR] Failed to read data file", logging.Fields{}, err)
	}

	duration := time.Since(startTime)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("REPLAY COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Published Records:  %d\n", published)
	fmt.Printf("Skipped Records:    %d\n", skipped)
	fmt.Printf("Duration:           %v\n", duration)
	if duration.Seconds() > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(published)/duration.Seconds())
	}

	logger.Info(ctx, "[REPLAY_COMPLETE] Replay completed", logging.Fields{
		"published":        published,
		"skipped":          skipped,
		"duration_seconds": duration.Seconds(),
	})
}
