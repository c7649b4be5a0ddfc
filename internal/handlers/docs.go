package handlers

import (
	"encoding/json"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Demand Feature API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	featureProperties := map[string]interface{}{
		"id":                map[string]string{"type": "integer"},
		"region":            map[string]string{"type": "string"},
		"timestamp_ms":      map[string]string{"type": "integer", "format": "int64"},
		"demand":            map[string]interface{}{"type": "number", "nullable": true},
		"is_holiday":        map[string]string{"type": "integer"},
		"hour_category":     map[string]interface{}{"type": "string", "enum": []string{"off_peak", "office_hours", "evening_peak"}},
		"hour_category_num": map[string]string{"type": "integer"},
		"hour_sin":          map[string]string{"type": "number"},
		"hour_cos":          map[string]string{"type": "number"},
		"day_of_week_sin":   map[string]string{"type": "number"},
		"day_of_week_cos":   map[string]string{"type": "number"},
		"month_sin":         map[string]string{"type": "number"},
		"month_cos":         map[string]string{"type": "number"},
		"full_mean":         map[string]string{"type": "number"},
		"full_median":       map[string]string{"type": "number"},
		"mean_3":            map[string]string{"type": "number"},
		"median_3":          map[string]string{"type": "number"},
		"mean_24":           map[string]string{"type": "number"},
		"median_24":         map[string]string{"type": "number"},
		"mean_168":          map[string]string{"type": "number"},
		"median_168":        map[string]string{"type": "number"},
		"lag_1h":            map[string]string{"type": "number"},
		"lag_24h":           map[string]string{"type": "number"},
		"lag_168h":          map[string]string{"type": "number"},
		"created_at":        map[string]string{"type": "string", "format": "date-time"},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Demand Feature Pipeline API",
			"description": "Read API over the electricity demand feature group: per-region readings enriched with calendar, cyclical, and rolling-window features. Per-region ordering of the underlying stream is guaranteed by the broker's partition keying.",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/features": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get enriched demand features",
					"description": "Retrieve stored feature rows with filtering and pagination",
					"parameters": []map[string]interface{}{
						{
							"name":        "region",
							"in":          "query",
							"description": "Filter by region identifier",
							"required":    false,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "start",
							"in":          "query",
							"description": "Filter by start time (RFC3339)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "date-time"},
						},
						{
							"name":        "end",
							"in":          "query",
							"description": "Filter by end time (RFC3339)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "date-time"},
						},
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"data": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type":       "object",
													"properties": featureProperties,
												},
											},
											"total":       map[string]string{"type": "integer"},
											"page":        map[string]string{"type": "integer"},
											"limit":       map[string]string{"type": "integer"},
											"total_pages": map[string]string{"type": "integer"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/features/regions": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List regions",
					"description": "List all regions with stored features",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"regions": map[string]interface{}{
												"type":  "array",
												"items": map[string]string{"type": "string"},
											},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/features/{region}/latest": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get latest feature for a region",
					"description": "Retrieve the most recent enriched reading stored for one region",
					"parameters": []map[string]interface{}{
						{
							"name":     "region",
							"in":       "path",
							"required": true,
							"schema":   map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type":       "object",
										"properties": featureProperties,
									},
								},
							},
						},
						"404": map[string]interface{}{
							"description": "No features stored for the region",
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its storage are reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"status": map[string]string{"type": "string"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
