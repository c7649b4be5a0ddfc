package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"demand-pipeline/internal/models"
	"demand-pipeline/internal/repository"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

// FeatureHandler handles demand feature API endpoints
type FeatureHandler struct {
	repo    repository.FeatureRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFeatureHandler creates a new feature handler
func NewFeatureHandler(repo repository.FeatureRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FeatureHandler {
	return &FeatureHandler{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// GetFeatures handles GET /api/features
func (h *FeatureHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/features").Observe(duration.Seconds())
	}()

	// Parse query parameters
	region := r.URL.Query().Get("region")
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	page, limit := parsePagination(r)

	filter := repository.FeatureFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if region != "" {
		filter.Region = &region
	}

	if startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			h.sendError(w, r, "invalid start, expected RFC3339 timestamp", http.StatusBadRequest)
			return
		}
		filter.StartTime = &start
	}

	if endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			h.sendError(w, r, "invalid end, expected RFC3339 timestamp", http.StatusBadRequest)
			return
		}
		filter.EndTime = &end
	}

	features, total, err := h.repo.GetFeatures(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_FEATURES_ERROR] Failed to get features", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/features")
		h.sendError(w, r, "failed to retrieve features", http.StatusInternalServerError)
		return
	}

	totalPages := (total + limit - 1) / limit

	response := PaginatedResponse{
		Data:       features,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest("/api/features", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetRegions handles GET /api/features/regions
func (h *FeatureHandler) GetRegions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/features/regions").Observe(duration.Seconds())
	}()

	regions, err := h.repo.ListRegions(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_REGIONS_ERROR] Failed to list regions", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/features/regions")
		h.sendError(w, r, "failed to retrieve regions", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/features/regions", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"regions": regions}, http.StatusOK)
}

// GetLatestFeature handles GET /api/features/{region}/latest
func (h *FeatureHandler) GetLatestFeature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/features/latest").Observe(duration.Seconds())
	}()

	region := mux.Vars(r)["region"]

	feature, err := h.repo.GetLatestFeature(ctx, region)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			h.sendError(w, r, "no features stored for region "+region, http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_GET_LATEST_ERROR] Failed to get latest feature", logging.Fields{
			"region": region,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/features/latest")
		h.sendError(w, r, "failed to retrieve latest feature", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/features/latest", "GET", "200")
	h.sendJSON(w, feature, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *FeatureHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.repo.HealthCheck(ctx); err != nil {
		status["status"] = "degraded"
		h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Repository health check failed", logging.Fields{}, err)
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, status, http.StatusOK)
}

// parsePagination extracts page/limit query parameters with defaults.
func parsePagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 100

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	return page, limit
}

// sendJSON sends a JSON response
func (h *FeatureHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *FeatureHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all feature API routes
func (h *FeatureHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/features", h.GetFeatures).Methods("GET")
	router.HandleFunc("/api/features/regions", h.GetRegions).Methods("GET")
	router.HandleFunc("/api/features/{region}/latest", h.GetLatestFeature).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}
