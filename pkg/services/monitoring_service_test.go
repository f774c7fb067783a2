package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	service := NewMonitoringService()
	r := gin.New()
	r.Use(service.LoggingMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/businesses", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	paths := []string{"/health", "/api/v1/businesses", "/api/v1/businesses", "/api/v1/broken"}
	for _, path := range paths {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
	}

	summary := service.GetRequestSummary(1)

	// /health は記録対象外
	assert.Equal(t, 3, summary.TotalRequests)
	assert.Equal(t, 2, summary.Endpoints["/api/v1/businesses"])
	assert.Equal(t, 1, summary.Endpoints["/api/v1/broken"])
	assert.Equal(t, 2, summary.StatusBuckets["2xx"])
	assert.Equal(t, 1, summary.StatusBuckets["5xx"])

	require.Len(t, summary.RecentErrors, 1)
	assert.Equal(t, "/api/v1/broken", summary.RecentErrors[0].Path)
}

func TestGetRequestSummaryFiltersByPeriod(t *testing.T) {
	service := NewMonitoringService()

	service.LogRequest(LogEntry{
		Timestamp:  time.Now().Add(-2 * time.Hour),
		Path:       "/api/v1/old",
		Method:     "GET",
		StatusCode: http.StatusOK,
	})
	service.LogRequest(LogEntry{
		Timestamp:  time.Now().Add(-time.Minute),
		Path:       "/api/v1/recent",
		Method:     "GET",
		StatusCode: http.StatusOK,
	})

	summary := service.GetRequestSummary(1)

	assert.Equal(t, 1, summary.TotalRequests)
	assert.Contains(t, summary.Endpoints, "/api/v1/recent")
	assert.NotContains(t, summary.Endpoints, "/api/v1/old")
}

func TestGetRequestSummaryEmpty(t *testing.T) {
	service := NewMonitoringService()

	summary := service.GetRequestSummary(24)

	assert.Equal(t, 0, summary.TotalRequests)
	assert.Empty(t, summary.Endpoints)
	assert.Empty(t, summary.RecentErrors)
}
