package services

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
type MonitoringService struct {
	logs []LogEntry
	mu   sync.RWMutex
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs: make([]LogEntry, 0),
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		// 除外するパス
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		// リクエスト情報を記録
		entry := LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		}
		s.LogRequest(entry)
	}
}

// RequestSummary は指定期間のログを集計した結果です。
type RequestSummary struct {
	TotalRequests int              `json:"total_requests"`
	Endpoints     map[string]int   `json:"endpoints"`
	StatusBuckets map[string]int   `json:"status_buckets"`
	AvgResponseMs map[string]int64 `json:"avg_response_ms"`
	RecentErrors  []LogEntry       `json:"recent_errors"`
}

// GetRequestSummary は指定された期間のログを集計して返します。
func (s *MonitoringService) GetRequestSummary(periodHours int) RequestSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().Add(-time.Duration(periodHours) * time.Hour)

	summary := RequestSummary{
		Endpoints:     make(map[string]int),
		StatusBuckets: map[string]int{"2xx": 0, "4xx": 0, "5xx": 0},
		AvgResponseMs: make(map[string]int64),
		RecentErrors:  make([]LogEntry, 0),
	}

	responseTimeSum := make(map[string]time.Duration)
	for _, entry := range s.logs {
		if entry.Timestamp.Before(since) {
			continue
		}
		summary.TotalRequests++
		summary.Endpoints[entry.Path]++
		responseTimeSum[entry.Path] += entry.ResponseTime

		switch {
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			summary.StatusBuckets["2xx"]++
		case entry.StatusCode >= 400 && entry.StatusCode < 500:
			summary.StatusBuckets["4xx"]++
		case entry.StatusCode >= 500:
			summary.StatusBuckets["5xx"]++
		}
	}

	for path, total := range responseTimeSum {
		summary.AvgResponseMs[path] = total.Milliseconds() / int64(summary.Endpoints[path])
	}

	// 直近のサーバーエラーを新しい順に最大10件
	for i := len(s.logs) - 1; i >= 0 && len(summary.RecentErrors) < 10; i-- {
		if s.logs[i].Timestamp.After(since) && s.logs[i].StatusCode >= 500 {
			summary.RecentErrors = append(summary.RecentErrors, s.logs[i])
		}
	}

	return summary
}
