package models

import "time"

// SystemMetrics is a point-in-time view of process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ExtractionsStarted       uint64    `json:"extractions_started"`
	ExtractionsCompleted     uint64    `json:"extractions_completed"`
	ExtractionsFailed        uint64    `json:"extractions_failed"`
	ActiveExtractions        int64     `json:"active_extractions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
