package models

import "time"

// SystemMetrics summarises process level counters for the metrics endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	SessionsGenerated        uint64    `json:"sessions_generated"`
	HorizonExhausted         uint64    `json:"horizon_exhausted"`
	CascadesApplied          uint64    `json:"cascades_applied"`
	BatchFailures            uint64    `json:"batch_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
