package models

import "time"

// EngineMetrics represents engine level statistics captured from
// instrumentation, exposed on the status endpoint.
type EngineMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CompilationsTotal        uint64    `json:"compilations_total"`
	CompilationFailures      uint64    `json:"compilation_failures"`
	AverageCompileDurationMs float64   `json:"average_compile_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
