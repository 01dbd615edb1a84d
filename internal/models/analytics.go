package models

import (
	"time"

	"github.com/evaclass/eva-api/internal/policy"
)

// CategoryCount is a raw per-category message count for a class.
type CategoryCount struct {
	Category policy.Category `db:"category" json:"category"`
	Count    int             `db:"count" json:"count"`
}

// CategoryBreakdown adds the share of total questions to a count.
type CategoryBreakdown struct {
	Category   policy.Category `json:"category"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
	IsSpike    bool            `json:"is_spike"`
}

// TimelinePoint is the question volume within one timeline bucket.
type TimelinePoint struct {
	Bucket    time.Time `db:"bucket" json:"bucket"`
	Questions int       `db:"questions" json:"questions"`
}

// SystemMetrics is a lightweight instrumentation snapshot.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	MessagesBlocked          uint64    `json:"messages_blocked"`
	MessagesAccepted         uint64    `json:"messages_accepted"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// ClassAnalytics is the cached instructor dashboard payload.
type ClassAnalytics struct {
	ClassID     string              `json:"class_id"`
	Total       int                 `json:"total"`
	Breakdown   []CategoryBreakdown `json:"breakdown"`
	Timeline    []TimelinePoint     `json:"timeline"`
	GeneratedAt time.Time           `json:"generated_at"`
}
