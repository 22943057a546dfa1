package model

import "time"

// Visit records a single view of a product page. The raw client IP
// is never stored; only its one-way hash is persisted so unique
// visitors can be counted without keeping addresses around.
//
// Fields:
//  ID        – primary key identifier.
//  ProductID – product the visit belongs to (FK, cascade on delete).
//  IPHash    – hex SHA-256 digest of the client IP.
//  UserAgent – optional user agent string.
//  SessionID – opaque session identifier from the client cookie.
//  Timestamp – when the visit happened.
//  Duration  – seconds spent on the page, nil until reported.
type Visit struct {
	ID        uint64    `json:"id"`
	ProductID uint64    `json:"product_id"`
	IPHash    string    `json:"ip_hash"`
	UserAgent string    `json:"user_agent,omitempty"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Duration  *int      `json:"duration,omitempty"`
}

// VisitSession identifies a returning anonymous visitor via the
// opaque token held in the client cookie. It is upserted on every
// tracked visit.
type VisitSession struct {
	SessionID      string    `json:"session_id"`
	FirstVisitTime time.Time `json:"first_visit_time"`
	LastVisitTime  time.Time `json:"last_visit_time"`
	VisitCount     int       `json:"visit_count"`
}

// DailyStat is one calendar day's slice of a product's visit
// history. Days without visits are omitted from DailyStats.
type DailyStat struct {
	Date           string `json:"date"` // YYYY-MM-DD
	Count          int64  `json:"count"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// ProductAnalytics is the fully derived per-product snapshot stored
// in `product_analytics`. It is recomputed from the visits table on
// every trigger and always overwritten whole, never merged.
type ProductAnalytics struct {
	ProductID      uint64      `json:"product_id"`
	TotalVisits    int64       `json:"total_visits"`
	UniqueVisitors int64       `json:"unique_visitors"`
	AvgDuration    *float64    `json:"avg_duration,omitempty"`
	LastUpdated    time.Time   `json:"last_updated"`
	DailyStats     []DailyStat `json:"daily_stats"`
}

// ProductVisitCount is a grouped row from the visits table used by
// the popularity ranking queries.
type ProductVisitCount struct {
	ProductID      uint64
	TotalVisits    int64
	UniqueVisitors int64
}
