// This file defines repository methods for visits, visit sessions and the
// derived analytics snapshot. The recompute runs inside a single
// transaction so the snapshot written always reflects one consistent read
// set of the visits table.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/product-watch/internal/model"
)

// VisitRepo encapsulates all queries against the `visits`,
// `visit_sessions` and `product_analytics` tables.
type VisitRepo struct {
	db *sql.DB
}

func NewVisitRepo(db *sql.DB) *VisitRepo {
	return &VisitRepo{db: db}
}

// InsertVisit stores a new visit row. ID and Timestamp are populated from
// the database after the insert.
func (r *VisitRepo) InsertVisit(ctx context.Context, v *model.Visit) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO visits (product_id, ip_hash, user_agent, session_id) VALUES (?,?,?,?)",
		v.ProductID, v.IPHash, v.UserAgent, v.SessionID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return r.db.QueryRowContext(ctx,
		"SELECT timestamp FROM visits WHERE id=?", v.ID).Scan(&v.Timestamp)
}

// GetVisit fetches a visit by id, returning ErrNotFound when absent.
func (r *VisitRepo) GetVisit(ctx context.Context, id uint64) (*model.Visit, error) {
	const q = "SELECT id, product_id, ip_hash, user_agent, session_id, timestamp, duration FROM visits WHERE id=? LIMIT 1"
	var (
		v   model.Visit
		dur sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&v.ID, &v.ProductID, &v.IPHash, &v.UserAgent, &v.SessionID, &v.Timestamp, &dur)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if dur.Valid {
		d := int(dur.Int64)
		v.Duration = &d
	}
	return &v, nil
}

// UpdateDuration sets the page duration on an existing visit. This is the
// single post-hoc mutation a visit row ever receives.
func (r *VisitRepo) UpdateDuration(ctx context.Context, id uint64, seconds int) error {
	_, err := r.db.ExecContext(ctx, "UPDATE visits SET duration=? WHERE id=?", seconds, id)
	return err
}

// ListByProduct returns the newest visits for a product, optionally bounded
// by a time range. A nil bound leaves that side open.
func (r *VisitRepo) ListByProduct(ctx context.Context, productID uint64, from, to *time.Time, limit int) ([]model.Visit, error) {
	q := "SELECT id, product_id, ip_hash, user_agent, session_id, timestamp, duration FROM visits WHERE product_id=?"
	args := []any{productID}
	if from != nil {
		q += " AND timestamp > ?"
		args = append(args, *from)
	}
	if to != nil {
		q += " AND timestamp <= ?"
		args = append(args, *to)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Visit
	for rows.Next() {
		var (
			v   model.Visit
			dur sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.IPHash, &v.UserAgent, &v.SessionID, &v.Timestamp, &dur); err != nil {
			return nil, err
		}
		if dur.Valid {
			d := int(dur.Int64)
			v.Duration = &d
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetSession fetches a visit session by its opaque identifier.
func (r *VisitRepo) GetSession(ctx context.Context, sessionID string) (*model.VisitSession, error) {
	const q = "SELECT session_id, first_visit_time, last_visit_time, visit_count FROM visit_sessions WHERE session_id=? LIMIT 1"
	var s model.VisitSession
	err := r.db.QueryRowContext(ctx, q, sessionID).
		Scan(&s.SessionID, &s.FirstVisitTime, &s.LastVisitTime, &s.VisitCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a fresh session row with visit_count=1.
func (r *VisitRepo) CreateSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO visit_sessions (session_id, visit_count) VALUES (?,1)", sessionID)
	return err
}

// TouchSession bumps the visit counter and last-visit time of a known session.
func (r *VisitRepo) TouchSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE visit_sessions SET last_visit_time=NOW(), visit_count=visit_count+1 WHERE session_id=?",
		sessionID)
	return err
}

// RecomputeAnalytics re-derives the full analytics snapshot for a product
// from the visits table and overwrites the stored row. Everything happens in
// one transaction: the counts, the average and the daily breakdown come from
// a single read set, and the REPLACE wins or loses atomically against a
// concurrent recompute for the same product (last writer wins). Running it
// twice with no new visits produces an identical snapshot.
func (r *VisitRepo) RecomputeAnalytics(ctx context.Context, productID uint64) (*model.ProductAnalytics, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	a := &model.ProductAnalytics{ProductID: productID, DailyStats: []model.DailyStat{}}

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT ip_hash) FROM visits WHERE product_id=?",
		productID).Scan(&a.TotalVisits, &a.UniqueVisitors); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT AVG(duration) FROM visits WHERE product_id=? AND duration IS NOT NULL",
		productID).Scan(&avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		a.AvgDuration = &avg.Float64
	}

	// Sparse daily breakdown: only days with at least one visit appear,
	// ascending by date over the trailing 30 calendar days.
	rows, err := tx.QueryContext(ctx,
		`SELECT DATE(timestamp) AS day, COUNT(*), COUNT(DISTINCT ip_hash)
		 FROM visits
		 WHERE product_id=? AND timestamp >= DATE_SUB(NOW(), INTERVAL 30 DAY)
		 GROUP BY day
		 ORDER BY day ASC`, productID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			day time.Time
			ds  model.DailyStat
		)
		if err := rows.Scan(&day, &ds.Count, &ds.UniqueVisitors); err != nil {
			rows.Close()
			return nil, err
		}
		ds.Date = day.Format("2006-01-02")
		a.DailyStats = append(a.DailyStats, ds)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	daily, err := json.Marshal(a.DailyStats)
	if err != nil {
		return nil, err
	}
	var avgArg any
	if a.AvgDuration != nil {
		avgArg = *a.AvgDuration
	}
	if _, err := tx.ExecContext(ctx,
		`REPLACE INTO product_analytics
		 (product_id, total_visits, unique_visitors, avg_duration, daily_stats, last_updated)
		 VALUES (?,?,?,?,?,NOW())`,
		productID, a.TotalVisits, a.UniqueVisitors, avgArg, daily); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	a.LastUpdated = time.Now().UTC()
	return a, nil
}

// TopProducts returns the most visited products within [from, to), ranked by
// visit count descending and truncated to limit.
func (r *VisitRepo) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]model.ProductVisitCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, COUNT(*) AS total, COUNT(DISTINCT ip_hash)
		 FROM visits
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY product_id
		 ORDER BY total DESC
		 LIMIT ?`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProductVisitCount
	for rows.Next() {
		var c model.ProductVisitCount
		if err := rows.Scan(&c.ProductID, &c.TotalVisits, &c.UniqueVisitors); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// VisitCounts returns per-product visit totals within [from, to), used as
// the previous-window side of the popularity comparison.
func (r *VisitRepo) VisitCounts(ctx context.Context, from, to time.Time) (map[uint64]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, COUNT(*)
		 FROM visits
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY product_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]int64)
	for rows.Next() {
		var (
			id uint64
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
