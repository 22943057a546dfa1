// Package service holds the business operations between handlers and
// repositories: visit tracking with analytics recomputation, the product
// catalog, and the notification boundary.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/product-watch/internal/model"
	"github.com/iliyamo/product-watch/internal/repository"
	"github.com/iliyamo/product-watch/internal/utils"
)

// VisitStore is the slice of the visit repository the service needs. It is
// an interface so tests can substitute an in-memory double.
type VisitStore interface {
	InsertVisit(ctx context.Context, v *model.Visit) error
	GetVisit(ctx context.Context, id uint64) (*model.Visit, error)
	UpdateDuration(ctx context.Context, id uint64, seconds int) error
	ListByProduct(ctx context.Context, productID uint64, from, to *time.Time, limit int) ([]model.Visit, error)
	GetSession(ctx context.Context, sessionID string) (*model.VisitSession, error)
	CreateSession(ctx context.Context, sessionID string) error
	TouchSession(ctx context.Context, sessionID string) error
	RecomputeAnalytics(ctx context.Context, productID uint64) (*model.ProductAnalytics, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]model.ProductVisitCount, error)
	VisitCounts(ctx context.Context, from, to time.Time) (map[uint64]int64, error)
}

// ProductLookup is the catalog read the visit service performs: verifying a
// product exists before tracking against it, and resolving ranked ids back
// to catalog rows.
type ProductLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
}

// PopularProduct pairs a ranked product with its window stats.
type PopularProduct struct {
	Product          *model.Product `json:"product"`
	TotalVisits      int64          `json:"total_visits"`
	UniqueVisitors   int64          `json:"unique_visitors"`
	PercentageChange float64        `json:"percentage_change"`
}

// VisitService tracks visits, maintains anonymous sessions and keeps the
// per-product analytics snapshot fresh. Recomputation is synchronous on
// every tracked visit and duration update: analytics are always current
// after a write, at the cost of write amplification per visit.
type VisitService struct {
	visits   VisitStore
	products ProductLookup
}

func NewVisitService(visits VisitStore, products ProductLookup) *VisitService {
	return &VisitService{visits: visits, products: products}
}

// popularWindow is the rolling window length for both the ranking window
// and the comparison window before it.
const popularWindow = 30 * 24 * time.Hour

// ResolveSession returns the session id a visit should be recorded under.
// No id presented: mint a fresh one. Known id: bump its counter and
// last-visit time. Unknown id: re-adopt the client's claimed value with a
// fresh row. Re-adoption means two physical clients sharing a copied cookie
// would collide on one session; kept as-is since sessions only feed
// coarse visit counting.
func (s *VisitService) ResolveSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
		return sessionID, s.visits.CreateSession(ctx, sessionID)
	}
	_, err := s.visits.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		return sessionID, s.visits.TouchSession(ctx, sessionID)
	case err == repository.ErrNotFound:
		return sessionID, s.visits.CreateSession(ctx, sessionID)
	default:
		return "", err
	}
}

// TrackVisit records a visit to a product and synchronously recomputes its
// analytics snapshot. The raw IP is hashed before anything is stored.
func (s *VisitService) TrackVisit(ctx context.Context, productID uint64, rawIP, userAgent, sessionID string) (*model.Visit, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	sid, err := s.ResolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v := &model.Visit{
		ProductID: productID,
		IPHash:    utils.HashIP(rawIP),
		UserAgent: userAgent,
		SessionID: sid,
	}
	if err := s.visits.InsertVisit(ctx, v); err != nil {
		return nil, err
	}
	if _, err := s.visits.RecomputeAnalytics(ctx, productID); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateVisitDuration sets the reported page duration on a visit and
// recomputes the product's snapshot, since duration feeds avg_duration.
func (s *VisitService) UpdateVisitDuration(ctx context.Context, visitID uint64, seconds int) (*model.Visit, error) {
	v, err := s.visits.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := s.visits.UpdateDuration(ctx, visitID, seconds); err != nil {
		return nil, err
	}
	v.Duration = &seconds
	if _, err := s.visits.RecomputeAnalytics(ctx, v.ProductID); err != nil {
		return nil, err
	}
	return v, nil
}

// Recompute re-derives and stores the analytics snapshot for a product.
func (s *VisitService) Recompute(ctx context.Context, productID uint64) (*model.ProductAnalytics, error) {
	return s.visits.RecomputeAnalytics(ctx, productID)
}

// VisitsForProduct lists recent visits for a product with optional bounds.
func (s *VisitService) VisitsForProduct(ctx context.Context, productID uint64, from, to *time.Time, limit int) ([]model.Visit, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.visits.ListByProduct(ctx, productID, from, to, limit)
}

// PopularProducts ranks products by visit count over the trailing 30 days
// and compares each against the strictly preceding 30-day window. A product
// with previous-window visits gets (current-previous)/previous*100; one
// with none gets the 100.0 sentinel, a policy choice meaning "growth from
// zero", not a mathematical statement. Products deleted between the ranking
// query and the catalog lookup are silently skipped.
func (s *VisitService) PopularProducts(ctx context.Context, limit int) ([]PopularProduct, error) {
	if limit <= 0 {
		limit = 5
	}
	now := time.Now().UTC()
	windowStart := now.Add(-popularWindow)
	prevStart := now.Add(-2 * popularWindow)

	current, err := s.visits.TopProducts(ctx, windowStart, now, limit)
	if err != nil {
		return nil, err
	}
	previous, err := s.visits.VisitCounts(ctx, prevStart, windowStart)
	if err != nil {
		return nil, err
	}

	out := make([]PopularProduct, 0, len(current))
	for _, c := range current {
		p, err := s.products.GetByID(ctx, c.ProductID)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		change := 100.0
		if prev := previous[c.ProductID]; prev > 0 {
			change = float64(c.TotalVisits-prev) / float64(prev) * 100
		}
		out = append(out, PopularProduct{
			Product:          p,
			TotalVisits:      c.TotalVisits,
			UniqueVisitors:   c.UniqueVisitors,
			PercentageChange: change,
		})
	}
	return out, nil
}
