package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/product-watch/internal/model"
	"github.com/iliyamo/product-watch/internal/repository"
)

// memVisits is an in-memory VisitStore. Recomputation derives the snapshot
// from the stored visits the same way the SQL aggregation does.
type memVisits struct {
	visits     []*model.Visit
	sessions   map[string]*model.VisitSession
	snapshots  map[uint64]*model.ProductAnalytics
	nextID     uint64
	recomputes int
}

func newMemVisits() *memVisits {
	return &memVisits{
		sessions:  map[string]*model.VisitSession{},
		snapshots: map[uint64]*model.ProductAnalytics{},
	}
}

func (m *memVisits) InsertVisit(_ context.Context, v *model.Visit) error {
	m.nextID++
	v.ID = m.nextID
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	m.visits = append(m.visits, v)
	return nil
}

func (m *memVisits) GetVisit(_ context.Context, id uint64) (*model.Visit, error) {
	for _, v := range m.visits {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memVisits) UpdateDuration(_ context.Context, id uint64, seconds int) error {
	for _, v := range m.visits {
		if v.ID == id {
			d := seconds
			v.Duration = &d
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memVisits) ListByProduct(_ context.Context, productID uint64, from, to *time.Time, limit int) ([]model.Visit, error) {
	var out []model.Visit
	for _, v := range m.visits {
		if v.ProductID != productID {
			continue
		}
		if from != nil && !v.Timestamp.After(*from) {
			continue
		}
		if to != nil && v.Timestamp.After(*to) {
			continue
		}
		out = append(out, *v)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memVisits) GetSession(_ context.Context, sessionID string) (*model.VisitSession, error) {
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memVisits) CreateSession(_ context.Context, sessionID string) error {
	m.sessions[sessionID] = &model.VisitSession{SessionID: sessionID, VisitCount: 1}
	return nil
}

func (m *memVisits) TouchSession(_ context.Context, sessionID string) error {
	s, ok := m.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	s.VisitCount++
	return nil
}

func (m *memVisits) RecomputeAnalytics(_ context.Context, productID uint64) (*model.ProductAnalytics, error) {
	m.recomputes++
	a := &model.ProductAnalytics{ProductID: productID, LastUpdated: time.Now().UTC()}
	uniq := map[string]struct{}{}
	var durSum, durN int
	for _, v := range m.visits {
		if v.ProductID != productID {
			continue
		}
		a.TotalVisits++
		uniq[v.IPHash] = struct{}{}
		if v.Duration != nil {
			durSum += *v.Duration
			durN++
		}
	}
	a.UniqueVisitors = int64(len(uniq))
	if durN > 0 {
		avg := float64(durSum) / float64(durN)
		a.AvgDuration = &avg
	}
	m.snapshots[productID] = a
	return a, nil
}

func (m *memVisits) TopProducts(_ context.Context, from, to time.Time, limit int) ([]model.ProductVisitCount, error) {
	counts, err := m.VisitCounts(nil, from, to)
	if err != nil {
		return nil, err
	}
	uniq := map[uint64]map[string]struct{}{}
	for _, v := range m.visits {
		if !v.Timestamp.Before(from) && v.Timestamp.Before(to) {
			if uniq[v.ProductID] == nil {
				uniq[v.ProductID] = map[string]struct{}{}
			}
			uniq[v.ProductID][v.IPHash] = struct{}{}
		}
	}
	var out []model.ProductVisitCount
	for id, n := range counts {
		out = append(out, model.ProductVisitCount{
			ProductID:      id,
			TotalVisits:    n,
			UniqueVisitors: int64(len(uniq[id])),
		})
	}
	// Highest count first, mirroring the SQL ORDER BY.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].TotalVisits > out[i].TotalVisits {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memVisits) VisitCounts(_ context.Context, from, to time.Time) (map[uint64]int64, error) {
	counts := map[uint64]int64{}
	for _, v := range m.visits {
		if !v.Timestamp.Before(from) && v.Timestamp.Before(to) {
			counts[v.ProductID]++
		}
	}
	return counts, nil
}

type memCatalog struct {
	byID map[uint64]*model.Product
}

func (m *memCatalog) GetByID(_ context.Context, id uint64) (*model.Product, error) {
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func visitFixture() (*VisitService, *memVisits, *memCatalog) {
	store := newMemVisits()
	catalog := &memCatalog{byID: map[uint64]*model.Product{
		1: {ID: 1, Name: "widget"},
		2: {ID: 2, Name: "gadget"},
	}}
	return NewVisitService(store, catalog), store, catalog
}

func TestResolveSessionMintsWhenAbsent(t *testing.T) {
	svc, store, _ := visitFixture()
	ctx := context.Background()

	sid, err := svc.ResolveSession(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, sid)
	require.Contains(t, store.sessions, sid)
	assert.Equal(t, 1, store.sessions[sid].VisitCount)

	// Second visit under the same cookie bumps the counter.
	again, err := svc.ResolveSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, sid, again)
	assert.Equal(t, 2, store.sessions[sid].VisitCount)
}

func TestResolveSessionAdoptsUnknownID(t *testing.T) {
	svc, store, _ := visitFixture()

	sid, err := svc.ResolveSession(context.Background(), "client-invented-id")
	require.NoError(t, err)
	assert.Equal(t, "client-invented-id", sid)
	require.Contains(t, store.sessions, "client-invented-id")
	assert.Equal(t, 1, store.sessions["client-invented-id"].VisitCount)
}

func TestTrackVisitHashesIPAndRecomputes(t *testing.T) {
	svc, store, _ := visitFixture()

	v, err := svc.TrackVisit(context.Background(), 1, "192.168.1.1", "test-agent", "")
	require.NoError(t, err)

	assert.Equal(t,
		"c5eb5a4cc76a5cdb16e79864b9ccd26c3553f0c396d0a21bafb7be71c1efcd8c",
		v.IPHash)
	assert.NotEqual(t, "192.168.1.1", v.IPHash)
	assert.NotEmpty(t, v.SessionID)

	assert.Equal(t, 1, store.recomputes)
	snap := store.snapshots[1]
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.TotalVisits)
	assert.Equal(t, int64(1), snap.UniqueVisitors)
	assert.Nil(t, snap.AvgDuration)
}

func TestTrackVisitUnknownProduct(t *testing.T) {
	svc, store, _ := visitFixture()

	_, err := svc.TrackVisit(context.Background(), 404, "10.0.0.1", "ua", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, store.visits)
	assert.Zero(t, store.recomputes)
}

func TestUniqueVisitorsCountDistinctHashes(t *testing.T) {
	svc, store, _ := visitFixture()
	ctx := context.Background()

	_, err := svc.TrackVisit(ctx, 1, "10.0.0.1", "ua", "")
	require.NoError(t, err)
	_, err = svc.TrackVisit(ctx, 1, "10.0.0.1", "ua", "")
	require.NoError(t, err)
	_, err = svc.TrackVisit(ctx, 1, "10.0.0.2", "ua", "")
	require.NoError(t, err)

	snap := store.snapshots[1]
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), snap.TotalVisits)
	assert.Equal(t, int64(2), snap.UniqueVisitors)
}

func TestUpdateVisitDurationFeedsAverage(t *testing.T) {
	svc, store, _ := visitFixture()
	ctx := context.Background()

	var ids []uint64
	for range [3]int{} {
		v, err := svc.TrackVisit(ctx, 1, "10.0.0.1", "ua", "")
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}
	for i, d := range []int{60, 90, 120} {
		v, err := svc.UpdateVisitDuration(ctx, ids[i], d)
		require.NoError(t, err)
		require.NotNil(t, v.Duration)
		assert.Equal(t, d, *v.Duration)
	}

	snap := store.snapshots[1]
	require.NotNil(t, snap)
	require.NotNil(t, snap.AvgDuration)
	assert.InDelta(t, 90.0, *snap.AvgDuration, 1e-9)
}

func TestUpdateVisitDurationUnknownVisit(t *testing.T) {
	svc, _, _ := visitFixture()

	_, err := svc.UpdateVisitDuration(context.Background(), 12345, 30)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	svc, store, _ := visitFixture()
	ctx := context.Background()

	_, err := svc.TrackVisit(ctx, 1, "10.0.0.1", "ua", "")
	require.NoError(t, err)

	first, err := svc.Recompute(ctx, 1)
	require.NoError(t, err)
	second, err := svc.Recompute(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first.TotalVisits, second.TotalVisits)
	assert.Equal(t, first.UniqueVisitors, second.UniqueVisitors)
	assert.Len(t, store.visits, 1) // recomputing writes no new rows
}

func TestPopularProductsPercentageChange(t *testing.T) {
	svc, store, _ := visitFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	seed := func(productID uint64, at time.Time, n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, store.InsertVisit(ctx, &model.Visit{
				ProductID: productID,
				IPHash:    "h",
				SessionID: "s",
				Timestamp: at,
			}))
		}
	}

	// Product 1: 6 visits this window vs 4 the window before -> +50%.
	seed(1, now.Add(-24*time.Hour), 6)
	seed(1, now.Add(-45*24*time.Hour), 4)
	// Product 2: 2 visits this window, none before -> the growth-from-zero
	// sentinel of exactly 100.
	seed(2, now.Add(-24*time.Hour), 2)

	ranked, err := svc.PopularProducts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, uint64(1), ranked[0].Product.ID)
	assert.Equal(t, int64(6), ranked[0].TotalVisits)
	assert.InDelta(t, 50.0, ranked[0].PercentageChange, 1e-9)

	assert.Equal(t, uint64(2), ranked[1].Product.ID)
	assert.Equal(t, int64(2), ranked[1].TotalVisits)
	assert.InDelta(t, 100.0, ranked[1].PercentageChange, 1e-9)
}

func TestPopularProductsSkipsDeletedCatalogRows(t *testing.T) {
	svc, store, catalog := visitFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []uint64{1, 2} {
		require.NoError(t, store.InsertVisit(ctx, &model.Visit{
			ProductID: id, IPHash: "h", SessionID: "s", Timestamp: now.Add(-time.Hour),
		}))
	}
	delete(catalog.byID, 2)

	ranked, err := svc.PopularProducts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, uint64(1), ranked[0].Product.ID)
}

func TestVisitsForProductDefaultLimit(t *testing.T) {
	svc, store, _ := visitFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.InsertVisit(ctx, &model.Visit{
		ProductID: 1, IPHash: "h", SessionID: "s", Timestamp: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, store.InsertVisit(ctx, &model.Visit{
		ProductID: 1, IPHash: "h", SessionID: "s", Timestamp: now.Add(-time.Minute),
	}))

	from := now.Add(-time.Hour)
	got, err := svc.VisitsForProduct(ctx, 1, &from, nil, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
