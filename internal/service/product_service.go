package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/product-watch/internal/model"
	"github.com/iliyamo/product-watch/internal/queue"
)

// CatalogStore is the slice of the product repository the service needs.
type CatalogStore interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	List(ctx context.Context, skip, limit int, name string) ([]model.Product, int64, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id uint64) error
}

// AdminDirectory resolves notification recipients: every admin user except
// the actor who triggered the change.
type AdminDirectory interface {
	AdminEmails(ctx context.Context, excludeID uint64) ([]string, error)
}

// ValidationError reports a malformed input field. This is the one error
// family that surfaces detail to clients, since it describes their own
// input rather than internal state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ProductPatch is an explicit partial update: nil fields are left alone,
// set fields are merged one by one. No reflection, no dynamic keys.
type ProductPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
}

func (p ProductPatch) apply(dst *model.Product) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Stock != nil {
		dst.Stock = *p.Stock
	}
}

// ProductService implements catalog CRUD with a per-product Redis cache
// shadow. Cache entries are transient copies keyed by id; every mutation
// invalidates the key so reads after a write observe the store. A nil Redis
// client disables caching without changing behavior otherwise.
type ProductService struct {
	store    CatalogStore
	admins   AdminDirectory
	notifier Notifier
	rdb      *redis.Client
	cacheTTL time.Duration
}

func NewProductService(store CatalogStore, admins AdminDirectory, notifier Notifier, rdb *redis.Client, cacheTTL time.Duration) *ProductService {
	return &ProductService{store: store, admins: admins, notifier: notifier, rdb: rdb, cacheTTL: cacheTTL}
}

func cacheKey(id uint64) string { return fmt.Sprintf("product:%d", id) }

// Get returns a product by id, serving from the cache shadow when present.
func (s *ProductService) Get(ctx context.Context, id uint64) (*model.Product, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey(id)).Result(); err == nil {
			var p model.Product
			if json.Unmarshal([]byte(raw), &p) == nil {
				return &p, nil
			}
		}
	}
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, p)
	return p, nil
}

// List returns one page of the catalog plus the total match count.
func (s *ProductService) List(ctx context.Context, skip, limit int, name string) ([]model.Product, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	return s.store.List(ctx, skip, limit, name)
}

// Create validates and inserts a new product, then notifies admins.
func (s *ProductService) Create(ctx context.Context, p *model.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return err
	}
	s.notify(ctx, queue.KindProductCreated, p, 0,
		fmt.Sprintf("New Product Created: %s", p.Name))
	return nil
}

// Update loads the product, merges the patch field by field, validates the
// result and writes it back, then invalidates the cache entry and notifies
// every admin except the actor.
func (s *ProductService) Update(ctx context.Context, id uint64, patch ProductPatch, actorID uint64) (*model.Product, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(p)
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	s.cacheDrop(ctx, id)
	s.notify(ctx, queue.KindProductUpdated, p, actorID,
		fmt.Sprintf("Product Updated: %s", p.Name))
	return p, nil
}

// Delete removes a product (with its visits and analytics) and drops the
// cache entry.
func (s *ProductService) Delete(ctx context.Context, id uint64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.cacheDrop(ctx, id)
	return nil
}

func validateProduct(p *model.Product) error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if p.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be greater than zero"}
	}
	if p.Stock < 0 {
		return &ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	return nil
}

// cachePut stores the product JSON under its id key, best effort.
func (s *ProductService) cachePut(ctx context.Context, p *model.Product) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(p.ID), raw, s.cacheTTL).Err(); err != nil {
		log.Printf("catalog: cache write failed for product %d: %v", p.ID, err)
	}
}

func (s *ProductService) cacheDrop(ctx context.Context, id uint64) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		log.Printf("catalog: cache invalidate failed for product %d: %v", id, err)
	}
}

// notify resolves recipients and enqueues a notification event. Any failure
// here is logged and swallowed; catalog writes never fail because the
// dispatch boundary is down.
func (s *ProductService) notify(ctx context.Context, kind string, p *model.Product, actorID uint64, subject string) {
	recipients, err := s.admins.AdminEmails(ctx, actorID)
	if err != nil {
		log.Printf("catalog: recipient lookup failed for %s: %v", kind, err)
		return
	}
	if len(recipients) == 0 {
		return
	}
	ev := queue.NotificationEvent{
		Kind:       kind,
		ProductID:  p.ID,
		Recipients: recipients,
		Subject:    subject,
		Body:       fmt.Sprintf("%s (price %.2f, stock %d)", p.Name, p.Price, p.Stock),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.notifier.Enqueue(ctx, ev); err != nil {
		log.Printf("catalog: notification enqueue failed for %s: %v", kind, err)
	}
}
