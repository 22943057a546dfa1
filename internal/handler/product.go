package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-watch/internal/middleware"
	"github.com/iliyamo/product-watch/internal/model"
	"github.com/iliyamo/product-watch/internal/repository"
	"github.com/iliyamo/product-watch/internal/service"
)

// ProductHandler serves catalog endpoints. Reads are public; writes sit
// behind the admin auth gate.
type ProductHandler struct {
	Products *service.ProductService
	Visits   *service.VisitService
}

func NewProductHandler(p *service.ProductService, v *service.VisitService) *ProductHandler {
	return &ProductHandler{Products: p, Visits: v}
}

type createProductReq struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type productListResp struct {
	Items []model.Product `json:"items"`
	Count int64           `json:"count"`
}

// List returns one page of products with the total count. Query params:
// skip (default 0), limit (default 100), name (substring filter).
func (h *ProductHandler) List(c echo.Context) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 100)
	name := c.QueryParam("name")

	ctx, cancel := reqCtx(c)
	defer cancel()

	items, total, err := h.Products.List(ctx, skip, limit, name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if items == nil {
		items = []model.Product{}
	}
	return c.JSON(http.StatusOK, productListResp{Items: items, Count: total})
}

// Popular returns the products ranked by recent visit counts.
func (h *ProductHandler) Popular(c echo.Context) error {
	limit := queryInt(c, "limit", 5)

	ctx, cancel := reqCtx(c)
	defer cancel()

	ranked, err := h.Visits.PopularProducts(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]model.Product, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, *r.Product)
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns a single product. The visit-tracking middleware wraps this
// route, so every successful fetch is also a recorded visit.
func (h *ProductHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, p)
}

// Create inserts a new product (admin only).
func (h *ProductHandler) Create(c echo.Context) error {
	var req createProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.Products.Create(ctx, p); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Update applies a partial update to a product (admin only). Absent JSON
// fields are left untouched.
func (h *ProductHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var patch service.ProductPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	var actorID uint64
	if u := middleware.CurrentUser(c); u != nil {
		actorID = u.ID
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Products.Update(ctx, id, patch, actorID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete removes a product and its visit history (admin only).
func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Products.Delete(ctx, id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- shared helpers -----

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

// writeServiceError maps service/repository failures onto the response
// taxonomy: validation detail for bad input, bare 404 for missing rows,
// opaque 500 for everything else.
func writeServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "field": ve.Field, "reason": ve.Reason})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
}
