package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-watch/internal/repository"
	"github.com/iliyamo/product-watch/internal/service"
)

// VisitHandler serves visit and analytics endpoints. Duration reporting is
// public (the browser beacons it on page leave); everything else is
// admin-gated.
type VisitHandler struct {
	Visits *service.VisitService
}

func NewVisitHandler(v *service.VisitService) *VisitHandler {
	return &VisitHandler{Visits: v}
}

// UpdateDuration sets the time-on-page of a visit once the client reports
// it. Duration arrives as a query parameter in whole seconds.
func (h *VisitHandler) UpdateDuration(c echo.Context) error {
	visitID, err := strconv.ParseUint(c.Param("visit_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid visit id"})
	}
	seconds, err := strconv.Atoi(c.QueryParam("duration"))
	if err != nil || seconds < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "field": "duration", "reason": "must be a non-negative integer"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Visits.UpdateVisitDuration(ctx, visitID, seconds); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "visit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"detail": "visit duration updated"})
}

// ProductVisits lists visits for a product (admin only). Optional
// start_date/end_date bounds use RFC 3339.
func (h *VisitHandler) ProductVisits(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	from, err := queryTime(c, "start_date")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "field": "start_date", "reason": "must be RFC 3339"})
	}
	to, err := queryTime(c, "end_date")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "field": "end_date", "reason": "must be RFC 3339"})
	}
	limit := queryInt(c, "limit", 100)

	ctx, cancel := reqCtx(c)
	defer cancel()

	visits, err := h.Visits.VisitsForProduct(ctx, id, from, to, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, visits)
}

// ProductAnalytics recomputes and returns the analytics snapshot for a
// product (admin only). Recomputing on read keeps the admin view exact even
// if a background trigger was missed.
func (h *VisitHandler) ProductAnalytics(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Visits.Recompute(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "analytics not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, a)
}

// Popular returns ranked products with their window stats and
// period-over-period change (admin only).
func (h *VisitHandler) Popular(c echo.Context) error {
	limit := queryInt(c, "limit", 5)

	ctx, cancel := reqCtx(c)
	defer cancel()

	ranked, err := h.Visits.PopularProducts(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if ranked == nil {
		ranked = []service.PopularProduct{}
	}
	return c.JSON(http.StatusOK, ranked)
}

func queryTime(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
