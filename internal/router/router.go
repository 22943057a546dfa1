// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-watch/internal/handler"
)

// Deps carries everything route registration needs: the handlers plus the
// two flavors of the auth gate and the visit-tracking middleware.
type Deps struct {
	Auth     *handler.AuthHandler
	Products *handler.ProductHandler
	Visits   *handler.VisitHandler

	UserGate  echo.MiddlewareFunc // any authenticated user
	AdminGate echo.MiddlewareFunc // admin users only
	Tracking  echo.MiddlewareFunc // visit capture on product detail
}

// Register wires every route of the service onto the Echo instance.
// Public reads carry no gate; catalog writes and analytics reads require
// the admin gate; logout and /me require any authenticated user.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Authentication endpoints.  Register/login/refresh mint their own
	// credentials, so they sit outside the gates.
	g := e.Group("/v1/auth")
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout, d.UserGate)

	e.GET("/v1/me", d.Auth.Me, d.UserGate)

	// Catalog.  The detail route is wrapped in visit tracking so every
	// successful view lands in the visits table.
	e.GET("/v1/products", d.Products.List)
	e.GET("/v1/products/popular", d.Products.Popular)
	e.GET("/v1/products/:id", d.Products.Get, d.Tracking)
	e.POST("/v1/products", d.Products.Create, d.AdminGate)
	e.PUT("/v1/products/:id", d.Products.Update, d.AdminGate)
	e.DELETE("/v1/products/:id", d.Products.Delete, d.AdminGate)

	// Visits and analytics.  Duration reporting is a public beacon; the
	// inspection endpoints are admin-only.
	e.POST("/v1/visits/track/:visit_id", d.Visits.UpdateDuration)
	e.GET("/v1/visits/product/:id", d.Visits.ProductVisits, d.AdminGate)
	e.GET("/v1/visits/analytics/product/:id", d.Visits.ProductAnalytics, d.AdminGate)
	e.GET("/v1/visits/popular", d.Visits.Popular, d.AdminGate)
}
