package middleware

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/product-watch/internal/service"
)

// SessionCookieName is the cookie carrying the opaque visit-session token.
const SessionCookieName = "visit_session_id"

// sessionCookieMaxAge keeps the anonymous session alive for 30 days.
const sessionCookieMaxAge = int(30 * 24 * time.Hour / time.Second)

// VisitTracking records a visit whenever a product detail page is fetched.
// It pulls the client IP (forwarded-for aware), user agent and session
// cookie, hands them to the visit service, and sets the HttpOnly session
// cookie when the client presented none. Tracking failures are logged and
// never break the product response.
func VisitTracking(visits *service.VisitService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				return next(c)
			}

			sessionID := ""
			if ck, err := c.Cookie(SessionCookieName); err == nil {
				sessionID = ck.Value
			}

			visit, err := visits.TrackVisit(
				c.Request().Context(),
				productID,
				ClientIP(c.Request()),
				c.Request().UserAgent(),
				sessionID,
			)
			if err != nil {
				// A view of a missing product is handled by the route;
				// anything else is a tracking problem, not the client's.
				log.Printf("visits: tracking failed for product %d: %v", productID, err)
				return next(c)
			}

			if sessionID == "" {
				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    visit.SessionID,
					MaxAge:   sessionCookieMaxAge,
					Path:     "/",
					HttpOnly: true,
				})
			}
			return next(c)
		}
	}
}
