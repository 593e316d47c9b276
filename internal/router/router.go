// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/railway-reservation/internal/handler"
	"github.com/iliyamo/railway-reservation/internal/middleware"
	"github.com/iliyamo/railway-reservation/internal/model"
)

// RegisterRoutes registers the operational endpoints: the health check
// used by load balancers and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers unauthenticated read endpoints.  Train
// listings are answered from the mirror index; limiter and cache wrap
// them so bursts of browsing never reach the engine.
func RegisterPublic(e *echo.Echo, t *handler.TrainHandler, b *handler.BookingHandler, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/trains", limiter, cache)
	g.GET("", t.List)
	g.GET("/search", t.Search)
	g.GET("/:id", t.Get)

	e.GET("/v1/bookings/pnr/:pnr", b.ByPNR, limiter)
}

// RegisterBooking registers the passenger endpoints.  Both roles may
// book; cancellation ownership is checked by the handler.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, t *handler.TrainHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolePassenger, model.RoleAdmin),
		limiter,
	)
	g.POST("/bookings", b.Create)
	g.DELETE("/bookings/:pnr", b.Cancel)
	g.GET("/bookings/mine", b.Mine)
	g.GET("/trains/:id/waiting-list", t.WaitingList)
}

// RegisterAdmin registers the ADMIN-only endpoints.
func RegisterAdmin(e *echo.Echo, t *handler.TrainHandler, b *handler.BookingHandler, r *handler.ReportHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/trains", t.Create)
	g.PATCH("/trains/:id/capacity", t.AdjustCapacity)
	g.DELETE("/trains/:id", t.Delete)
	g.GET("/bookings/all", b.All)
	g.GET("/reports/summary", r.Summary)
	g.POST("/admin/mirror/reload", r.ReloadMirror)
}
