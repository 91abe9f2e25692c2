package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tigerpop/marketplace/internal/handler"
	"github.com/tigerpop/marketplace/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently just the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the CAS login flow and token lifecycle endpoints.
// Unauthenticated operations live under /v1/auth; /v1/me requires a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	// The CAS flow is GET: the browser arrives here twice, once without
	// a ticket (redirect to CAS) and once with one (token exchange).
	g.GET("/cas/login", a.CASLogin)
	g.GET("/cas/logout", a.CASLogout)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes a refresh token in the body, or revokes every
	// session when called with only a bearer token.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT"))
	auth.GET("/me", a.Me)
	auth.DELETE("/me", a.DeleteMe)
}

// RegisterBrowse registers the unauthenticated browse endpoints.  The
// optional cache middleware is applied to the hot-items ranking, the
// one endpoint whose result is both popular and tolerant of short
// staleness.
func RegisterBrowse(e *echo.Echo, l *handler.ListingHandler, hh *handler.HeartHandler, cache echo.MiddlewareFunc) {
	if cache != nil {
		e.GET("/v1/listings/hot", hh.Hot, cache)
	} else {
		e.GET("/v1/listings/hot", hh.Hot)
	}
	e.GET("/v1/listings", l.List)
	e.GET("/v1/listings/:id", l.Get)
}

// RegisterListings wires the authenticated listing endpoints: create,
// edit, lifecycle, deletion, purchase requests and the seller's own
// inventory view.
func RegisterListings(e *echo.Echo, l *handler.ListingHandler, jwtSecret string) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT"))

	auth.POST("/listings", l.Create)
	auth.PUT("/listings/:id", l.Update)
	auth.PATCH("/listings/:id/status", l.UpdateStatus)
	auth.DELETE("/listings/:id", l.Delete)
	auth.POST("/listings/:id/request", l.Request)
	auth.GET("/my-listings", l.MyListings)
}

// RegisterAuction wires bid placement, the public bid history and the
// seller's close-bidding action.
func RegisterAuction(e *echo.Echo, b *handler.BidHandler, jwtSecret string) {
	e.GET("/v1/listings/:id/bids", b.List)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT"))
	auth.POST("/listings/:id/bids", b.Place)
	auth.POST("/listings/:id/close-bidding", b.Close)
}

// RegisterHearts wires favorites.
func RegisterHearts(e *echo.Echo, h *handler.HeartHandler, jwtSecret string) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT"))
	auth.POST("/listings/:id/heart", h.Heart)
	auth.DELETE("/listings/:id/heart", h.Unheart)
	auth.GET("/hearted", h.Hearted)
}

// RegisterUploads wires the image upload endpoint.
func RegisterUploads(e *echo.Echo, u *handler.UploadHandler, jwtSecret string) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT"))
	auth.POST("/uploads", u.Upload)
}
