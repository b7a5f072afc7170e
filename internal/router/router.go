package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/prankroom/prank-studio/internal/config"
	"github.com/prankroom/prank-studio/internal/handler"    // import the handlers that implement business logic
	"github.com/prankroom/prank-studio/internal/middleware" // import middleware for JWT authentication
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  The health check backs load-balancer probes and
// the catalog endpoints feed the wizard's character/action pickers; the
// catalogs are static so they go through the Redis response cache.
func RegisterRoutes(e *echo.Echo, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	pub := e.Group("/v1/catalog")
	pub.Use(middleware.ResponseCache(cacheCfg, rdb))
	pub.GET("/characters", handler.GetCharacters)
	pub.GET("/actions", handler.GetActions)
	pub.GET("/packages", handler.GetTokenPackages)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth, while the protected
// profile endpoint lives under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterAPI registers the protected wizard-facing endpoints: photo
// upload and record creation, the atomic generation start, the model
// invoke, status reads, watermark removal, and token balance/purchase.
// All of them sit behind JWT auth and the Redis token-bucket limiter.
func RegisterAPI(e *echo.Echo, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client,
	photos *handler.PhotoHandler, gens *handler.GenerationHandler, tokens *handler.TokenHandler) {

	api := e.Group("/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	api.Use(middleware.NewTokenBucket(rlCfg, rdb))

	api.POST("/room-photos/upload", photos.Upload)
	api.POST("/room-photos", photos.CreateRecord)

	api.POST("/generations", gens.Start)
	api.GET("/generations/:id", gens.Get)
	api.POST("/generations/:id/remove-watermark", gens.RemoveWatermark)
	api.POST("/generate-image", gens.Invoke)

	api.GET("/tokens/balance", tokens.Balance)
	api.POST("/tokens/purchase", tokens.Purchase)
}
