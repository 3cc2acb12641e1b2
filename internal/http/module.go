// Package http wires bounded-context modules into one gin engine.
package http

import (
	"portal_lead_distribution/platform/config"
	"portal_lead_distribution/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context with HTTP routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups and shared middleware a module
// mounts onto. Protected already runs AuthMiddleware.
type RouterContext struct {
	Engine           *gin.Engine
	V1               *gin.RouterGroup
	Protected        *gin.RouterGroup
	Config           config.JWTConfig
	AuthMiddleware   gin.HandlerFunc
	ClaimRateLimiter *httpkit.IPRateLimiter
}
