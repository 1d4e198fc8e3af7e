package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the REST routes and the middleware chain.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	// ClientIP uses the socket address only; forwarded headers are not trusted.
	_ = r.SetTrustedProxies(nil)

	r.Use(gin.Recovery())
	r.Use(RequestLogger(h.logger))
	r.Use(SecurityHeaders())
	r.Use(CORS(corsOrigins))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.RateLimit(common.EndpointRegister), h.Register)
			auth.POST("/login", h.RateLimit(common.EndpointLogin), h.Login)
			auth.POST("/refresh", h.RateLimit(common.EndpointAPI), h.Refresh)
			auth.POST("/logout", h.RequireAuth, h.RateLimit(common.EndpointAPI), h.Logout)
			auth.POST("/forgot-password", h.RateLimit(common.EndpointPasswordReset), h.ForgotPassword)
			auth.POST("/reset-password", h.RateLimit(common.EndpointPasswordReset), h.ResetPassword)
		}

		users := api.Group("/users", h.RequireAuth, h.RateLimit(common.EndpointAPI))
		{
			users.GET("/me", h.Me)
			users.PUT("/profile", h.UpdateProfile)
			users.PUT("/password", h.ChangePassword)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
	})

	return r
}
