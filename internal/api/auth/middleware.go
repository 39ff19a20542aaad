package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/engine"
)

func requireAuth(e *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := LoadUser(c, e.DB())
		if !ok {
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
				return
			}
			AddFlash(c, FlashInfo, "Please log in to access this page.")
			c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
