package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskpanel/internal/access"
)

// Guard lets the request through only when the session may open view.
// Otherwise it answers 303 to the login or unauthorized page with no body.
func Guard(view access.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := access.Check(CurrentSession(c), view)
		if decision == access.Allow {
			c.Next()
			return
		}

		c.Header("X-Guard-Decision", decision.String())
		c.Header("Location", decision.Location())
		c.AbortWithStatus(http.StatusSeeOther)
	}
}
