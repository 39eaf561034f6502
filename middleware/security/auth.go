package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	sec "roomify/tools/security"
)

// CtxUserIDKey is where downstream handlers read the verified identity.
const CtxUserIDKey = "userId"

// Middleware authenticates REST requests with the same bearer credential the
// websocket handshake uses.
func Middleware(secret []byte) gin.HandlerFunc {
	opts := sec.DefaultOptions(secret)
	return func(c *gin.Context) {
		authz := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"message": "No token provided or token is invalid"})
			return
		}
		token := strings.TrimSpace(authz[len("bearer "):])

		userID, err := sec.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"message": "Token is not valid"})
			return
		}

		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}
