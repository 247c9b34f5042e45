package middleware

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONBody limits request bodies to maxBytes and rejects bodies that are not
// declared as application/json with 415.
func JSONBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mt != "application/json" {
			respondError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "request body must be application/json")
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
