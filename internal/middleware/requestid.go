package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/httputil"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = httputil.RequestIDKey

	// RequestIDHeader is the HTTP header used to propagate the request ID.
	RequestIDHeader = "X-Request-ID"

	// SearchIDKey is the gin context key a handler sets once a search has run.
	SearchIDKey = "search_id"

	// SearchIDHeader carries the search ID of a screening response, so a
	// caller can fetch the stored report later without parsing the body.
	SearchIDHeader = "X-Search-ID"
)

// RequestID always generates a fresh server-side UUID for the canonical request ID.
// A client-supplied X-Request-ID is only logged next to it.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()

		if clientID := c.GetHeader(RequestIDHeader); clientID != "" {
			log.WithFields(logrus.Fields{
				"request_id":        id,
				"client_request_id": clientID,
			}).Debug("client request ID mapped to server ID")
			c.Set("client_request_id", clientID)
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// TagSearch records searchID on the request: it is logged with the request
// and returned in the X-Search-ID header. Call it before writing the body.
func TagSearch(c *gin.Context, searchID uuid.UUID) {
	c.Set(SearchIDKey, searchID.String())
	c.Header(SearchIDHeader, searchID.String())
}
