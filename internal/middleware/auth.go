package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"creator-ledger/internal/response"
	"creator-ledger/pkg/logging"

	"github.com/gin-gonic/gin"
)

// ServiceKeyHeader identifies the calling service
const ServiceKeyHeader = "X-Service-Key"

// ServiceKeyMiddleware accepts requests carrying one of keys in X-Service-Key.
// With no keys configured every request passes; that is only meant for local runs.
func ServiceKeyMiddleware(keys []string) gin.HandlerFunc {
	if len(keys) == 0 {
		logging.Warnf("No LEDGER_SERVICE_KEYS configured, ledger API is unauthenticated")
	}

	return func(c *gin.Context) {
		if len(keys) > 0 {
			key := c.GetHeader(ServiceKeyHeader)
			if key == "" {
				response.AbortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing "+ServiceKeyHeader)
				return
			}
			if !matchKey(keys, key) {
				response.AbortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid "+ServiceKeyHeader)
				return
			}
		}

		c.Set("request_time", time.Now())
		c.Next()
	}
}

func matchKey(keys []string, candidate string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(k), []byte(candidate))
	}
	return ok == 1
}
