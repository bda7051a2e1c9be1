package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		_, hasDeadline := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": hasDeadline})
	})
	return r
}

func serve(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if key != "" {
		req.Header.Set(ServiceKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestServiceKeyMiddleware(t *testing.T) {
	r := newEngine(ServiceKeyMiddleware([]string{"alpha", "beta"}))

	assert.Equal(t, http.StatusOK, serve(r, "alpha").Code)
	assert.Equal(t, http.StatusOK, serve(r, "beta").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "gamma").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
}

func TestServiceKeyMiddlewareWithoutKeys(t *testing.T) {
	r := newEngine(ServiceKeyMiddleware(nil))
	assert.Equal(t, http.StatusOK, serve(r, "").Code)
}

func TestRequestTimeout(t *testing.T) {
	rec := serve(newEngine(RequestTimeout(time.Second)), "")
	assert.JSONEq(t, `{"deadline":true}`, rec.Body.String())

	rec = serve(newEngine(RequestTimeout(0)), "")
	assert.JSONEq(t, `{"deadline":false}`, rec.Body.String())
}
