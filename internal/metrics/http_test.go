package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider, err := NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "test_app"))
	router.DELETE("/v1/records/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for _, path := range []string{"/v1/records/a", "/v1/records/b", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, path, nil))
	}

	output := scrape(t, provider)
	assertBizMetricLine(t, output, "test_app_http_requests_total",
		`method="DELETE",path="/v1/records/:id",status_code="204"`, "2")
	assertBizMetricLine(t, output, "test_app_http_requests_total",
		`method="DELETE",path="unknown",status_code="404"`, "1")
}

func TestRoutePattern(t *testing.T) {
	assert.Equal(t, "unknown", routePattern(""))
	assert.Equal(t, "/v1/records/:id", routePattern("/v1/records/:id"))
}
