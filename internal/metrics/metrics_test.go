package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSDH(t *testing.T) {
	before := testutil.ToFloat64(SDHOperations.WithLabelValues("create_transport", "error"))
	ObserveSDH("create_transport", errors.New("boom"))
	after := testutil.ToFloat64(SDHOperations.WithLabelValues("create_transport", "error"))
	assert.Equal(t, before+1, after)
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHTTP(http.MethodGet, "/api/objects", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "invd_http_requests_total"))
	assert.True(t, strings.Contains(body, "invd_http_request_duration_seconds"))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
