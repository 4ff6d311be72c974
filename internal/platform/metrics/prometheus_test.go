package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsManager_CountsAndExposes(t *testing.T) {
	m := NewMetricsManager("storefront_test")

	m.StaleDiscarded()
	m.StaleDiscarded()
	m.CartMutation("add")
	m.ObserveFetch("local", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StaleResponsesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartMutationsTotal.WithLabelValues("add")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storefront_test_stale_responses_discarded_total 2"))
}

func TestMetricsManager_NilIsSafe(t *testing.T) {
	var m *MetricsManager
	assert.NotPanics(t, func() {
		m.StaleDiscarded()
		m.CartMutation("add")
		m.FavoriteMutation("add", "ok")
		m.PersistFailed("cart")
		m.ObserveHTTP("GET", "/", 200, time.Now())
	})
}
