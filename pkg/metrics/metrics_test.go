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

func TestObserveExtraction(t *testing.T) {
	c := New(false)

	c.ObserveExtraction("pattern", true, 2*time.Millisecond)
	c.ObserveExtraction("pattern", true, 3*time.Millisecond)
	c.ObserveExtraction("model:failed", false, time.Second)
	c.ObserveExtraction("", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.extractions.WithLabelValues("pattern", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.extractions.WithLabelValues("model:failed", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.extractions.WithLabelValues("none", "false")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.extractionDuration))
}

func TestObserveSync(t *testing.T) {
	c := New(false)

	c.ObserveSync(4, 1, 0, time.Second)
	c.ObserveSync(2, 0, 1, time.Second)

	assert.Equal(t, 6.0, testutil.ToFloat64(c.syncMessages.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.syncMessages.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.syncMessages.WithLabelValues("failed")))
}

func TestObserveRebuild(t *testing.T) {
	c := New(false)

	c.ObserveRebuild(3, 2, time.Second)
	c.ObserveRebuild(5, 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.rebuilds))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.seriesCount))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.skippedRows))
}

func TestHandler(t *testing.T) {
	c := New(false)
	c.ObserveRebuild(1, 0, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "ledger_recurring_rebuilds_total 1"))
	assert.NotContains(t, body, "go_goroutines")
}
