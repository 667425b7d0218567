package metricsvc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomodb/core/bootstrap"
)

func TestRecorder(t *testing.T) {
	rec := New()

	rec.ObserveStep(bootstrap.StepVerifyTables, bootstrap.Success)
	rec.ObserveStep(bootstrap.StepSeedGrading, bootstrap.Warning)
	rec.ObserveStep(bootstrap.StepSeedGrading, bootstrap.Warning)
	rec.ObserveRun(bootstrap.InitializationReport{Success: true, Duration: 2 * time.Second, Warnings: []string{"a", "b"}})
	rec.ObserveRun(bootstrap.InitializationReport{Success: false, Duration: time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.steps.WithLabelValues(bootstrap.StepVerifyTables, "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.steps.WithLabelValues(bootstrap.StepSeedGrading, "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.runs.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.warnings))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.duration))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	rec.Handler().ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `masomo_bootstrap_runs_total{outcome="success"} 1`)
	assert.Contains(t, res.Body.String(), "masomo_bootstrap_run_duration_seconds_count 2")
}
