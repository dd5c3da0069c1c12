package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks(t *testing.T) {
	m := New()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnTransactionOpened(ctx, &domain.StageEvent{To: domain.StageUnderContract})
	hooks.OnTaskUpdated(ctx, &domain.TaskEvent{Completed: true})
	hooks.OnTaskUpdated(ctx, &domain.TaskEvent{Completed: true})
	hooks.OnTaskUpdated(ctx, &domain.TaskEvent{Completed: false})
	hooks.OnStageAdvanced(ctx, &domain.StageEvent{From: domain.StageUnderContract, To: domain.StageInspectionPeriod})
	hooks.OnStageOverridden(ctx, &domain.StageEvent{From: domain.StageFinancing, To: domain.StageClosed})
	hooks.OnAdvanceConflict(ctx, &domain.StageEvent{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.opened))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.taskUpdates.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.taskUpdates.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageAdvances.WithLabelValues("under_contract", "inspection_period")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overrides.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))
}

func TestObserveHTTPAndHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPatch, "/tasks/{id}", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("PATCH", "/tasks/{id}", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `escrow_http_requests_total{code="200",method="PATCH",route="/tasks/{id}"} 1`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestNew_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.conflicts.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.conflicts))
}
