package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := NewWorkflow(reg)

	w.PriceRecord(OutcomeRecorded)
	w.PriceRecord(OutcomeRecorded)
	w.PriceRecord(OutcomeConflict)
	w.CheckIn(OutcomeSuperseded)
	w.CheckOut(OutcomeNotFound)
	w.AgendaBulk(3, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(w.prices.WithLabelValues(OutcomeRecorded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.prices.WithLabelValues(OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.checkins.WithLabelValues("checkin", OutcomeSuperseded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.checkins.WithLabelValues("checkout", OutcomeNotFound)))
	assert.Equal(t, 3.0, testutil.ToFloat64(w.bulk.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.bulk.WithLabelValues("skipped")))
}

func TestNilRecordersAreNoops(t *testing.T) {
	var w *Workflow
	var h *HTTP
	assert.NotPanics(t, func() {
		w.PriceRecord(OutcomeRecorded)
		w.CheckIn(OutcomeCreated)
		w.AgendaBulk(1, 1)
		h.Observe("GET", "/api/agendas", 200, time.Millisecond)
		NewWorkflow(nil).CheckOut(OutcomeClosed)
	})
}

func TestHTTPObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)
	h.Observe("POST", "/api/prices", 201, 120*time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "radar_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
