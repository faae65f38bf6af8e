package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radar"

// Outcome labels shared by the workflow counters.
const (
	OutcomeRecorded   = "recorded"
	OutcomeCreated    = "created"
	OutcomeSuperseded = "superseded"
	OutcomeClosed     = "closed"
	OutcomeRetried    = "retried"
	OutcomeConflict   = "conflict"
	OutcomeRejected   = "rejected"
	OutcomeNotFound   = "not_found"
)

// Workflow counts ledger, presence and agenda writes. A nil *Workflow is a
// valid no-op recorder.
type Workflow struct {
	prices   *prometheus.CounterVec
	checkins *prometheus.CounterVec
	bulk     *prometheus.CounterVec
}

// NewWorkflow registers the workflow counters on the provided registerer.
func NewWorkflow(reg prometheus.Registerer) *Workflow {
	if reg == nil {
		return &Workflow{}
	}
	prices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_records_total",
		Help:      "Price submissions by outcome.",
	}, []string{"outcome"})
	checkins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkin_events_total",
		Help:      "Check-in and check-out events by outcome.",
	}, []string{"event", "outcome"})
	bulk := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agenda_bulk_items_total",
		Help:      "Agenda items received through bulk creation, by result.",
	}, []string{"result"})
	reg.MustRegister(prices, checkins, bulk)
	return &Workflow{prices: prices, checkins: checkins, bulk: bulk}
}

// PriceRecord counts one price submission.
func (w *Workflow) PriceRecord(outcome string) {
	if w == nil || w.prices == nil {
		return
	}
	w.prices.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// CheckIn counts one check-in attempt.
func (w *Workflow) CheckIn(outcome string) {
	if w == nil || w.checkins == nil {
		return
	}
	w.checkins.WithLabelValues("checkin", normalizeLabel(outcome)).Inc()
}

// CheckOut counts one check-out attempt.
func (w *Workflow) CheckOut(outcome string) {
	if w == nil || w.checkins == nil {
		return
	}
	w.checkins.WithLabelValues("checkout", normalizeLabel(outcome)).Inc()
}

// AgendaBulk counts inserted and skipped items of one batch.
func (w *Workflow) AgendaBulk(inserted, skipped int) {
	if w == nil || w.bulk == nil {
		return
	}
	w.bulk.WithLabelValues("inserted").Add(float64(inserted))
	w.bulk.WithLabelValues("skipped").Add(float64(skipped))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
