package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGatewayMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewGatewayMetrics(reg)
	op := "create_refund"
	metrics.ObserveDuration(op, 250*time.Millisecond)
	metrics.IncSuccess(op)
	metrics.IncFailure(op, "timeout")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "payment_gateway_call_success_total", "op", op); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_gateway_call_failure_total", "reason", "timeout"); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "payment_gateway_call_duration_seconds", "op", op); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestInventoryAndWebhookCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	inv := NewInventoryMetrics(reg)
	hooks := NewWebhookMetrics(reg)

	inv.Observe("reserve", ResultOK)
	inv.Observe("reserve", ResultOK)
	inv.Observe("reserve", ResultInsufficient)
	hooks.Observe("checkout.session.completed", OutcomeDuplicate)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "inventory_operations_total", "result", ResultOK); err != nil || got != 2 {
		t.Fatalf("expected 2 ok reservations, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "webhook_events_total", "outcome", OutcomeDuplicate); err != nil || got != 1 {
		t.Fatalf("expected 1 duplicate webhook, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var inv *InventoryMetrics
	inv.Observe("reserve", ResultOK)
	NewWebhookMetrics(nil).Observe("x", OutcomeIgnored)
	NewGatewayMetrics(nil).IncFailure("x", "y")
	NewOutboxMetrics(nil).SetBacklog(3)
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Observe("kafka", "order.created", OutboxPublished)
	m.Observe("kafka", "order.created", OutboxRetry)
	m.SetBacklog(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_total", "outcome", OutboxPublished); err != nil || got != 1 {
		t.Fatalf("expected 1 published event, got %f (%v)", got, err)
	}
	backlog := findMetricFamily(mfs, "outbox_backlog")
	if backlog == nil || backlog.GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Fatalf("expected backlog gauge of 7, got %v", backlog)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
