package metrics

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/update"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExchange(t *testing.T) {
	before := testutil.ToFloat64(exchangeDecisions.WithLabelValues("accept"))
	ObserveExchange(true)
	ObserveExchange(false)
	if got := testutil.ToFloat64(exchangeDecisions.WithLabelValues("accept")); got != before+1 {
		t.Fatalf("expected %f, got %f", before+1, got)
	}
}

func TestObserveOutcome(t *testing.T) {
	consumeBefore := testutil.ToFloat64(consumptionDecisions.WithLabelValues("consume"))
	eatenBefore := testutil.ToFloat64(consumptions)
	tradesBefore := testutil.ToFloat64(tradesExecuted)
	commitBefore := testutil.ToFloat64(strengthUpdates.WithLabelValues("exchange", "commit"))
	noopBefore := testutil.ToFloat64(strengthUpdates.WithLabelValues("consumption", "no_op"))

	ObserveOutcome(agent.Outcome{
		ConsumeChosen:             true,
		Consumed:                  true,
		TradeExecuted:             true,
		ExchangeUpdate:            &update.Result{Strength: 0.2, Delta: -0.3, Decision: update.Decision{Action: "commit"}},
		PreviousConsumptionUpdate: &update.Result{Decision: update.Decision{Action: "no_op"}},
	})

	if got := testutil.ToFloat64(consumptionDecisions.WithLabelValues("consume")); got != consumeBefore+1 {
		t.Errorf("consume decisions: expected %f, got %f", consumeBefore+1, got)
	}
	if got := testutil.ToFloat64(consumptions); got != eatenBefore+1 {
		t.Errorf("consumptions: expected %f, got %f", eatenBefore+1, got)
	}
	if got := testutil.ToFloat64(tradesExecuted); got != tradesBefore+1 {
		t.Errorf("trades: expected %f, got %f", tradesBefore+1, got)
	}
	if got := testutil.ToFloat64(strengthUpdates.WithLabelValues("exchange", "commit")); got != commitBefore+1 {
		t.Errorf("exchange commits: expected %f, got %f", commitBefore+1, got)
	}
	if got := testutil.ToFloat64(strengthUpdates.WithLabelValues("consumption", "no_op")); got != noopBefore+1 {
		t.Errorf("consumption no_ops: expected %f, got %f", noopBefore+1, got)
	}
}

func TestObserveOutcomeWithoutUpdates(t *testing.T) {
	holdBefore := testutil.ToFloat64(consumptionDecisions.WithLabelValues("hold"))
	ObserveOutcome(agent.Outcome{})
	if got := testutil.ToFloat64(consumptionDecisions.WithLabelValues("hold")); got != holdBefore+1 {
		t.Fatalf("expected %f, got %f", holdBefore+1, got)
	}
}

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(serviceRequests.WithLabelValues("DecideExchange", "OK"))
	ObserveRequest("DecideExchange", "OK", 3*time.Millisecond)
	if got := testutil.ToFloat64(serviceRequests.WithLabelValues("DecideExchange", "OK")); got != before+1 {
		t.Fatalf("expected %f, got %f", before+1, got)
	}
}

func TestObserveReplay(t *testing.T) {
	before := testutil.ToFloat64(replaySessions.WithLabelValues("ok"))
	ObserveReplay("ok")
	if got := testutil.ToFloat64(replaySessions.WithLabelValues("ok")); got != before+1 {
		t.Fatalf("expected %f, got %f", before+1, got)
	}
}
