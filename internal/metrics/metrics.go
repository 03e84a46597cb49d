package metrics

import (
	"math"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/update"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region collectors
var (
	// exchangeDecisions counts exchange classifier decisions by action bit
	exchangeDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkw_exchange_decisions_total",
		Help: "Exchange decisions taken by learning agents",
	}, []string{"decision"})

	// consumptionDecisions counts consumption classifier decisions by action bit
	consumptionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkw_consumption_decisions_total",
		Help: "Consumption decisions taken by learning agents",
	}, []string{"decision"})

	consumptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mkw_consumptions_total",
		Help: "Turns on which an agent consumed its consumption good",
	})

	tradesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mkw_trades_executed_total",
		Help: "Trades the market reported as executed",
	})

	strengthUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkw_strength_updates_total",
		Help: "Classifier strength updates by population and update action",
	}, []string{"population", "action"})

	strengthDelta = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mkw_strength_delta",
		Help:    "Absolute strength correction applied per update",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"population"})

	serviceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkw_service_requests_total",
		Help: "Decision service RPCs by method and status code",
	}, []string{"method", "code"})

	serviceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mkw_service_request_duration_seconds",
		Help:    "Decision service RPC latency",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	}, []string{"method"})

	replaySessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkw_replay_sessions_total",
		Help: "Replayed recorded sessions by result",
	}, []string{"result"})
)

// #endregion collectors

// #region observe
// ObserveExchange records one exchange decision.
func ObserveExchange(accepted bool) {
	exchangeDecisions.WithLabelValues(acceptLabel(accepted)).Inc()
}

// ObserveOutcome records the consumption phase of one turn.
func ObserveOutcome(out agent.Outcome) {
	label := "hold"
	if out.ConsumeChosen {
		label = "consume"
	}
	consumptionDecisions.WithLabelValues(label).Inc()
	if out.Consumed {
		consumptions.Inc()
	}
	if out.TradeExecuted {
		tradesExecuted.Inc()
	}
	observeUpdate(classifier.TagExchange, out.ExchangeUpdate)
	observeUpdate(classifier.TagConsumption, out.PreviousConsumptionUpdate)
}

func observeUpdate(tag classifier.Tag, r *update.Result) {
	if r == nil {
		return
	}
	strengthUpdates.WithLabelValues(tag.String(), r.Decision.Action).Inc()
	if r.Decision.Action == "commit" {
		strengthDelta.WithLabelValues(tag.String()).Observe(math.Abs(r.Delta))
	}
}

// ObserveRequest records one service call.
func ObserveRequest(method, code string, elapsed time.Duration) {
	serviceRequests.WithLabelValues(method, code).Inc()
	serviceDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveReplay records the end of one replayed session ("ok" | "error").
func ObserveReplay(result string) {
	replaySessions.WithLabelValues(result).Inc()
}

// #endregion observe

// #region helpers
func acceptLabel(accepted bool) string {
	if accepted {
		return "accept"
	}
	return "reject"
}

// #endregion helpers
