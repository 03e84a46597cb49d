package replay

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/eval"
	"github.com/danielpatrickdp/mkw-classifier/internal/gate"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	"github.com/danielpatrickdp/mkw-classifier/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// #region types
// Encounter is one recorded turn of an experimental session.
type Encounter struct {
	TurnID        string
	SubjectGood   goods.Good // good the subject held when the turn started
	PartnerGood   goods.Good
	PartnerType   int
	Proportions   []float64 // market composition; carried through, not used by the classifiers
	SubjectChoice bool
	PartnerChoice bool
}

// Session is a recorded sequence of encounters for one subject.
type Session struct {
	ID         string
	Config     agent.Config
	Encounters []Encounter
}

// ReplayConfig bundles what a replay run needs beyond the sessions.
type ReplayConfig struct {
	GateConfig gate.GateConfig
	EvalConfig eval.EvalConfig
	Seed       int64 // base seed; session i uses Seed+i. 0 seeds from the clock.
}

// DefaultReplayConfig returns sensible defaults.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		GateConfig: gate.DefaultGateConfig(),
		EvalConfig: eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures one replayed turn.
type ReplayResult struct {
	TurnID string
	Action string // "commit" | "gate_reject"
	Reason string

	AgentAccepted bool
	SubjectChoice bool
	Agreed        bool

	Outcome      agent.Outcome
	GateDecision gate.GateDecision
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	SessionID      string
	TotalTurns     int
	Agreements     int
	AgreementRate  float64
	AgentAccepts   int
	SubjectAccepts int
	TradesExecuted int
	Consumptions   int
	GateRejects    int
	Fit            eval.EvalResult
	FinalSnapshot  agent.Snapshot
}

// #endregion types

// #region replay
// Replay drives a fresh learning agent through a recorded session. Each turn
// the agent's held good is aligned with the subject's, the agent decides, and
// the trade executes iff subject and partner both accepted in the recording.
// A snapshot vetoed by the gate rolls the agent back to its last good state.
func Replay(ctx context.Context, sess Session, rng *rand.Rand, config ReplayConfig) ([]ReplayResult, *agent.Agent, error) {
	a, err := agent.New(sess.Config, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	gateInst := gate.NewGate(config.GateConfig)
	lastGood := a.Snapshot()
	results := make([]ReplayResult, 0, len(sess.Encounters))

	for _, enc := range sess.Encounters {
		if err := ctx.Err(); err != nil {
			return results, a, err
		}

		// 1. Align with the subject's departure good
		if err := a.SetHeldGood(enc.SubjectGood); err != nil {
			return results, a, fmt.Errorf("session %s turn %s: subject good: %w", sess.ID, enc.TurnID, err)
		}

		// 2. Exchange decision
		accepted, err := a.DecideExchange(enc.PartnerGood)
		if err != nil {
			return results, a, fmt.Errorf("session %s turn %s: %w", sess.ID, enc.TurnID, err)
		}
		metrics.ObserveExchange(accepted)

		// 3. Consumption phase on the recorded market outcome
		out, err := a.RunConsumptionPhase(enc.SubjectChoice && enc.PartnerChoice)
		if err != nil {
			return results, a, fmt.Errorf("session %s turn %s: %w", sess.ID, enc.TurnID, err)
		}
		metrics.ObserveOutcome(out)

		r := ReplayResult{
			TurnID:        enc.TurnID,
			AgentAccepted: accepted,
			SubjectChoice: enc.SubjectChoice,
			Agreed:        accepted == enc.SubjectChoice,
			Outcome:       out,
		}

		// 4. Gate
		snap := a.Snapshot()
		r.GateDecision = gateInst.Evaluate(snap)
		if r.GateDecision.Action == "reject" {
			log.Printf("[REPLAY] session %s turn %s: %s, restoring turn %d", sess.ID, enc.TurnID, r.GateDecision.Reason, lastGood.Turn)
			a, err = agent.Restore(sess.Config, rng, lastGood)
			if err != nil {
				return results, a, fmt.Errorf("session %s turn %s: restore: %w", sess.ID, enc.TurnID, err)
			}
			r.Action = "gate_reject"
			r.Reason = r.GateDecision.Reason
			results = append(results, r)
			continue
		}

		// 5. Commit
		lastGood = snap
		r.Action = "commit"
		r.Reason = r.GateDecision.Reason
		results = append(results, r)
	}

	return results, a, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(sessionID string, results []ReplayResult, final agent.Snapshot) ReplaySummary {
	s := ReplaySummary{
		SessionID:     sessionID,
		TotalTurns:    len(results),
		FinalSnapshot: final,
	}
	for _, r := range results {
		if r.Agreed {
			s.Agreements++
		}
		if r.AgentAccepted {
			s.AgentAccepts++
		}
		if r.SubjectChoice {
			s.SubjectAccepts++
		}
		if r.Outcome.TradeExecuted {
			s.TradesExecuted++
		}
		if r.Outcome.Consumed {
			s.Consumptions++
		}
		if r.Action == "gate_reject" {
			s.GateRejects++
		}
	}
	if s.TotalTurns > 0 {
		s.AgreementRate = float64(s.Agreements) / float64(s.TotalTurns)
	}
	return s
}

// Choices pairs each turn's agent decision with the recorded subject choice.
func Choices(results []ReplayResult) []eval.Choice {
	out := make([]eval.Choice, len(results))
	for i, r := range results {
		out[i] = eval.Choice{Predicted: r.AgentAccepted, Observed: r.SubjectChoice}
	}
	return out
}

// #endregion replay

// #region run-all
// RunAll replays independent sessions on up to workers goroutines. Each
// session owns its agent and generator, so nothing is shared between workers.
// Summaries come back in session order.
func RunAll(ctx context.Context, sessions []Session, config ReplayConfig, workers int) ([]ReplaySummary, error) {
	if workers < 1 {
		workers = 1
	}
	summaries := make([]ReplaySummary, len(sessions))
	harness := eval.NewEvalHarness(config.EvalConfig)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sess := range sessions {
		i, sess := i, sess
		g.Go(func() error {
			seed := config.Seed
			if seed != 0 {
				seed += int64(i)
			}
			results, a, err := Replay(gCtx, sess, agent.NewRNG(seed), config)
			if err != nil {
				metrics.ObserveReplay("error")
				return err
			}
			metrics.ObserveReplay("ok")
			s := Summarize(sess.ID, results, a.Snapshot())
			s.Fit = harness.Run(Choices(results))
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// #endregion run-all
