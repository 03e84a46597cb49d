package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/gate"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	"github.com/danielpatrickdp/mkw-classifier/internal/logging"
	"github.com/danielpatrickdp/mkw-classifier/internal/metrics"
	"github.com/danielpatrickdp/mkw-classifier/internal/state"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server
// Server hosts learning agents behind the AgentService gRPC API. Agents are
// persisted through the store; every snapshotEvery turns a snapshot is passed
// through the gate and committed or rolled back.
type Server struct {
	store         *state.Store
	defaults      agent.Config
	gate          *gate.Gate
	snapshotEvery int
	agents        *registry
}

// NewServer creates a server. defaults configures agents created without an
// explicit config; snapshotEvery <= 0 disables per-turn snapshots.
func NewServer(store *state.Store, defaults agent.Config, gateCfg gate.GateConfig, snapshotEvery int) *Server {
	return &Server{
		store:         store,
		defaults:      defaults,
		gate:          gate.NewGate(gateCfg),
		snapshotEvery: snapshotEvery,
		agents:        newRegistry(),
	}
}

// Register attaches the service to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// MetricsInterceptor records request counts and latency per method.
func MetricsInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	metrics.ObserveRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
	return resp, err
}

// #endregion server

// #region create-agent
func (s *Server) CreateAgent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CreateAgentRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cfg := s.defaults
	if req.Config != nil {
		cfg = *req.Config
	}
	if req.AgentID != "" {
		if _, ok := s.agents.get(req.AgentID); ok {
			return nil, status.Errorf(codes.AlreadyExists, "agent %s exists", req.AgentID)
		}
		if _, err := s.store.GetAgent(req.AgentID); err == nil {
			return nil, status.Errorf(codes.AlreadyExists, "agent %s exists", req.AgentID)
		}
	}

	rng := agent.NewRNG(cfg.Seed)
	a, err := agent.New(cfg, rng)
	if err != nil {
		return nil, toStatus(err)
	}
	rec, err := s.store.RegisterAgent(req.AgentID, cfg)
	if err != nil {
		return nil, toStatus(err)
	}
	snap, err := s.store.CommitSnapshot(state.SnapshotRecord{AgentID: rec.AgentID, Snapshot: a.Snapshot()})
	if err != nil {
		return nil, toStatus(err)
	}
	if err := logging.LogDecision(s.store.DB(), logging.ProvenanceEntry{
		VersionID:   snap.VersionID,
		AgentID:     rec.AgentID,
		TriggerType: "create",
		Decision:    "commit",
		Reason:      "initial population",
	}); err != nil {
		log.Printf("[SERVICE] provenance for %s: %v", rec.AgentID, err)
	}

	s.agents.put(&session{id: rec.AgentID, cfg: cfg, rng: rng, agent: a, versionID: snap.VersionID})
	log.Printf("[SERVICE] created agent %s (version %s)", rec.AgentID, snap.VersionID)
	return toStruct(CreateAgentResponse{AgentID: rec.AgentID, VersionID: snap.VersionID})
}

// #endregion create-agent

// #region decide-exchange
func (s *Server) DecideExchange(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DecideExchangeRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.session(req.AgentID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	accepted, err := sess.agent.DecideExchange(req.ProposedGood)
	if err != nil {
		return nil, toStatus(err)
	}
	metrics.ObserveExchange(accepted)

	resp := DecideExchangeResponse{Accepted: accepted}
	if w := sess.agent.Snapshot().ExchangeWinner; w != nil {
		resp.Exchange = *w
	}
	return toStruct(resp)
}

// #endregion decide-exchange

// #region consumption-phase
func (s *Server) RunConsumptionPhase(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ConsumptionRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.session(req.AgentID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out, err := sess.agent.RunConsumptionPhase(req.TradeExecuted)
	if err != nil {
		return nil, toStatus(err)
	}
	metrics.ObserveOutcome(out)

	rec := logging.NewTurnRecord(sess.id, sess.agent, out)
	resp := ConsumptionResponse{Outcome: out}
	entry := logging.ProvenanceEntry{AgentID: sess.id, Turn: out.Turn, TriggerType: "turn", Decision: "no_snapshot"}

	if s.snapshotEvery > 0 && sess.agent.Turn()%s.snapshotEvery == 0 {
		versionID, decision, err := s.commit(sess)
		if err != nil {
			return nil, toStatus(err)
		}
		rec.GateAction = decision.Action
		rec.GateReason = decision.Reason
		rec.GateVetoed = decision.Vetoed
		rec.GateCoverage = decision.Coverage
		resp.VersionID = versionID
		resp.GateAction = decision.Action
		resp.GateReason = decision.Reason
		entry.VersionID = versionID
		entry.Decision = decision.Action
		entry.Reason = decision.Reason
	}

	resp.Turn = sess.agent.Turn()
	resp.HeldGood = sess.agent.HeldGood()

	if recJSON, err := rec.JSON(); err == nil {
		entry.RecordJSON = recJSON
	}
	if err := logging.LogDecision(s.store.DB(), entry); err != nil {
		log.Printf("[SERVICE] provenance for %s turn %d: %v", sess.id, out.Turn, err)
	}
	return toStruct(resp)
}

// #endregion consumption-phase

// #region get-state
func (s *Server) GetState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AgentRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.session(req.AgentID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	a := sess.agent
	return toStruct(StateResponse{
		AgentID:         sess.id,
		VersionID:       sess.versionID,
		Turn:            a.Turn(),
		HeldGood:        a.HeldGood(),
		PreviousHeld:    a.PreviousHeldGood(),
		ConsumptionFlag: a.ConsumptionFlag(),
	})
}

// #endregion get-state

// #region snapshot
// Snapshot gates and commits the agent's current state regardless of cadence.
func (s *Server) Snapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AgentRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.session(req.AgentID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	versionID, decision, err := s.commit(sess)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := logging.LogDecision(s.store.DB(), logging.ProvenanceEntry{
		VersionID:   versionID,
		AgentID:     sess.id,
		Turn:        sess.agent.Turn(),
		TriggerType: "snapshot",
		Decision:    decision.Action,
		Reason:      decision.Reason,
	}); err != nil {
		log.Printf("[SERVICE] provenance for %s: %v", sess.id, err)
	}
	return toStruct(SnapshotResponse{
		VersionID:  versionID,
		GateAction: decision.Action,
		GateReason: decision.Reason,
		Snapshot:   sess.agent.Snapshot(),
	})
}

// #endregion snapshot

// #region commit
// commit gates the session's current snapshot. A passing snapshot becomes the
// agent's new version; a vetoed one rolls the live agent back to the last
// committed version. Callers hold sess.mu.
func (s *Server) commit(sess *session) (string, gate.GateDecision, error) {
	snap := sess.agent.Snapshot()
	decision := s.gate.Evaluate(snap)

	if decision.Action == "reject" {
		log.Printf("[SERVICE] agent %s turn %d: %s", sess.id, snap.Turn, decision.Reason)
		prev, err := s.store.GetVersion(sess.versionID)
		if err != nil {
			return "", decision, fmt.Errorf("load version %s: %w", sess.versionID, err)
		}
		a, err := agent.Restore(sess.cfg, sess.rng, prev.Snapshot)
		if err != nil {
			return "", decision, fmt.Errorf("restore %s: %w", sess.versionID, err)
		}
		sess.agent = a
		return "", decision, nil
	}

	rec, err := s.store.CommitSnapshot(state.SnapshotRecord{
		AgentID:  sess.id,
		ParentID: sess.versionID,
		Snapshot: snap,
	})
	if err != nil {
		return "", decision, err
	}
	sess.versionID = rec.VersionID
	return rec.VersionID, decision, nil
}

// #endregion commit

// #region session-lookup
// session returns the live session for agentID, restoring it from its active
// snapshot when it is not resident.
func (s *Server) session(agentID string) (*session, error) {
	if agentID == "" {
		return nil, status.Error(codes.InvalidArgument, "agent_id is required")
	}
	return s.agents.getOrLoad(agentID, func() (*session, error) {
		rec, err := s.store.GetAgent(agentID)
		if err != nil {
			return nil, toStatus(err)
		}
		cur, err := s.store.GetCurrent(agentID)
		if err != nil {
			return nil, toStatus(err)
		}
		rng := agent.NewRNG(rec.Config.Seed)
		a, err := agent.Restore(rec.Config, rng, cur.Snapshot)
		if err != nil {
			return nil, toStatus(err)
		}
		if err := logging.LogDecision(s.store.DB(), logging.ProvenanceEntry{
			VersionID:   cur.VersionID,
			AgentID:     agentID,
			Turn:        a.Turn(),
			TriggerType: "restore",
			Decision:    "commit",
			Reason:      "loaded active snapshot",
		}); err != nil {
			log.Printf("[SERVICE] provenance for %s: %v", agentID, err)
		}
		log.Printf("[SERVICE] restored agent %s at turn %d (version %s)", agentID, a.Turn(), cur.VersionID)
		return &session{id: agentID, cfg: rec.Config, rng: rng, agent: a, versionID: cur.VersionID}, nil
	})
}

// #endregion session-lookup

// #region errors
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, goods.ErrInvalidGood), errors.Is(err, agent.ErrInvalidConfig):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, agent.ErrNoExchangeDecision):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion errors
