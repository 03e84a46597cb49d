package service

import (
	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
)

// Messages travel as google.protobuf.Struct; these are their typed forms.

// #region requests
type CreateAgentRequest struct {
	AgentID string        `json:"agent_id,omitempty"` // empty = server generates one
	Config  *agent.Config `json:"config,omitempty"`   // nil = server defaults
}

type DecideExchangeRequest struct {
	AgentID      string     `json:"agent_id"`
	ProposedGood goods.Good `json:"proposed_good"`
}

type ConsumptionRequest struct {
	AgentID       string `json:"agent_id"`
	TradeExecuted bool   `json:"trade_executed"`
}

type AgentRequest struct {
	AgentID string `json:"agent_id"`
}

// #endregion requests

// #region responses
type CreateAgentResponse struct {
	AgentID   string `json:"agent_id"`
	VersionID string `json:"version_id"`
}

type DecideExchangeResponse struct {
	Accepted bool           `json:"accepted"`
	Exchange classifier.Ref `json:"exchange"`
}

// ConsumptionResponse reports a settled turn. When GateAction is "reject"
// the agent was rolled back to its last committed version and Outcome is
// the discarded turn; Turn and HeldGood always describe the live agent.
type ConsumptionResponse struct {
	Outcome    agent.Outcome `json:"outcome"`
	Turn       int           `json:"turn"`
	HeldGood   goods.Good    `json:"held_good"`
	VersionID  string        `json:"version_id,omitempty"` // set when a snapshot was committed
	GateAction string        `json:"gate_action,omitempty"`
	GateReason string        `json:"gate_reason,omitempty"`
}

type StateResponse struct {
	AgentID         string     `json:"agent_id"`
	VersionID       string     `json:"version_id"`
	Turn            int        `json:"turn"`
	HeldGood        goods.Good `json:"held_good"`
	PreviousHeld    goods.Good `json:"previous_held_good"`
	ConsumptionFlag int        `json:"consumption_flag"`
}

type SnapshotResponse struct {
	VersionID  string         `json:"version_id,omitempty"`
	GateAction string         `json:"gate_action"`
	GateReason string         `json:"gate_reason"`
	Snapshot   agent.Snapshot `json:"snapshot"`
}

// #endregion responses
