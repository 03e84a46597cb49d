package state

import (
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
)

// #region snapshot-record
// SnapshotRecord is a versioned snapshot of one agent's classifier state.
type SnapshotRecord struct {
	VersionID   string
	AgentID     string
	ParentID    string
	Snapshot    agent.Snapshot
	CreatedAt   time.Time
	MetricsJSON string
}

// #endregion snapshot-record

// #region agent-record
// AgentRecord is a registered agent and the config it was built with.
type AgentRecord struct {
	AgentID   string
	Config    agent.Config
	CreatedAt time.Time
}

// #endregion agent-record

// #region version-with-provenance
// VersionWithProvenance pairs a snapshot with the provenance row that produced it.
type VersionWithProvenance struct {
	SnapshotRecord
	Decision   string
	Reason     string
	RecordJSON string
}

// #endregion version-with-provenance

// #region header
// header is the JSON-encoded part of a snapshot; classifier states go in a blob.
type header struct {
	Turn              int      `json:"turn"`
	Held              int      `json:"held"`
	PreviousHeld      int      `json:"previous_held"`
	ConsumptionFlag   int      `json:"consumption_flag"`
	Offered           int      `json:"offered"`
	ExchangeWinner    *refJSON `json:"exchange_winner,omitempty"`
	ConsumptionWinner *refJSON `json:"consumption_winner,omitempty"`
	ExchangeLen       int      `json:"exchange_len"`
}

type refJSON struct {
	Tag   int `json:"tag"`
	Index int `json:"index"`
}

// #endregion header
