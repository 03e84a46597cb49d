package logging

import (
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	VersionID   string // snapshot committed for this turn, empty if none
	AgentID     string
	Turn        int
	TriggerType string // "turn" | "replay" | "create" | "restore"
	RecordJSON  string
	Decision    string // "commit" | "reject" | "no_snapshot"
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region turn-record
// TurnRecord captures everything decided during one agent turn.
// Serialized as JSON into provenance_log.record_json.
type TurnRecord struct {
	AgentID string        `json:"agent_id"`
	Outcome agent.Outcome `json:"outcome"`

	// Strength totals after the turn, for quick drift checks
	ExchangeStrengthSum    float64 `json:"exchange_strength_sum"`
	ConsumptionStrengthSum float64 `json:"consumption_strength_sum"`

	// Gate output (empty when no snapshot was attempted)
	GateAction   string  `json:"gate_action,omitempty"`
	GateReason   string  `json:"gate_reason,omitempty"`
	GateVetoed   bool    `json:"gate_vetoed,omitempty"`
	GateCoverage float64 `json:"gate_coverage,omitempty"`
}

// #endregion turn-record
