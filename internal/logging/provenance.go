package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (version_id, agent_id, turn, trigger_type, record_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.AgentID,
		entry.Turn,
		entry.TriggerType,
		nullIfEmpty(entry.RecordJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region turn-record
// NewTurnRecord summarises an agent right after its consumption phase.
func NewTurnRecord(agentID string, a *agent.Agent, out agent.Outcome) TurnRecord {
	rec := TurnRecord{AgentID: agentID, Outcome: out}
	ex := a.ExchangeSystem()
	for i := 0; i < ex.Len(); i++ {
		rec.ExchangeStrengthSum += ex.At(i).Strength()
	}
	co := a.ConsumptionSystem()
	for i := 0; i < co.Len(); i++ {
		rec.ConsumptionStrengthSum += co.At(i).Strength()
	}
	return rec
}

// JSON renders the record for provenance_log.record_json.
func (r TurnRecord) JSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal turn record: %w", err)
	}
	return string(b), nil
}

// ParseTurnRecord decodes a stored record; it returns nil for empty or invalid input.
func ParseTurnRecord(s string) *TurnRecord {
	if s == "" {
		return nil
	}
	var r TurnRecord
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil
	}
	return &r
}

// #endregion turn-record

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
