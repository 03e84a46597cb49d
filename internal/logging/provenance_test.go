package logging

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE provenance_log (
		version_id   TEXT,
		agent_id     TEXT NOT NULL,
		turn         INTEGER NOT NULL,
		trigger_type TEXT NOT NULL,
		record_json  TEXT,
		decision     TEXT NOT NULL,
		reason       TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		VersionID:   "v1",
		AgentID:     "a1",
		Turn:        3,
		TriggerType: "turn",
		RecordJSON:  `{"agent_id":"a1"}`,
		Decision:    "commit",
		Reason:      "passed gate",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var versionID, decision string
	var turn int
	db.QueryRow("SELECT version_id, decision, turn FROM provenance_log").Scan(&versionID, &decision, &turn)
	if versionID != "v1" {
		t.Errorf("expected version_id 'v1', got %q", versionID)
	}
	if decision != "commit" {
		t.Errorf("expected decision 'commit', got %q", decision)
	}
	if turn != 3 {
		t.Errorf("expected turn 3, got %d", turn)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogDecision(db, ProvenanceEntry{AgentID: "a2", TriggerType: "turn", Decision: "no_snapshot"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		AgentID:     "a3",
		TriggerType: "turn",
		Decision:    "reject",
		CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var versionID, recordJSON, reason sql.NullString
	db.QueryRow("SELECT version_id, record_json, reason FROM provenance_log").Scan(&versionID, &recordJSON, &reason)
	if versionID.Valid {
		t.Error("expected NULL version_id for empty string")
	}
	if recordJSON.Valid {
		t.Error("expected NULL record_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	err := LogDecision(db, ProvenanceEntry{AgentID: "a4", TriggerType: "turn", Decision: "commit"})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region turn-record-tests
func TestTurnRecordRoundTrip(t *testing.T) {
	a, err := agent.New(agent.DefaultConfig(), rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	accept, _ := a.DecideExchange(goods.Good0)
	out, err := a.RunConsumptionPhase(accept)
	if err != nil {
		t.Fatalf("RunConsumptionPhase: %v", err)
	}

	rec := NewTurnRecord("a5", a, out)
	rec.GateAction = "commit"
	s, err := rec.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	got := ParseTurnRecord(s)
	if got == nil {
		t.Fatal("expected parsed record")
	}
	if got.AgentID != "a5" || got.Outcome.Turn != 1 || got.GateAction != "commit" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Outcome.Consumption != out.Consumption {
		t.Fatalf("consumption ref mismatch: %v vs %v", got.Outcome.Consumption, out.Consumption)
	}
}

func TestParseTurnRecord_Invalid(t *testing.T) {
	if ParseTurnRecord("") != nil {
		t.Error("expected nil for empty input")
	}
	if ParseTurnRecord("{not json") != nil {
		t.Error("expected nil for invalid JSON")
	}
}

// #endregion turn-record-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
