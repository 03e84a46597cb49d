package state

import (
	"database/sql"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// helper: an agent that has played a few turns.
func playedAgent(t *testing.T, turns int) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.DefaultConfig(), rand.New(rand.NewSource(8)))
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	offers := []goods.Good{goods.Good0, goods.Good2, goods.Good1}
	for i := 0; i < turns; i++ {
		accept, err := a.DecideExchange(offers[i%len(offers)])
		if err != nil {
			t.Fatalf("DecideExchange: %v", err)
		}
		if _, err := a.RunConsumptionPhase(accept); err != nil {
			t.Fatalf("RunConsumptionPhase: %v", err)
		}
	}
	return a
}

func registered(t *testing.T, s *Store) AgentRecord {
	t.Helper()
	rec, err := s.RegisterAgent("", agent.DefaultConfig())
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	return rec
}

func TestRegisterAndGetAgent(t *testing.T) {
	s := tempDB(t)
	cfg := agent.DefaultConfig()
	cfg.B11 = 0.35

	rec, err := s.RegisterAgent("agent-1", cfg)
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if rec.AgentID != "agent-1" {
		t.Fatalf("expected agent-1, got %s", rec.AgentID)
	}

	got, err := s.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Config != cfg {
		t.Fatalf("config mismatch: %+v vs %+v", got.Config, cfg)
	}

	gen := registered(t, s)
	if gen.AgentID == "" {
		t.Fatal("expected generated agent ID")
	}

	all, err := s.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(all))
	}
}

func TestRegisterDuplicateAgent(t *testing.T) {
	s := tempDB(t)
	if _, err := s.RegisterAgent("dup", agent.DefaultConfig()); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if _, err := s.RegisterAgent("dup", agent.DefaultConfig()); err == nil {
		t.Fatal("expected error for duplicate agent id")
	}
}

func TestCommitAndGetCurrent(t *testing.T) {
	s := tempDB(t)
	ag := registered(t, s)
	a := playedAgent(t, 5)

	rec, err := s.CommitSnapshot(SnapshotRecord{AgentID: ag.AgentID, Snapshot: a.Snapshot()})
	if err != nil {
		t.Fatalf("CommitSnapshot: %v", err)
	}
	if rec.VersionID == "" {
		t.Fatal("expected generated version ID")
	}

	cur, err := s.GetCurrent(ag.AgentID)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != rec.VersionID {
		t.Fatalf("expected %s, got %s", rec.VersionID, cur.VersionID)
	}
	if !reflect.DeepEqual(cur.Snapshot, a.Snapshot()) {
		t.Fatal("snapshot did not round-trip")
	}

	b, err := agent.Restore(agent.DefaultConfig(), nil, cur.Snapshot)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if b.Turn() != 5 {
		t.Fatalf("expected turn 5, got %d", b.Turn())
	}
}

func TestCommitAndRollback(t *testing.T) {
	s := tempDB(t)
	ag := registered(t, s)
	a := playedAgent(t, 1)

	v1, err := s.CommitSnapshot(SnapshotRecord{AgentID: ag.AgentID, Snapshot: a.Snapshot()})
	if err != nil {
		t.Fatalf("CommitSnapshot: %v", err)
	}

	snap2 := a.Snapshot()
	snap2.Exchange[0] = classifier.State{Strength: 1.5, Theta: 3}
	snap2.Turn = 2
	v2, err := s.CommitSnapshot(SnapshotRecord{VersionID: "v2-test", AgentID: ag.AgentID, ParentID: v1.VersionID, Snapshot: snap2})
	if err != nil {
		t.Fatalf("CommitSnapshot: %v", err)
	}

	cur, _ := s.GetCurrent(ag.AgentID)
	if cur.VersionID != v2.VersionID {
		t.Fatalf("expected v2-test, got %s", cur.VersionID)
	}
	if cur.Snapshot.Exchange[0].Strength != 1.5 || cur.ParentID != v1.VersionID {
		t.Fatalf("unexpected v2 contents: %+v", cur.Snapshot.Exchange[0])
	}

	if err := s.Rollback(ag.AgentID, v1.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	cur, _ = s.GetCurrent(ag.AgentID)
	if cur.VersionID != v1.VersionID {
		t.Fatalf("expected %s after rollback, got %s", v1.VersionID, cur.VersionID)
	}
}

func TestRollbackNonExistent(t *testing.T) {
	s := tempDB(t)
	ag := registered(t, s)
	s.CommitSnapshot(SnapshotRecord{AgentID: ag.AgentID, Snapshot: playedAgent(t, 1).Snapshot()})

	if err := s.Rollback(ag.AgentID, "nonexistent-id"); err == nil {
		t.Fatal("expected error for non-existent version")
	}
}

func TestRollbackOtherAgentsVersion(t *testing.T) {
	s := tempDB(t)
	a1 := registered(t, s)
	a2 := registered(t, s)
	v, _ := s.CommitSnapshot(SnapshotRecord{AgentID: a1.AgentID, Snapshot: playedAgent(t, 1).Snapshot()})
	s.CommitSnapshot(SnapshotRecord{AgentID: a2.AgentID, Snapshot: playedAgent(t, 1).Snapshot()})

	if err := s.Rollback(a2.AgentID, v.VersionID); err == nil {
		t.Fatal("expected error rolling back to another agent's version")
	}
}

func TestCommitUnknownAgent(t *testing.T) {
	s := tempDB(t)
	_, err := s.CommitSnapshot(SnapshotRecord{AgentID: "ghost", Snapshot: playedAgent(t, 1).Snapshot()})
	if err == nil {
		t.Fatal("expected foreign key error for unregistered agent")
	}
}

func TestListVersions(t *testing.T) {
	s := tempDB(t)
	ag := registered(t, s)
	a := playedAgent(t, 0)

	var parent string
	for i := 0; i < 3; i++ {
		accept, _ := a.DecideExchange(goods.Good0)
		a.RunConsumptionPhase(accept)
		rec, err := s.CommitSnapshot(SnapshotRecord{AgentID: ag.AgentID, ParentID: parent, Snapshot: a.Snapshot()})
		if err != nil {
			t.Fatalf("CommitSnapshot: %v", err)
		}
		parent = rec.VersionID
	}

	versions, err := s.ListVersions(ag.AgentID, 10)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	if versions[0].Snapshot.Turn != 3 || versions[2].Snapshot.Turn != 1 {
		t.Fatalf("expected newest first, got turns %d..%d", versions[0].Snapshot.Turn, versions[2].Snapshot.Turn)
	}

	limited, _ := s.ListVersions(ag.AgentID, 2)
	if len(limited) != 2 {
		t.Fatalf("expected 2 versions with limit, got %d", len(limited))
	}
}

func TestListVersionsWithProvenance(t *testing.T) {
	s := tempDB(t)
	ag := registered(t, s)
	rec, _ := s.CommitSnapshot(SnapshotRecord{AgentID: ag.AgentID, Snapshot: playedAgent(t, 2).Snapshot()})

	_, err := s.DB().Exec(
		`INSERT INTO provenance_log (version_id, agent_id, turn, trigger_type, record_json, decision, reason, created_at)
		 VALUES (?, ?, 2, 'turn', '{"turn":2}', 'commit', 'ok', ?)`,
		rec.VersionID, ag.AgentID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		t.Fatalf("insert provenance: %v", err)
	}

	vps, err := s.ListVersionsWithProvenance(ag.AgentID, 5)
	if err != nil {
		t.Fatalf("ListVersionsWithProvenance: %v", err)
	}
	if len(vps) != 1 || vps[0].Decision != "commit" || vps[0].RecordJSON != `{"turn":2}` {
		t.Fatalf("unexpected rows: %+v", vps)
	}
}

func TestCommitWithMetricsJSON(t *testing.T) {
	s := tempDB(t)
	ag := registered(t, s)
	rec, err := s.CommitSnapshot(SnapshotRecord{
		AgentID:     ag.AgentID,
		Snapshot:    playedAgent(t, 1).Snapshot(),
		MetricsJSON: `{"strength_delta":0.5}`,
	})
	if err != nil {
		t.Fatalf("CommitSnapshot: %v", err)
	}
	got, err := s.GetVersion(rec.VersionID)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if got.MetricsJSON != `{"strength_delta":0.5}` {
		t.Fatalf("MetricsJSON mismatch: %q", got.MetricsJSON)
	}
	if got.ParentID != "" {
		t.Fatalf("expected empty ParentID, got %q", got.ParentID)
	}
}

func TestStatesRoundTrip(t *testing.T) {
	original := []classifier.State{{Strength: 0.1, Theta: 1}, {Strength: -2.75, Theta: 40}, {Strength: 1e-9, Theta: 7}}
	decoded := decodeStates(encodeStates(original))
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("mismatch: %v != %v", original, decoded)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetVersion("nonexistent-id"); err == nil {
		t.Fatal("expected error for nonexistent version")
	}
}

func TestGetCurrentNoActiveSnapshot(t *testing.T) {
	s := tempDB(t)
	ag := registered(t, s)
	if _, err := s.GetCurrent(ag.AgentID); err == nil {
		t.Fatal("expected error when no active snapshot exists")
	}
}

func TestCommitOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "test.db"))
	ag, _ := s.RegisterAgent("", agent.DefaultConfig())
	s.Close()

	_, err := s.CommitSnapshot(SnapshotRecord{AgentID: ag.AgentID, Snapshot: playedAgent(t, 1).Snapshot()})
	if err == nil {
		t.Fatal("expected error on closed DB")
	}
}

// corruptDB opens an in-memory SQLite with full schema via NewStoreWithDB.
func corruptDB(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	s := NewStoreWithDB(db)
	t.Cleanup(func() { db.Close() })
	return s, db
}

func TestGetVersion_BadHeaderJSON(t *testing.T) {
	s, db := corruptDB(t)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	db.Exec(`INSERT INTO agents (agent_id, config_json, created_at) VALUES ('a', '{}', ?)`, now)
	db.Exec(
		`INSERT INTO agent_snapshots (version_id, agent_id, parent_id, turn, header_json, classifiers, created_at)
		 VALUES ('bad-json', 'a', NULL, 0, 'not-json', ?, ?)`, []byte{}, now,
	)

	if _, err := s.GetVersion("bad-json"); err == nil {
		t.Fatal("expected unmarshal error for bad header JSON")
	}
}

func TestCommit_UpdateActiveFails(t *testing.T) {
	s, db := corruptDB(t)
	ag, err := s.RegisterAgent("", agent.DefaultConfig())
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	db.Exec("DROP TABLE active_snapshot")

	_, err = s.CommitSnapshot(SnapshotRecord{AgentID: ag.AgentID, Snapshot: playedAgent(t, 1).Snapshot()})
	if err == nil {
		t.Fatal("expected error when active_snapshot table is missing")
	}
}
