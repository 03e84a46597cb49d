package state

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id      TEXT PRIMARY KEY,
	config_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_snapshots (
	version_id    TEXT PRIMARY KEY,
	agent_id      TEXT NOT NULL,
	parent_id     TEXT,
	turn          INTEGER NOT NULL,
	header_json   TEXT NOT NULL,
	classifiers   BLOB NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (agent_id) REFERENCES agents(agent_id),
	FOREIGN KEY (parent_id) REFERENCES agent_snapshots(version_id)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_agent ON agent_snapshots(agent_id, turn);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT,
	agent_id      TEXT NOT NULL,
	turn          INTEGER NOT NULL,
	trigger_type  TEXT NOT NULL,
	record_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	agent_id      TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (agent_id) REFERENCES agents(agent_id),
	FOREIGN KEY (version_id) REFERENCES agent_snapshots(version_id)
);
`

// #endregion schema

// #region store-struct
// Store manages agents and their versioned classifier snapshots in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-migrated connection.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region agents
// RegisterAgent stores an agent's config. A fresh id is generated when agentID is empty.
func (s *Store) RegisterAgent(agentID string, cfg agent.Config) (AgentRecord, error) {
	if agentID == "" {
		agentID = uuid.New().String()
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("marshal config: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO agents (agent_id, config_json, created_at) VALUES (?, ?, ?)`,
		agentID, string(cfgJSON), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("insert agent %s: %w", agentID, err)
	}
	return AgentRecord{AgentID: agentID, Config: cfg, CreatedAt: now}, nil
}

// GetAgent reads a registered agent.
func (s *Store) GetAgent(agentID string) (AgentRecord, error) {
	var cfgJSON, createdStr string
	err := s.db.QueryRow(
		`SELECT config_json, created_at FROM agents WHERE agent_id = ?`, agentID,
	).Scan(&cfgJSON, &createdStr)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	rec := AgentRecord{AgentID: agentID}
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return AgentRecord{}, fmt.Errorf("unmarshal config: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// ListAgents returns every registered agent, oldest first.
func (s *Store) ListAgents() ([]AgentRecord, error) {
	rows, err := s.db.Query(`SELECT agent_id, config_json, created_at FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []AgentRecord
	for rows.Next() {
		var rec AgentRecord
		var cfgJSON, createdStr string
		if err := rows.Scan(&rec.AgentID, &cfgJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion agents

// #region commit-snapshot
// CommitSnapshot inserts a new version and moves the agent's active pointer to it.
// Missing VersionID and CreatedAt are filled in.
func (s *Store) CommitSnapshot(rec SnapshotRecord) (SnapshotRecord, error) {
	if rec.VersionID == "" {
		rec.VersionID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	hdrJSON, err := json.Marshal(toHeader(rec.Snapshot))
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("marshal header: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	var metricsPtr interface{}
	if rec.MetricsJSON != "" {
		metricsPtr = rec.MetricsJSON
	}

	blob := encodeStates(append(append([]classifier.State{}, rec.Snapshot.Exchange...), rec.Snapshot.Consumption...))
	_, err = tx.Exec(
		`INSERT INTO agent_snapshots (version_id, agent_id, parent_id, turn, header_json, classifiers, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.AgentID, parentPtr, rec.Snapshot.Turn, string(hdrJSON), blob,
		rec.CreatedAt.Format(time.RFC3339Nano), metricsPtr,
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (agent_id, version_id) VALUES (?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET version_id = excluded.version_id`,
		rec.AgentID, rec.VersionID,
	)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SnapshotRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion commit-snapshot

// #region get-current
// GetCurrent reads the agent's active snapshot.
func (s *Store) GetCurrent(agentID string) (SnapshotRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_snapshot WHERE agent_id = ?`, agentID).Scan(&versionID)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get active for %s: %w", agentID, err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific snapshot by version ID.
func (s *Store) GetVersion(id string) (SnapshotRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, agent_id, parent_id, header_json, classifiers, created_at, metrics_json
		 FROM agent_snapshots WHERE version_id = ?`, id,
	)
	rec, err := scanSnapshot(row)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region rollback
// Rollback points the agent's active snapshot at one of its earlier versions.
func (s *Store) Rollback(agentID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM agent_snapshots WHERE version_id = ? AND agent_id = ?`, targetVersionID, agentID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found for agent %s", targetVersionID, agentID)
	}

	_, err = s.db.Exec(`UPDATE active_snapshot SET version_id = ? WHERE agent_id = ?`, targetVersionID, agentID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the agent's most recent snapshots, newest first.
// limit <= 0 returns every version.
func (s *Store) ListVersions(agentID string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT version_id, agent_id, parent_id, header_json, classifiers, created_at, metrics_json
		 FROM agent_snapshots WHERE agent_id = ? ORDER BY turn DESC, created_at DESC LIMIT ?`, agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithProvenance is ListVersions joined with the latest provenance
// row written for each version.
func (s *Store) ListVersionsWithProvenance(agentID string, limit int) ([]VersionWithProvenance, error) {
	records, err := s.ListVersions(agentID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]VersionWithProvenance, 0, len(records))
	for _, rec := range records {
		vp := VersionWithProvenance{SnapshotRecord: rec}
		var recordJSON, reason sql.NullString
		err := s.db.QueryRow(
			`SELECT decision, reason, record_json FROM provenance_log
			 WHERE version_id = ? ORDER BY id DESC LIMIT 1`, rec.VersionID,
		).Scan(&vp.Decision, &reason, &recordJSON)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("provenance for %s: %w", rec.VersionID, err)
		}
		vp.Reason = reason.String
		vp.RecordJSON = recordJSON.String
		out = append(out, vp)
	}
	return out, nil
}

// #endregion list-versions

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var parentID, metricsJSON sql.NullString
	var hdrJSON, createdStr string
	var blob []byte

	if err := row.Scan(&rec.VersionID, &rec.AgentID, &parentID, &hdrJSON, &blob, &createdStr, &metricsJSON); err != nil {
		return SnapshotRecord{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	if metricsJSON.Valid {
		rec.MetricsJSON = metricsJSON.String
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	var h header
	if err := json.Unmarshal([]byte(hdrJSON), &h); err != nil {
		return SnapshotRecord{}, fmt.Errorf("unmarshal header: %w", err)
	}
	snap, err := fromHeader(h, decodeStates(blob))
	if err != nil {
		return SnapshotRecord{}, err
	}
	rec.Snapshot = snap
	return rec, nil
}

// #endregion scan

// #region header-encoding
func toHeader(s agent.Snapshot) header {
	h := header{
		Turn:            s.Turn,
		Held:            int(s.Held),
		PreviousHeld:    int(s.PreviousHeld),
		ConsumptionFlag: s.ConsumptionFlag,
		Offered:         int(s.Offered),
		ExchangeLen:     len(s.Exchange),
	}
	if s.ExchangeWinner != nil {
		h.ExchangeWinner = &refJSON{Tag: int(s.ExchangeWinner.Tag), Index: s.ExchangeWinner.Index}
	}
	if s.ConsumptionWinner != nil {
		h.ConsumptionWinner = &refJSON{Tag: int(s.ConsumptionWinner.Tag), Index: s.ConsumptionWinner.Index}
	}
	return h
}

func fromHeader(h header, states []classifier.State) (agent.Snapshot, error) {
	if h.ExchangeLen > len(states) {
		return agent.Snapshot{}, fmt.Errorf("classifier blob holds %d states, header expects at least %d", len(states), h.ExchangeLen)
	}
	s := agent.Snapshot{
		Turn:            h.Turn,
		Held:            goods.Good(h.Held),
		PreviousHeld:    goods.Good(h.PreviousHeld),
		ConsumptionFlag: h.ConsumptionFlag,
		Offered:         goods.Good(h.Offered),
		Exchange:        states[:h.ExchangeLen:h.ExchangeLen],
		Consumption:     states[h.ExchangeLen:],
	}
	if h.ExchangeWinner != nil {
		s.ExchangeWinner = &classifier.Ref{Tag: classifier.Tag(h.ExchangeWinner.Tag), Index: h.ExchangeWinner.Index}
	}
	if h.ConsumptionWinner != nil {
		s.ConsumptionWinner = &classifier.Ref{Tag: classifier.Tag(h.ConsumptionWinner.Tag), Index: h.ConsumptionWinner.Index}
	}
	return s, nil
}

// #endregion header-encoding

// #region state-encoding
// Each classifier is 12 bytes: float64 strength, uint32 theta, little-endian.
const stateSize = 12

func encodeStates(states []classifier.State) []byte {
	buf := make([]byte, len(states)*stateSize)
	for i, st := range states {
		binary.LittleEndian.PutUint64(buf[i*stateSize:], math.Float64bits(st.Strength))
		binary.LittleEndian.PutUint32(buf[i*stateSize+8:], uint32(st.Theta))
	}
	return buf
}

func decodeStates(b []byte) []classifier.State {
	n := len(b) / stateSize
	states := make([]classifier.State, n)
	for i := range states {
		off := i * stateSize
		states[i] = classifier.State{
			Strength: math.Float64frombits(binary.LittleEndian.Uint64(b[off:])),
			Theta:    int(binary.LittleEndian.Uint32(b[off+8:])),
		}
	}
	return states
}

// #endregion state-encoding
