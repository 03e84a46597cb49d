package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/config"
	"github.com/danielpatrickdp/mkw-classifier/internal/logging"
	"github.com/danielpatrickdp/mkw-classifier/internal/replay"
	"github.com/danielpatrickdp/mkw-classifier/internal/state"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to recorded sessions JSON (fixture mode)")
	dbPath := flag.String("db", "", "path to mkw_agents.db (DB mode)")
	agentID := flag.String("agent", "", "agent whose logged turns are replayed (DB mode)")
	configPath := flag.String("config", "", "path to YAML config")
	workers := flag.Int("workers", 0, "parallel sessions (0 = config value)")
	seed := flag.Int64("seed", 0, "base seed for tie-breaking (0 = fixture seed, then clock)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	fixtureMode := *fixturePath != ""
	dbMode := *dbPath != ""
	if fixtureMode == dbMode || (dbMode && *agentID == "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/sessions.json [--workers N] [--seed S] [--json]")
		fmt.Fprintln(os.Stderr, "       replay --db path/to/mkw_agents.db --agent id [--config file] [--json]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if *workers > 0 {
		cfg.Replay.Workers = *workers
	}

	var sessions []replay.Session
	var baseSeed int64
	if fixtureMode {
		f, err := replay.LoadFixture(*fixturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if sessions, err = f.ToSessions(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		baseSeed = f.Seed
	} else {
		var override *agent.Config
		if *configPath != "" {
			override = &cfg.Agent
		}
		sess, err := sessionFromDB(*dbPath, *agentID, override)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		sessions = []replay.Session{sess}
	}
	if *seed != 0 {
		baseSeed = *seed
	}

	rc := replay.DefaultReplayConfig()
	rc.GateConfig = cfg.Gate.ToGateConfig()
	rc.Seed = baseSeed
	summaries, err := replay.RunAll(context.Background(), sessions, rc, cfg.Replay.Workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		if err := printJSON(summaries); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printTable(summaries)
}

// #endregion main

// #region db-extract

// sessionFromDB rebuilds an agent's logged turns as a recorded session. The
// partner's choice is only observable when the agent accepted: an executed
// trade means it accepted too, an unexecuted one means it refused. Only turns
// that survive in the agent's history are kept: a gate reject discards every
// turn since the last committed version, and a restore discards turns that
// were never committed.
func sessionFromDB(dbPath, agentID string, override *agent.Config) (replay.Session, error) {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return replay.Session{}, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	rec, err := store.GetAgent(agentID)
	if err != nil {
		return replay.Session{}, err
	}
	sess := replay.Session{ID: agentID, Config: rec.Config}
	if override != nil {
		sess.Config = *override
	}

	rows, err := store.DB().Query(
		`SELECT turn, trigger_type, decision, record_json FROM provenance_log
		 WHERE agent_id = ? ORDER BY id ASC`, agentID,
	)
	if err != nil {
		return replay.Session{}, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var h turnHistory
	for rows.Next() {
		var (
			turn       int
			trigger    string
			decision   sql.NullString
			recordJSON sql.NullString
		)
		if err := rows.Scan(&turn, &trigger, &decision, &recordJSON); err != nil {
			return replay.Session{}, fmt.Errorf("scan row: %w", err)
		}
		h.apply(agentID, turn, trigger, decision.String, recordJSON.String)
	}
	if err := rows.Err(); err != nil {
		return replay.Session{}, fmt.Errorf("iterate rows: %w", err)
	}
	if len(h.encounters) == 0 {
		return replay.Session{}, fmt.Errorf("no logged turns for agent %s", agentID)
	}
	sess.Encounters = h.encounters
	return sess, nil
}

// turnHistory folds provenance rows into the agent's surviving turns.
type turnHistory struct {
	committed  int // turn of the last committed version
	turns      []int
	encounters []replay.Encounter
}

func (h *turnHistory) apply(agentID string, turn int, trigger, decision, recordJSON string) {
	switch {
	case decision == "reject":
		h.truncate(h.committed)
		return
	case trigger == "restore":
		h.committed = turn
		h.truncate(turn)
		return
	case decision == "commit":
		h.committed = turn
	}
	if trigger != "turn" {
		return
	}
	tr := logging.ParseTurnRecord(recordJSON)
	if tr == nil {
		return
	}
	out := tr.Outcome
	h.truncate(out.Turn - 1)
	h.turns = append(h.turns, out.Turn)
	h.encounters = append(h.encounters, replay.Encounter{
		TurnID:        fmt.Sprintf("%s-%d", shortID(agentID), out.Turn),
		SubjectGood:   out.HeldAtExchange,
		PartnerGood:   out.Offered,
		SubjectChoice: out.Accepted,
		PartnerChoice: out.TradeExecuted,
	})
}

// truncate drops every turn after the given one.
func (h *turnHistory) truncate(turn int) {
	n := len(h.turns)
	for n > 0 && h.turns[n-1] > turn {
		n--
	}
	h.turns = h.turns[:n]
	h.encounters = h.encounters[:n]
}

// #endregion db-extract

// #region output

func printTable(summaries []replay.ReplaySummary) {
	fmt.Printf("%-12s| %6s| %6s| %7s| %6s| %6s| %6s| %6s| %7s| %10s| %s\n",
		"Session", "Turns", "Agree", "Rate", "AgAcc", "SubAcc", "Trades", "Eaten", "Rejects", "LogLik", "BIC")
	fmt.Printf("%-12s+%7s+%7s+%8s+%7s+%7s+%7s+%7s+%8s+%11s+%s\n",
		"------------", "-------", "-------", "--------", "-------", "-------", "-------", "-------", "--------", "-----------", "----------")

	var turns, agreements int
	var ll float64
	for _, s := range summaries {
		fmt.Printf("%-12s| %6d| %6d| %6.1f%%| %6d| %6d| %6d| %6d| %7d| %10.3f| %.3f\n",
			shortID(s.SessionID), s.TotalTurns, s.Agreements, 100*s.AgreementRate,
			s.AgentAccepts, s.SubjectAccepts, s.TradesExecuted, s.Consumptions, s.GateRejects,
			s.Fit.LogLikelihood, s.Fit.BIC)
		turns += s.TotalTurns
		agreements += s.Agreements
		ll += s.Fit.LogLikelihood
	}

	fmt.Println()
	if turns > 0 {
		fmt.Printf("Agreement: %d/%d (%.1f%%) across %d sessions\n",
			agreements, turns, 100*float64(agreements)/float64(turns), len(summaries))
		fmt.Printf("Total log-likelihood: %.3f\n", ll)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
