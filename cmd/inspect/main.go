package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/classifier"
	"github.com/danielpatrickdp/mkw-classifier/internal/logging"
	"github.com/danielpatrickdp/mkw-classifier/internal/state"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to mkw_agents.db")
	agentID := flag.String("agent", "", "agent to inspect (lists agents when empty)")
	last := flag.Int("last", 20, "show N most recent versions")
	version := flag.String("version", "", "show single version detail")
	top := flag.Int("top", 5, "strongest classifiers per population in detail mode")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/mkw_agents.db [--agent id] [--last N] [--version id] [--top N] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *version != "":
		err = runDetailMode(store, *version, *top, *jsonOut)
	case *agentID != "":
		err = runListMode(store, *agentID, *last, *jsonOut)
	default:
		err = runAgentsMode(store, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region agents-mode

type agentRow struct {
	AgentID   string `json:"agent_id"`
	Produces  int    `json:"production_good"`
	Consumes  int    `json:"consumption_good"`
	Turn      int    `json:"turn"`
	VersionID string `json:"version_id"`
	CreatedAt string `json:"created_at"`
}

func runAgentsMode(store *state.Store, jsonOut bool) error {
	agents, err := store.ListAgents()
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Fprintln(os.Stderr, "no agents found")
		return nil
	}

	rows := make([]agentRow, len(agents))
	for i, a := range agents {
		rows[i] = agentRow{
			AgentID:   a.AgentID,
			Produces:  int(a.Config.ProductionGood),
			Consumes:  int(a.Config.ConsumptionGood),
			CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if cur, err := store.GetCurrent(a.AgentID); err == nil {
			rows[i].Turn = cur.Snapshot.Turn
			rows[i].VersionID = cur.VersionID
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-36s  %4s  %4s  %6s  %-12s  %s\n", "Agent", "Prod", "Cons", "Turn", "Version", "Created")
	fmt.Printf("%-36s+-%4s+-%4s+-%6s+-%-12s+-%s\n",
		"------------------------------------", "----", "----", "------", "------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-36s  %4d  %4d  %6d  %-12s  %s\n",
			r.AgentID, r.Produces, r.Consumes, r.Turn, shortID(r.VersionID), r.CreatedAt)
	}
	return nil
}

// #endregion agents-mode

// #region list-mode

type listRow struct {
	VersionID      string   `json:"version_id"`
	Turn           int      `json:"turn"`
	Held           int      `json:"held_good"`
	Decision       string   `json:"decision"`
	Reason         string   `json:"reason,omitempty"`
	ExchangeSum    *float64 `json:"exchange_strength_sum,omitempty"`
	ConsumptionSum *float64 `json:"consumption_strength_sum,omitempty"`
	Coverage       float64  `json:"coverage"`
	CreatedAt      string   `json:"created_at"`
}

func runListMode(store *state.Store, agentID string, last int, jsonOut bool) error {
	versions, err := store.ListVersionsWithProvenance(agentID, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// Build rows (store returns DESC, reverse for chronological)
	rows := make([]listRow, len(versions))
	for i, vp := range versions {
		lr := listRow{
			VersionID: vp.VersionID,
			Turn:      vp.Snapshot.Turn,
			Held:      int(vp.Snapshot.Held),
			Decision:  vp.Decision,
			Reason:    vp.Reason,
			Coverage:  coverage(vp.Snapshot),
			CreatedAt: vp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if tr := logging.ParseTurnRecord(vp.RecordJSON); tr != nil {
			ex, co := tr.ExchangeStrengthSum, tr.ConsumptionStrengthSum
			lr.ExchangeSum = &ex
			lr.ConsumptionSum = &co
		}
		rows[len(versions)-1-i] = lr
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-12s  %6s  %4s  %-12s  %10s  %10s  %8s  %s\n",
		"Version", "Turn", "Held", "Decision", "Exch Sum", "Cons Sum", "Coverage", "Time")
	fmt.Printf("%-12s+-%6s+-%4s+-%-12s+-%10s+-%10s+-%8s+-%s\n",
		"------------", "------", "----", "------------", "----------", "----------", "--------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %6d  %4d  %-12s  %10s  %10s  %8.2f  %s\n",
			shortID(r.VersionID), r.Turn, r.Held, r.Decision, optFloat(r.ExchangeSum), optFloat(r.ConsumptionSum),
			r.Coverage, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type classifierRow struct {
	Index    int     `json:"index"`
	Own      string  `json:"own"`
	Partner  string  `json:"partner,omitempty"`
	Decision string  `json:"decision"`
	Strength float64 `json:"strength"`
	Theta    int     `json:"theta"`
	Bid      float64 `json:"bid"`
}

type detailOutput struct {
	VersionID   string          `json:"version_id"`
	AgentID     string          `json:"agent_id"`
	ParentID    string          `json:"parent_id"`
	CreatedAt   string          `json:"created_at"`
	Turn        int             `json:"turn"`
	Held        int             `json:"held_good"`
	Exchange    []classifierRow `json:"exchange"`
	Consumption []classifierRow `json:"consumption"`
}

func runDetailMode(store *state.Store, versionID string, top int, jsonOut bool) error {
	rec, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	ag, err := store.GetAgent(rec.AgentID)
	if err != nil {
		return err
	}
	a, err := agent.Restore(ag.Config, nil, rec.Snapshot)
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: rec.VersionID,
		AgentID:   rec.AgentID,
		ParentID:  rec.ParentID,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Turn:      rec.Snapshot.Turn,
		Held:      int(rec.Snapshot.Held),
	}
	ex := a.ExchangeSystem()
	for i := 0; i < ex.Len(); i++ {
		c := ex.At(i)
		out.Exchange = append(out.Exchange, classifierRow{
			Index: i, Own: fmt.Sprint(c.Own()), Partner: fmt.Sprint(c.Partner()),
			Decision: decisionName(c.Decision()), Strength: c.Strength(), Theta: c.Theta(), Bid: c.Bid(),
		})
	}
	co := a.ConsumptionSystem()
	for i := 0; i < co.Len(); i++ {
		c := co.At(i)
		out.Consumption = append(out.Consumption, classifierRow{
			Index: i, Own: fmt.Sprint(c.Own()),
			Decision: decisionName(c.Decision()), Strength: c.Strength(), Theta: c.Theta(), Bid: c.Bid(),
		})
	}
	out.Exchange = strongest(out.Exchange, top)
	out.Consumption = strongest(out.Consumption, top)

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:  %s\n", out.VersionID)
	fmt.Printf("Agent:    %s\n", out.AgentID)
	fmt.Printf("Parent:   %s\n", out.ParentID)
	fmt.Printf("Created:  %s\n", out.CreatedAt)
	fmt.Printf("Turn:     %d\n", out.Turn)
	fmt.Printf("Held:     %d\n", out.Held)

	fmt.Printf("\nExchange classifiers (strongest %d):\n", len(out.Exchange))
	for _, r := range out.Exchange {
		fmt.Printf("  #%-3d own %-10s partner %-10s %-8s s=%9.4f theta=%-5d bid=%.4f\n",
			r.Index, r.Own, r.Partner, r.Decision, r.Strength, r.Theta, r.Bid)
	}
	fmt.Printf("\nConsumption classifiers (strongest %d):\n", len(out.Consumption))
	for _, r := range out.Consumption {
		fmt.Printf("  #%-3d own %-10s %-8s s=%9.4f theta=%-5d bid=%.4f\n",
			r.Index, r.Own, r.Decision, r.Strength, r.Theta, r.Bid)
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func strongest(rows []classifierRow, n int) []classifierRow {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Strength > rows[j].Strength })
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	return rows
}

func decisionName(d classifier.Decision) string {
	if d == classifier.Accept {
		return "accept"
	}
	return "reject"
}

// coverage is the share of classifiers that have won at least once.
func coverage(s agent.Snapshot) float64 {
	total := len(s.Exchange) + len(s.Consumption)
	if total == 0 {
		return 0
	}
	var won int
	for _, st := range append(append([]classifier.State{}, s.Exchange...), s.Consumption...) {
		if st.Theta > 1 {
			won++
		}
	}
	return float64(won) / float64(total)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
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

// #endregion helpers
