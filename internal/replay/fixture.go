package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string           `json:"description"`
	Seed        int64            `json:"seed"`
	Sessions    []FixtureSession `json:"sessions"`
}

// FixtureSession is one subject's recorded session.
type FixtureSession struct {
	ID         string               `json:"id"`
	Config     *agent.Config        `json:"config,omitempty"` // nil uses agent.DefaultConfig
	Encounters []FixtureEncounter   `json:"encounters"`
	Expected   *FixtureExpectations `json:"expected,omitempty"`
}

// FixtureEncounter mirrors Encounter with JSON tags.
type FixtureEncounter struct {
	TurnID        string    `json:"turn_id"`
	SubjectGood   int       `json:"subject_good"`
	PartnerGood   int       `json:"partner_good"`
	PartnerType   int       `json:"partner_type"`
	Proportions   []float64 `json:"proportions"`
	SubjectChoice bool      `json:"subject_choice"`
	PartnerChoice bool      `json:"partner_choice"`
}

// FixtureExpectations are the data-determined counts a replay must reproduce.
type FixtureExpectations struct {
	Turns          int `json:"turns"`
	SubjectAccepts int `json:"subject_accepts"`
	TradesExecuted int `json:"trades_executed"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToSession converts a FixtureSession to a domain Session, rejecting goods
// outside the modeled domain.
func (fs *FixtureSession) ToSession() (Session, error) {
	cfg := agent.DefaultConfig()
	if fs.Config != nil {
		cfg = *fs.Config
	}
	sess := Session{ID: fs.ID, Config: cfg, Encounters: make([]Encounter, len(fs.Encounters))}
	for i, fe := range fs.Encounters {
		for _, g := range []int{fe.SubjectGood, fe.PartnerGood} {
			if err := goods.Validate(goods.Good(g)); err != nil {
				return Session{}, fmt.Errorf("session %s turn %s: %w", fs.ID, fe.TurnID, err)
			}
		}
		sess.Encounters[i] = Encounter{
			TurnID:        fe.TurnID,
			SubjectGood:   goods.Good(fe.SubjectGood),
			PartnerGood:   goods.Good(fe.PartnerGood),
			PartnerType:   fe.PartnerType,
			Proportions:   fe.Proportions,
			SubjectChoice: fe.SubjectChoice,
			PartnerChoice: fe.PartnerChoice,
		}
	}
	return sess, nil
}

// Sessions converts every fixture session.
func (f *Fixture) ToSessions() ([]Session, error) {
	out := make([]Session, len(f.Sessions))
	for i := range f.Sessions {
		s, err := f.Sessions[i].ToSession()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// #endregion fixture-loader
