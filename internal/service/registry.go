package service

import (
	"math/rand"
	"sync"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
)

// #region session
// session is one live agent. mu serializes its turns; the agent itself is
// not safe for concurrent use.
type session struct {
	mu        sync.Mutex
	id        string
	cfg       agent.Config
	rng       *rand.Rand
	agent     *agent.Agent
	versionID string // last committed snapshot
}

// #endregion session

// #region registry
// registry maps agent ids to live sessions.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

func (r *registry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// getOrLoad returns the live session for id, calling load at most once per
// id when it is not resident.
func (r *registry) getOrLoad(id string, load func() (*session, error)) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	s, err := load()
	if err != nil {
		return nil, err
	}
	r.sessions[id] = s
	return s, nil
}

func (r *registry) put(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

// #endregion registry
