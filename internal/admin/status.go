package admin

import (
	"sync"
	"time"

	"github.com/danmuck/authctl/internal/client"
	"github.com/danmuck/authctl/internal/protocol"
)

// RunSnapshot is the JSON view of one finished protocol run.
type RunSnapshot struct {
	ID          string    `json:"run_id"`
	Addr        string    `json:"addr"`
	State       string    `json:"state"`
	Established bool      `json:"established"`
	Challenged  bool      `json:"challenged"`
	Payloads    int       `json:"payloads"`
	Kind        string    `json:"kind"`
	Error       string    `json:"error,omitempty"`
	Started     time.Time `json:"started"`
	Duration    string    `json:"duration"`
}

// Status keeps the most recent run and counts per final state.
// It is safe for concurrent use.
type Status struct {
	mu      sync.RWMutex
	started time.Time
	last    *RunSnapshot
	byState map[string]int
}

func NewStatus() *Status {
	return &Status{started: time.Now(), byState: make(map[string]int)}
}

// Record stores run as the latest. It matches client.Options.OnRun.
func (s *Status) Record(run client.Run) {
	snap := RunSnapshot{
		ID:          run.ID,
		Addr:        run.Addr,
		State:       run.State.String(),
		Established: run.Established(),
		Challenged:  run.Challenged,
		Payloads:    len(run.Payloads),
		Kind:        protocol.Kind(run.Err),
		Started:     run.Started,
		Duration:    run.Duration.String(),
	}
	if run.Err != nil {
		snap.Error = run.Err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &snap
	s.byState[snap.State]++
}

// Last returns the latest snapshot, if any.
func (s *Status) Last() (RunSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunSnapshot{}, false
	}
	return *s.last, true
}

func (s *Status) counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.byState))
	for k, v := range s.byState {
		out[k] = v
	}
	return out
}
