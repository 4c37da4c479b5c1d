// Package rpcserver exposes a *mozolm.Hub over net/rpc as the three
// operations of spec.md §6's "RPC service": get_lm_scores,
// get_next_state, update_lm_scores.
package rpcserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/semaphore"

	"github.com/kho/mozolm"
)

// DefaultWorkerPoolSize bounds concurrent in-flight RPC handlers when
// a Server is constructed without an explicit size (spec.md §9's
// "flag that fixes an async worker pool size, set once at server
// startup").
const DefaultWorkerPoolSize = 64

// StateRequest is the common request shape of spec.md §6: a state (a
// negative value means "from start") plus either a UTF-8 context
// string or a codepoint sequence and a count.
type StateRequest struct {
	State      int64
	Context    string
	Codepoints []rune
	Count      int
}

// ScoresResponse wraps mozolm.LMScores plus the resolved state it was
// extracted at, for get_lm_scores and update_lm_scores.
type ScoresResponse struct {
	State         int64
	Symbols       []string
	Probabilities []float64
	Normalization float64
}

// NextStateResponse is get_next_state's result.
type NextStateResponse struct {
	State int64
}

// Server implements the three spec.md §6 RPC methods over a *mozolm.Hub.
// Every handler takes mu exclusively: the read handlers (GetLMScores,
// GetNextState) also mutate shared state, since resolving a context
// creates hub states and fills model caches, so reads and writes are
// serialized at the hub boundary.
type Server struct {
	mu   sync.RWMutex
	hub  *mozolm.Hub
	pool *semaphore.Weighted
}

// NewServer wraps hub for RPC serving, bounding concurrent in-flight
// handlers to poolSize (DefaultWorkerPoolSize if poolSize <= 0).
func NewServer(hub *mozolm.Hub, poolSize int) *Server {
	if poolSize <= 0 {
		poolSize = DefaultWorkerPoolSize
	}
	return &Server{hub: hub, pool: semaphore.NewWeighted(int64(poolSize))}
}

func (s *Server) resolveState(state int64, text string) int {
	if state < 0 {
		return s.hub.ContextState(text, -1)
	}
	return int(state)
}

// acquire blocks until a worker-pool slot is free; the pool has no
// cancellation source of its own (spec.md §5 "The core engine does
// not implement timeouts"), so this always succeeds.
func (s *Server) acquire() func() {
	_ = s.pool.Acquire(context.Background(), 1)
	return func() { s.pool.Release(1) }
}

// GetLMScores implements spec.md §6's get_lm_scores: fails with
// invalid_argument (a non-nil error) when the state index is out of
// range.
func (s *Server) GetLMScores(req *StateRequest, resp *ScoresResponse) (err error) {
	defer instrument("GetLMScores", time.Now())(&err)
	defer s.acquire()()
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.resolveState(req.State, req.Context)
	if state < 0 || state >= s.hub.NumStates() {
		return fmt.Errorf("invalid_argument: state %d out of range", state)
	}
	var scores mozolm.LMScores
	if !s.hub.ExtractScores(state, &scores) {
		glog.Errorf("mozolm: rpcserver GetLMScores: extraction failed at state %d", state)
		return fmt.Errorf("internal: extract_scores failed at state %d", state)
	}
	resp.State = int64(state)
	resp.Symbols, resp.Probabilities, resp.Normalization = scores.Symbols, scores.Probabilities, scores.Normalization
	return nil
}

// GetNextState implements spec.md §6's get_next_state: never fails on
// state, returning the start state for anything invalid.
func (s *Server) GetNextState(req *StateRequest, resp *NextStateResponse) (err error) {
	defer instrument("GetNextState", time.Now())(&err)
	defer s.acquire()()
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.resolveState(req.State, "")
	if state < 0 || state >= s.hub.NumStates() {
		state = 0
	}
	resp.State = int64(s.hub.ContextState(req.Context, state))
	return nil
}

// UpdateLMScores implements spec.md §6's update_lm_scores: fails with
// invalid_argument when the state is out of range, count <= 0, or the
// hub's UpdateCounts fails. Codepoints are not checked against any
// model's vocabulary; each model treats an unknown codepoint the way
// its NextState does.
func (s *Server) UpdateLMScores(req *StateRequest, resp *ScoresResponse) (err error) {
	defer instrument("UpdateLMScores", time.Now())(&err)
	defer s.acquire()()
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.resolveState(req.State, "")
	if state < 0 || state >= s.hub.NumStates() {
		return fmt.Errorf("invalid_argument: state %d out of range", state)
	}
	if req.Count <= 0 {
		return fmt.Errorf("invalid_argument: non-positive count %d", req.Count)
	}
	if !s.hub.UpdateCounts(state, req.Codepoints, req.Count) {
		return fmt.Errorf("invalid_argument: update_counts failed at state %d", state)
	}
	dest := s.hub.ContextState(string(req.Codepoints), state)
	var scores mozolm.LMScores
	if !s.hub.ExtractScores(dest, &scores) {
		glog.Errorf("mozolm: rpcserver UpdateLMScores: extraction failed at state %d", dest)
		return fmt.Errorf("internal: extract_scores failed at state %d", dest)
	}
	resp.State = int64(dest)
	resp.Symbols, resp.Probabilities, resp.Normalization = scores.Symbols, scores.Probabilities, scores.Normalization
	return nil
}
