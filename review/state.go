package review

import (
	"fmt"
	"sync"
	"time"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/graph"
)

const stateKey = "__review_state"

// workflowState is the single record threaded through the graph. It is
// partitioned by ownership: each field past Input is written by exactly one
// node (CaseEvidence by the case agent, Policy by the policy agent, and so
// on), so the concurrent fan-out needs no locking. The trace log is the one
// structure both branches append to and is guarded by its own mutex.
type workflowState struct {
	Input Request

	Plan *Plan

	CaseEvidence []evidence.Item
	Policy       policyBuckets

	Answer     *Answer
	AnswerGrade *Grade

	RetryCount int
	MaxRetries int

	mu    sync.Mutex
	trace []TraceRecord
}

func (s *workflowState) appendTrace(rec TraceRecord) {
	s.mu.Lock()
	s.trace = append(s.trace, rec)
	s.mu.Unlock()
}

func (s *workflowState) traceSnapshot() []TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TraceRecord, len(s.trace))
	copy(out, s.trace)
	return out
}

// allEvidence returns every item both agents accepted, case evidence first.
func (s *workflowState) allEvidence() []evidence.Item {
	out := make([]evidence.Item, 0, len(s.CaseEvidence)+s.Policy.total())
	out = append(out, s.CaseEvidence...)
	out = append(out, s.Policy.all()...)
	return out
}

func getState(state graph.State) (*workflowState, error) {
	raw, ok := state[stateKey]
	if !ok {
		return nil, fmt.Errorf("review state missing from graph state")
	}
	st, ok := raw.(*workflowState)
	if !ok || st == nil {
		return nil, fmt.Errorf("review state has unexpected type %T", raw)
	}
	return st, nil
}

func elapsedSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Second)
}
