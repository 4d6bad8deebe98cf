package eval

import (
	"context"
	"sync"
)

// Staging accumulates file-scoped setup code while a batch of definition
// files loads, so the evaluator pays its start-up cost once per batch
// instead of once per file. The caller that drives the load flushes the
// accumulator when the batch completes.
type Staging struct {
	mu     sync.Mutex
	blocks []string
	seen   map[string]bool
}

// NewStaging returns an empty accumulator.
func NewStaging() *Staging {
	return &Staging{seen: make(map[string]bool)}
}

// Add records a setup block. Identical blocks are staged once per flush.
func (s *Staging) Add(code string) {
	if code == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[code] {
		return
	}
	s.seen[code] = true
	s.blocks = append(s.blocks, code)
}

// Len returns the number of pending blocks.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blocks)
}

// Flush submits the pending blocks to the evaluator. The accumulator is
// cleared atomically with the take, so a concurrent Add during the
// evaluator round trip lands in the next flush rather than being
// submitted twice.
func (s *Staging) Flush(ctx context.Context, ev Evaluator) error {
	s.mu.Lock()
	blocks := s.blocks
	s.blocks = nil
	s.seen = make(map[string]bool)
	s.mu.Unlock()

	if len(blocks) == 0 {
		return nil
	}
	return ev.Stage(ctx, blocks)
}
