package reminder

import (
	"sync"

	"github.com/google/uuid"
)

// Failure describes one student the pass could not remind
type Failure struct {
	StudentID     uuid.UUID  `json:"student_id"`
	LedgerID      uuid.UUID  `json:"ledger_id"`
	InstallmentID *uuid.UUID `json:"installment_id,omitempty"`
	Reason        string     `json:"reason"`
}

// Summary is the outcome of a reminder pass. A pass never fails as a whole:
// per-student failures are counted and listed here instead.
type Summary struct {
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures"`
}

// collector accumulates a Summary from concurrent workers
type collector struct {
	mu sync.Mutex
	s  Summary
}

func newCollector() *collector {
	return &collector{s: Summary{Failures: []Failure{}}}
}

func (c *collector) processed() {
	c.mu.Lock()
	c.s.Processed++
	c.mu.Unlock()
}

func (c *collector) sent() {
	c.mu.Lock()
	c.s.Sent++
	c.mu.Unlock()
}

func (c *collector) skipped() {
	c.mu.Lock()
	c.s.Skipped++
	c.mu.Unlock()
}

func (c *collector) failed(f Failure) {
	c.mu.Lock()
	c.s.Failed++
	c.s.Failures = append(c.s.Failures, f)
	c.mu.Unlock()
}

func (c *collector) summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.s
	out.Failures = append([]Failure{}, c.s.Failures...)
	return out
}
