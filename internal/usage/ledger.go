package usage

import (
	"sync"
	"time"
)

// Service tags which external collaborator an entry belongs to.
type Service string

const (
	ServiceLLM    Service = "llm"
	ServiceMedia  Service = "media"
	ServiceSocial Service = "social"
	ServiceStore  Service = "store"
)

// DefaultCapacity bounds the ledger to the most recent entries.
const DefaultCapacity = 1000

// Entry records one external API call. EstimatedCost stays nil for models the
// price table does not know.
type Entry struct {
	Timestamp       time.Time         `json:"timestamp"`
	Service         Service           `json:"service"`
	Model           string            `json:"model,omitempty"`
	Operation       string            `json:"operation"`
	InputTokens     int               `json:"inputTokens,omitempty"`
	OutputTokens    int               `json:"outputTokens,omitempty"`
	DurationSeconds int               `json:"durationSeconds,omitempty"`
	IncludeAudio    bool              `json:"includeAudio,omitempty"`
	EstimatedCost   *float64          `json:"estimatedCost,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Ledger is a bounded, in-process log of API calls. It is owned by the service
// instance that constructs it and dies with the process; nothing is persisted.
type Ledger struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewLedger creates a ledger holding at most capacity entries; non-positive
// capacity falls back to DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity}
}

// Log appends an entry, stamping the time and computing the estimated cost
// when the caller did not supply one. Duration-priced entries are costed by
// duration, everything else by tokens. Once full, the oldest entry is evicted.
func (l *Ledger) Log(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.EstimatedCost == nil && e.Model != "" {
		if e.DurationSeconds > 0 {
			if cost, ok := CostForDuration(e.Model, e.DurationSeconds, e.IncludeAudio); ok {
				e.EstimatedCost = &cost
			}
		} else if cost, ok := CostForTokens(e.Model, e.InputTokens, e.OutputTokens); ok {
			e.EstimatedCost = &cost
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.capacity {
		overflow := len(l.entries) - l.capacity
		l.entries = append(l.entries[:0:0], l.entries[overflow:]...)
	}
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the retained entries, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ServiceSummary aggregates calls and cost for one service.
type ServiceSummary struct {
	Calls int     `json:"calls"`
	Cost  float64 `json:"cost"`
}

// Summary aggregates the current log. Entries without a known cost count
// toward call totals but not cost totals.
type Summary struct {
	TotalCalls int                        `json:"totalCalls"`
	TotalCost  float64                    `json:"totalCost"`
	ByService  map[Service]ServiceSummary `json:"byService"`
	ByModel    map[string]ServiceSummary  `json:"byModel"`
}

// Summary folds over the retained entries. It is recomputed on every call.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		ByService: make(map[Service]ServiceSummary),
		ByModel:   make(map[string]ServiceSummary),
	}
	for _, e := range l.entries {
		s.TotalCalls++
		var cost float64
		if e.EstimatedCost != nil {
			cost = *e.EstimatedCost
			s.TotalCost += cost
		}
		svc := s.ByService[e.Service]
		svc.Calls++
		svc.Cost += cost
		s.ByService[e.Service] = svc
		if e.Model != "" {
			m := s.ByModel[e.Model]
			m.Calls++
			m.Cost += cost
			s.ByModel[e.Model] = m
		}
	}
	return s
}
