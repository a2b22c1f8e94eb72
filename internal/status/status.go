package status

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type Phase string

const (
	PhaseImage  Phase = "image"
	PhaseConfig Phase = "config"
)

type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeAdded     Outcome = "added"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Entry is one decision taken for one service during a cycle.
type Entry struct {
	Phase     Phase   `json:"phase"`
	ServiceID string  `json:"serviceId"`
	Service   string  `json:"service"`
	Subject   string  `json:"subject"`
	Outcome   Outcome `json:"outcome"`
	Detail    string  `json:"detail,omitempty"`
}

// Report collects the entries of one cycle. Safe for concurrent use.
type Report struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Entries    []Entry   `json:"entries"`

	mu sync.Mutex
}

func NewReport(now time.Time) *Report { return &Report{StartedAt: now} }

func (r *Report) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, e)
}

// Sorted returns the entries ordered by phase, service and subject.
func (r *Report) Sorted() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Entry(nil), r.Entries...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Phase != b.Phase {
			return a.Phase == PhaseImage
		}
		if a.Service != b.Service {
			return a.Service < b.Service
		}
		return a.Subject < b.Subject
	})
	return out
}

// Count returns the number of entries with outcome o in phase p.
func (r *Report) Count(p Phase, o Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Entries {
		if e.Phase == p && e.Outcome == o {
			n++
		}
	}
	return n
}

func PrintReport(w io.Writer, r *Report) {
	_, _ = fmt.Fprintf(w, "Cycle finished at: %s (%s)\n", r.FinishedAt.Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, e := range r.Sorted() {
		line := fmt.Sprintf("- %s %s %s: %s", e.Phase, e.Service, e.Subject, e.Outcome)
		if e.Detail != "" {
			line += " (" + e.Detail + ")"
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
