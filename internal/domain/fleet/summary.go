package fleet

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary aggregates per-host outcomes for one invocation of the updater.
// Entries are keyed by target so completion order is irrelevant; the Targets
// slice preserves inventory order for rendering.
type RunSummary struct {
	// RunID uniquely identifies this run in logs and reports.
	RunID string `yaml:"run_id"`
	// StartedAt is when the coordinator began dispatching workflows.
	StartedAt time.Time `yaml:"started_at"`
	// FinishedAt is when the last workflow terminated.
	FinishedAt time.Time `yaml:"finished_at"`
	// Targets lists result keys in inventory order.
	Targets []string `yaml:"targets"`
	// Results maps the target's canonical string to its terminal result.
	Results map[string]*HostResult `yaml:"results"`
	// Succeeded is the number of hosts that terminated with OutcomeSuccess.
	Succeeded int `yaml:"succeeded"`
	// Failed is the number of hosts that terminated with any other outcome.
	Failed int `yaml:"failed"`
	// Skipped is the number of hosts never dispatched because the run was
	// cancelled before they started.
	Skipped int `yaml:"skipped,omitempty"`
}

// NewRunSummary creates an empty summary with a fresh run ID.
func NewRunSummary() *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Results:   make(map[string]*HostResult),
	}
}

// Add records one host's terminal result. Each target is recorded exactly
// once; the caller (the coordinator) is the single writer.
func (s *RunSummary) Add(result *HostResult) {
	key := result.Target.String()
	if _, exists := s.Results[key]; exists {
		return
	}

	s.Targets = append(s.Targets, key)
	s.Results[key] = result

	if result.Outcome.Succeeded() {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// MarkSkipped counts a host that was never dispatched.
func (s *RunSummary) MarkSkipped() {
	s.Skipped++
}

// Finish stamps the end of the run and returns the receiver.
func (s *RunSummary) Finish() *RunSummary {
	s.FinishedAt = time.Now()

	return s
}

// Total returns the number of hosts with a recorded result.
func (s *RunSummary) Total() int {
	return len(s.Results)
}

// AllSucceeded reports whether every recorded host succeeded and nothing was
// skipped. It drives the process exit code.
func (s *RunSummary) AllSucceeded() bool {
	return s.Failed == 0 && s.Skipped == 0
}
