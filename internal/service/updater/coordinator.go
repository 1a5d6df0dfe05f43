package updater

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
	"github.com/oshokin/fleetpatch/internal/logger"
)

var (
	// errNoTargets is returned when the run has no hosts to update.
	errNoTargets = errors.New("no targets to update")
	// errWorkflowRequired is returned when the coordinator has no workflow.
	errWorkflowRequired = errors.New("workflow must be provided")
)

// Coordinator fans the update workflow out across all targets with bounded
// concurrency and aggregates per-host outcomes into a run summary.
type Coordinator struct {
	// workflow is the per-host update sequence.
	workflow *Workflow
	// concurrency bounds the number of hosts processed simultaneously.
	concurrency int
}

// NewCoordinator creates a run coordinator. A non-positive concurrency
// falls back to one worker.
func NewCoordinator(workflow *Workflow, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Coordinator{
		workflow:    workflow,
		concurrency: concurrency,
	}
}

// Run processes every target through the workflow, at most the configured
// number of hosts at a time, and returns the aggregated summary. Every
// dispatched target produces exactly one result; a host's failure never
// affects its siblings. Cancelling the context stops dispatching new hosts
// while letting in-flight hosts reach a terminal state.
func (c *Coordinator) Run(ctx context.Context, targets []fleet.Target) (*fleet.RunSummary, error) {
	if c.workflow == nil {
		return nil, errWorkflowRequired
	}

	if len(targets) == 0 {
		return nil, errNoTargets
	}

	var (
		summary    = fleet.NewRunSummary()
		mu         sync.Mutex
		group      errgroup.Group
		dispatched = make(map[string]bool, len(targets))
	)

	group.SetLimit(c.concurrency)

	logger.InfoKV(ctx, "Starting run",
		"run_id", summary.RunID,
		"targets", len(targets),
		"concurrency", c.concurrency,
	)

	for _, target := range targets {
		// Each canonical key gets exactly one workflow: a duplicate would
		// mutate the host twice and its second result could not be
		// recorded, silently masking a failure.
		if dispatched[target.String()] {
			logger.Warnf(ctx, "Duplicate target %s, already dispatched", target)

			continue
		}

		dispatched[target.String()] = true

		target := target

		if ctx.Err() != nil {
			logger.Warnf(ctx, "Run cancelled, skipping %s", target)

			mu.Lock()
			summary.MarkSkipped()
			mu.Unlock()

			continue
		}

		group.Go(func() error {
			// Re-check after waiting for a worker slot: a cancellation
			// that arrived while blocked must still keep this host
			// undispatched.
			if ctx.Err() != nil {
				logger.Warnf(ctx, "Run cancelled, skipping %s", target)

				mu.Lock()
				summary.MarkSkipped()
				mu.Unlock()

				return nil
			}

			result := c.workflow.Run(ctx, target)

			// Single writer per target: each worker records exactly one
			// result after its workflow reaches a terminal state.
			mu.Lock()
			summary.Add(result)
			mu.Unlock()

			return nil
		})
	}

	// Workers never return errors; all failures live in the summary.
	_ = group.Wait()

	return summary.Finish(), nil
}
