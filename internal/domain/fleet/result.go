package fleet

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Outcome classifies how a single host's update workflow terminated.
type Outcome int

const (
	// OutcomeUnknown means the workflow has not reached a terminal state yet.
	OutcomeUnknown Outcome = iota
	// OutcomeSuccess means the new value was applied and verified on the host.
	OutcomeSuccess
	// OutcomeConnectionFailed means the channel could not be established or the
	// backup step failed; no mutation was attempted on the host.
	OutcomeConnectionFailed
	// OutcomeApplyFailed means the substitution command failed after the backup
	// succeeded; the backup is the safety net but the file may be partially
	// mutated.
	OutcomeApplyFailed
	// OutcomeRolledBack means verification did not confirm the new value and the
	// backup was restored successfully; net effect is no change.
	OutcomeRolledBack
	// OutcomeVerificationFailed means verification failed and the restore also
	// failed; the host requires manual intervention.
	OutcomeVerificationFailed
)

// String returns the operator-facing name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeConnectionFailed:
		return "connection-failed"
	case OutcomeApplyFailed:
		return "apply-failed"
	case OutcomeRolledBack:
		return "rolled-back"
	case OutcomeVerificationFailed:
		return "verification-failed"
	default:
		return "unknown"
	}
}

// ParseOutcome maps an operator-facing name back to its outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "success":
		return OutcomeSuccess, nil
	case "connection-failed":
		return OutcomeConnectionFailed, nil
	case "apply-failed":
		return OutcomeApplyFailed, nil
	case "rolled-back":
		return OutcomeRolledBack, nil
	case "verification-failed":
		return OutcomeVerificationFailed, nil
	default:
		return OutcomeUnknown, fmt.Errorf("unknown outcome %q", s)
	}
}

// MarshalYAML renders the outcome by name in run reports.
func (o Outcome) MarshalYAML() (any, error) {
	return o.String(), nil
}

// UnmarshalYAML parses an outcome name from a run report.
func (o *Outcome) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}

	parsed, err := ParseOutcome(name)
	if err != nil {
		return err
	}

	*o = parsed

	return nil
}

// Succeeded reports whether the outcome counts as a success for the run.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSuccess
}

// HostResult records the terminal state of one host's workflow.
// It is created when the workflow starts and never mutated after Finish.
type HostResult struct {
	// Target is the host this result belongs to.
	Target Target `yaml:"target"`
	// Outcome is the terminal classification of the workflow.
	Outcome Outcome `yaml:"outcome"`
	// Detail is a free-text message describing what happened.
	Detail string `yaml:"detail,omitempty"`
	// Occurrences is the verified count of the new value, set on success.
	Occurrences int `yaml:"occurrences,omitempty"`
	// BackupPath is the exact remote backup file created by the backup step.
	// Empty when the workflow terminated before a backup was made.
	BackupPath string `yaml:"backup_path,omitempty"`
	// ManualRestoreRequired is set when both verification and the restore from
	// backup failed, so operators must not assume the rollback succeeded.
	ManualRestoreRequired bool `yaml:"manual_restore_required,omitempty"`
	// StartedAt is when the host's workflow was dispatched.
	StartedAt time.Time `yaml:"started_at"`
	// FinishedAt is when the workflow reached its terminal state.
	FinishedAt time.Time `yaml:"finished_at"`
}

// NewHostResult starts a result record for the given target.
func NewHostResult(target Target) *HostResult {
	return &HostResult{
		Target:    target,
		StartedAt: time.Now(),
	}
}

// Finish finalizes the result with a terminal outcome and detail message.
// It returns the receiver for convenient use in return statements.
func (r *HostResult) Finish(outcome Outcome, detail string) *HostResult {
	r.Outcome = outcome
	r.Detail = detail
	r.FinishedAt = time.Now()

	return r
}

// Duration returns how long the host's workflow ran.
func (r *HostResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
