package updater

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
	"github.com/oshokin/fleetpatch/internal/logger"
	"github.com/oshokin/fleetpatch/internal/remote"
)

// Workflow runs the per-host update sequence: snapshot the target file,
// apply the substitution, verify the result and commit or roll back.
// One Workflow value serves all hosts of a run; it holds no per-host state.
type Workflow struct {
	// dialer establishes the command-execution channel per target.
	dialer remote.Dialer
	// spec is the edit applied to every host.
	spec fleet.EditSpec
	// backupFetchDir, when set, receives a local copy of the remote file
	// before any mutation.
	backupFetchDir string
	// now supplies backup timestamps; replaced in tests.
	now func() time.Time
}

// WorkflowOption configures optional workflow behavior.
type WorkflowOption func(*Workflow)

// WithBackupFetchDir makes each workflow download a local safety copy of the
// remote file into the given directory before mutating it.
func WithBackupFetchDir(dir string) WorkflowOption {
	return func(w *Workflow) {
		w.backupFetchDir = dir
	}
}

// withClock overrides the timestamp source for deterministic backup names.
func withClock(now func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		w.now = now
	}
}

// NewWorkflow creates the per-host update workflow for one run.
func NewWorkflow(dialer remote.Dialer, spec fleet.EditSpec, opts ...WorkflowOption) *Workflow {
	workflow := &Workflow{
		dialer: dialer,
		spec:   spec,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(workflow)
	}

	return workflow
}

// Run drives one target through the update sequence and always returns a
// finalized result; per-host failures never escape as errors. Once started,
// the workflow runs to its terminal state even if the surrounding run is
// cancelled, so a host is never abandoned mid-mutation.
func (w *Workflow) Run(ctx context.Context, target fleet.Target) *fleet.HostResult {
	ctx = logger.WithKV(context.WithoutCancel(ctx), "host", target.String())
	result := fleet.NewHostResult(target)

	logger.Info(ctx, "Processing host")

	session, err := w.dialer.Dial(ctx, target)
	if err != nil {
		logger.Errorf(ctx, "Failed to connect: %v", err)

		return result.Finish(fleet.OutcomeConnectionFailed, fmt.Sprintf("connect: %v", err))
	}

	defer func() {
		_ = session.Close()
	}()

	w.fetchLocalCopy(ctx, session, target)

	if terminal := w.backUp(ctx, session, result); terminal {
		return result
	}

	if terminal := w.apply(ctx, session, result); terminal {
		return result
	}

	return w.verifyOrRollBack(ctx, session, result)
}

// fetchLocalCopy downloads a safety copy of the remote file when configured.
// It is best effort: the remote backup made by backUp is the rollback source,
// so a failed download is logged and the workflow proceeds.
func (w *Workflow) fetchLocalCopy(ctx context.Context, session remote.Session, target fleet.Target) {
	if w.backupFetchDir == "" {
		return
	}

	localName := fmt.Sprintf("%s_%s_%s",
		target.Host,
		w.now().Format(backupSuffixLayout),
		filepath.Base(w.spec.FilePath),
	)
	localPath := filepath.Join(w.backupFetchDir, localName)

	if err := session.Download(w.spec.FilePath, localPath); err != nil {
		logger.Warnf(ctx, "Failed to fetch local copy: %v", err)

		return
	}

	logger.Infof(ctx, "Fetched local copy to %s", localPath)
}

// backUp snapshots the target file to a uniquely named backup. Any failure
// here means no mutation has happened, so the host terminates as
// connection-failed with nothing to roll back.
func (w *Workflow) backUp(ctx context.Context, session remote.Session, result *fleet.HostResult) bool {
	backupPath := fmt.Sprintf("%s.backup_%s", w.spec.FilePath, w.now().Format(backupSuffixLayout))

	logger.Infof(ctx, "Creating backup %s", backupPath)

	res, err := session.Execute(ctx, backupCommand(w.spec.FilePath, backupPath))
	if err != nil {
		result.Finish(fleet.OutcomeConnectionFailed, fmt.Sprintf("backup: %v", err))

		return true
	}

	if !res.OK() {
		result.Finish(fleet.OutcomeConnectionFailed,
			fmt.Sprintf("backup exited with status %d: %s", res.ExitStatus, summarize(res.Output)))

		return true
	}

	result.BackupPath = backupPath

	return false
}

// apply replaces the old value with the new one. On failure the backup
// exists but the file may be partially mutated; the host terminates as
// apply-failed and the backup path stays in the result for operators.
func (w *Workflow) apply(ctx context.Context, session remote.Session, result *fleet.HostResult) bool {
	logger.Info(ctx, "Applying substitution")

	res, err := session.Execute(ctx, applyCommand(w.spec))
	if err != nil {
		result.Finish(fleet.OutcomeApplyFailed, fmt.Sprintf("apply: %v", err))

		return true
	}

	if !res.OK() {
		result.Finish(fleet.OutcomeApplyFailed,
			fmt.Sprintf("apply exited with status %d: %s", res.ExitStatus, summarize(res.Output)))

		return true
	}

	return false
}

// verifyOrRollBack counts occurrences of the new value and commits on a
// positive count. A zero, absent or non-numeric count triggers a restore
// from the exact backup created earlier.
func (w *Workflow) verifyOrRollBack(
	ctx context.Context,
	session remote.Session,
	result *fleet.HostResult,
) *fleet.HostResult {
	logger.Info(ctx, "Verifying change")

	var (
		count     = -1
		verifyErr error
	)

	res, err := session.Execute(ctx, verifyCommand(w.spec))
	if err != nil {
		verifyErr = err
	} else {
		count, verifyErr = parseOccurrences(res.Output)
	}

	if verifyErr == nil && count > 0 {
		result.Occurrences = count

		logger.Infof(ctx, "Successfully updated, %d occurrence(s)", count)

		return result.Finish(fleet.OutcomeSuccess, fmt.Sprintf("updated, %d occurrence(s)", count))
	}

	reason := "new value not found after apply"
	if verifyErr != nil {
		reason = fmt.Sprintf("verify: %v", verifyErr)
	}

	logger.Warnf(ctx, "Verification failed (%s), restoring backup", reason)

	return w.rollBack(ctx, session, result, reason)
}

// rollBack restores the target file from the backup made by this run.
// A restore failure is surfaced distinctly so operators never assume the
// rollback succeeded.
func (w *Workflow) rollBack(
	ctx context.Context,
	session remote.Session,
	result *fleet.HostResult,
	reason string,
) *fleet.HostResult {
	res, err := session.Execute(ctx, restoreCommand(w.spec.FilePath, result.BackupPath))
	if err == nil && res.OK() {
		logger.Info(ctx, "Backup restored")

		return result.Finish(fleet.OutcomeRolledBack, fmt.Sprintf("%s; backup restored", reason))
	}

	restoreDetail := "restore command failed"
	if err != nil {
		restoreDetail = fmt.Sprintf("restore: %v", err)
	} else if res != nil {
		restoreDetail = fmt.Sprintf("restore exited with status %d: %s", res.ExitStatus, summarize(res.Output))
	}

	result.ManualRestoreRequired = true

	logger.Errorf(ctx, "Restore failed, manual intervention required: %s", restoreDetail)

	return result.Finish(fleet.OutcomeVerificationFailed,
		fmt.Sprintf("%s; %s; manual restore required from %s", reason, restoreDetail, result.BackupPath))
}

// summarize truncates command output for result details and logs.
// Truncation happens on a rune boundary so multi-byte output stays valid.
func summarize(output string) string {
	const maxLen = 200

	trimmed := strings.TrimSpace(output)
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	return string([]rune(trimmed)[:maxLen]) + "..."
}
