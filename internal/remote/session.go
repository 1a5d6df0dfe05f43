package remote

import (
	"context"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
)

// Result is the outcome of one remote command: the process exit status and
// its combined stdout+stderr output. A Result is only produced when the
// command actually ran; transport failures surface as errors instead.
type Result struct {
	// ExitStatus is the remote command's exit code.
	ExitStatus int
	// Output is the combined stdout and stderr of the command.
	Output string
}

// OK reports whether the command exited with status zero.
func (r *Result) OK() bool {
	return r.ExitStatus == 0
}

// Session owns the command-execution channel to a single target.
// Implementations must be safe to Close more than once.
type Session interface {
	// Execute runs a command on the target and returns its exit status and
	// combined output. A non-nil error means the command could not be
	// delivered or its status could not be determined (transport error);
	// a non-zero exit status is not an error.
	Execute(ctx context.Context, command string) (*Result, error)

	// Download copies a remote file to a local path.
	Download(remotePath, localPath string) error

	// Close releases the channel.
	Close() error
}

// Dialer establishes sessions to targets. The production implementation
// speaks SSH; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, target fleet.Target) (Session, error)
}
