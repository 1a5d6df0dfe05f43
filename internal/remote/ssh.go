package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
)

// SSHDialer establishes SSH sessions using shared credentials.
type SSHDialer struct {
	// creds is the process-wide connection identity.
	creds *Credentials
	// connectTimeout bounds session establishment per host.
	connectTimeout time.Duration
	// commandTimeout bounds each remote command execution.
	commandTimeout time.Duration
}

// NewSSHDialer creates a dialer with the given identity and timeouts.
func NewSSHDialer(creds *Credentials, connectTimeout, commandTimeout time.Duration) *SSHDialer {
	return &SSHDialer{
		creds:          creds,
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
	}
}

// Dial opens the SSH channel to a target. Establishment is bounded by the
// dialer's connect timeout so an unreachable host never blocks a worker
// indefinitely.
func (d *SSHDialer) Dial(_ context.Context, target fleet.Target) (Session, error) {
	//nolint:exhaustruct // Remaining ClientConfig fields keep their defaults.
	clientConfig := &ssh.ClientConfig{
		User:            d.creds.User,
		Auth:            d.creds.auth,
		HostKeyCallback: d.creds.hostKeyCallback(),
		Timeout:         d.connectTimeout,
	}

	client, err := ssh.Dial("tcp", target.Addr(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	return &sshSession{
		client:         client,
		commandTimeout: d.commandTimeout,
	}, nil
}

// sshSession runs commands over one established SSH connection.
type sshSession struct {
	client         *ssh.Client
	commandTimeout time.Duration
}

// commandOutcome carries a finished command's output across the wait goroutine.
type commandOutcome struct {
	output []byte
	err    error
}

// Execute runs the command and returns its exit status with combined output.
// The command is bounded by the session's command timeout; on expiry the SSH
// session is torn down and a transport error is returned.
func (s *sshSession) Execute(ctx context.Context, command string) (*Result, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	defer func() {
		_ = session.Close()
	}()

	if s.commandTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()
	}

	done := make(chan commandOutcome, 1)

	go func() {
		output, runErr := session.CombinedOutput(command)
		done <- commandOutcome{output: output, err: runErr}
	}()

	select {
	case <-ctx.Done():
		// Closing the session unblocks the remote command; its eventual
		// result is discarded.
		_ = session.Close()

		return nil, fmt.Errorf("command timed out: %w", ctx.Err())
	case outcome := <-done:
		return resultFromRun(outcome)
	}
}

// resultFromRun translates the ssh package's run error into the
// exit-status-versus-transport-error split callers rely on.
func resultFromRun(outcome commandOutcome) (*Result, error) {
	if outcome.err == nil {
		return &Result{ExitStatus: 0, Output: string(outcome.output)}, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(outcome.err, &exitErr) {
		return &Result{ExitStatus: exitErr.ExitStatus(), Output: string(outcome.output)}, nil
	}

	return nil, fmt.Errorf("run command: %w", outcome.err)
}

// Download copies a remote file to a local path over SFTP.
func (s *sshSession) Download(remotePath, localPath string) error {
	sftpClient, err := sftp.NewClient(s.client)
	if err != nil {
		return fmt.Errorf("open sftp: %w", err)
	}

	defer func() {
		_ = sftpClient.Close()
	}()

	srcFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote file: %w", err)
	}

	defer func() {
		_ = srcFile.Close()
	}()

	//nolint:gosec // The destination directory is operator-provided configuration.
	dstFile, err := os.Create(filepath.Clean(localPath))
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}

	defer func() {
		_ = dstFile.Close()
	}()

	if _, err = io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("copy remote file: %w", err)
	}

	return nil
}

// Close tears down the SSH connection.
func (s *sshSession) Close() error {
	return s.client.Close()
}
