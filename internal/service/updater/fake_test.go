package updater

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
	"github.com/oshokin/fleetpatch/internal/remote"
)

// errFakeConnect simulates a channel that cannot be established.
var errFakeConnect = errors.New("connect refused")

// errFakeTransport simulates a transport failure mid-session.
var errFakeTransport = errors.New("transport broken")

// fakeHost simulates one remote machine: it holds the target file's content
// and interprets the workflow's backup, apply, verify and restore commands
// against it. Failure switches let tests force each step to break.
type fakeHost struct {
	mu sync.Mutex

	// spec mirrors the workflow's edit so commands can be recognized.
	spec fleet.EditSpec

	// content is the simulated target file.
	content string
	// backups maps backup paths to snapshotted content.
	backups map[string]string

	// commands records every executed command in order.
	commands []string

	// failConnect makes Dial fail before any command is issued.
	failConnect bool
	// failBackup makes the backup command exit non-zero.
	failBackup bool
	// failApply makes the substitution command exit non-zero.
	failApply bool
	// applyTransportError makes the substitution fail at the transport level.
	applyTransportError bool
	// breakApply leaves the old value in place so verification counts zero.
	breakApply bool
	// garbleVerify makes the verify command print a non-numeric reply.
	garbleVerify bool
	// failRestore makes the restore command exit non-zero.
	failRestore bool
	// beforeExecute, when set, runs at the start of every Execute call so
	// tests can interleave events (e.g. cancel the run mid-workflow).
	beforeExecute func()

	closed bool
}

func newFakeHost(spec fleet.EditSpec, content string) *fakeHost {
	return &fakeHost{
		spec:    spec,
		content: content,
		backups: make(map[string]string),
	}
}

// Execute interprets the four command shapes the workflow produces.
func (h *fakeHost) Execute(_ context.Context, command string) (*remote.Result, error) {
	if h.beforeExecute != nil {
		h.beforeExecute()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.commands = append(h.commands, command)

	switch {
	case strings.HasPrefix(command, "cp -p "+shellQuote(h.spec.FilePath)+" "):
		return h.execBackup(command)
	case command == applyCommand(h.spec):
		return h.execApply()
	case command == verifyCommand(h.spec):
		return h.execVerify()
	case strings.HasSuffix(command, " "+shellQuote(h.spec.FilePath)) && strings.HasPrefix(command, "cp -p "):
		return h.execRestore(command)
	default:
		return nil, fmt.Errorf("unexpected command: %s", command)
	}
}

func (h *fakeHost) execBackup(command string) (*remote.Result, error) {
	if h.failBackup {
		return &remote.Result{ExitStatus: 1, Output: "cp: permission denied"}, nil
	}

	h.backups[backupPathFromCommand(command)] = h.content

	return &remote.Result{ExitStatus: 0}, nil
}

func (h *fakeHost) execApply() (*remote.Result, error) {
	if h.applyTransportError {
		return nil, errFakeTransport
	}

	if h.failApply {
		return &remote.Result{ExitStatus: 1, Output: "sed: couldn't open temporary file"}, nil
	}

	if !h.breakApply {
		h.content = strings.ReplaceAll(h.content, h.spec.OldValue, h.spec.NewValue)
	}

	return &remote.Result{ExitStatus: 0}, nil
}

func (h *fakeHost) execVerify() (*remote.Result, error) {
	if h.garbleVerify {
		return &remote.Result{ExitStatus: 2, Output: "grep: /etc/app/app.conf: No such file"}, nil
	}

	count := strings.Count(h.content, h.spec.NewValue)

	status := 0
	if count == 0 {
		status = 1
	}

	return &remote.Result{ExitStatus: status, Output: strconv.Itoa(count) + "\n"}, nil
}

func (h *fakeHost) execRestore(command string) (*remote.Result, error) {
	if h.failRestore {
		return &remote.Result{ExitStatus: 1, Output: "cp: read-only file system"}, nil
	}

	backupPath := strings.TrimSuffix(strings.TrimPrefix(command, "cp -p "), " "+shellQuote(h.spec.FilePath))

	snapshot, ok := h.backups[unquote(backupPath)]
	if !ok {
		return &remote.Result{ExitStatus: 1, Output: "cp: no such backup"}, nil
	}

	h.content = snapshot

	return &remote.Result{ExitStatus: 0}, nil
}

func (h *fakeHost) Download(_, _ string) error {
	return nil
}

func (h *fakeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	return nil
}

// commandCount returns how many commands were issued to the host.
func (h *fakeHost) commandCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.commands)
}

// restoreCount returns how many restore commands were issued.
func (h *fakeHost) restoreCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var n int

	for _, command := range h.commands {
		if strings.HasPrefix(command, "cp -p ") &&
			strings.HasSuffix(command, " "+shellQuote(h.spec.FilePath)) {
			n++
		}
	}

	return n
}

// backupPathFromCommand extracts the quoted backup path from a backup command.
func backupPathFromCommand(command string) string {
	parts := strings.SplitN(command, " ", 4)

	return unquote(parts[3])
}

// unquote reverses shellQuote for the simple paths used in tests.
func unquote(s string) string {
	return strings.Trim(s, "'")
}

// fakeDialer hands out pre-built fake hosts keyed by target host name.
type fakeDialer struct {
	mu    sync.Mutex
	hosts map[string]*fakeHost
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{hosts: make(map[string]*fakeHost)}
}

func (d *fakeDialer) add(host string, fake *fakeHost) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hosts[host] = fake
}

// Dial returns the fake session for the target, or a connection error when
// the host is marked unreachable or unknown.
func (d *fakeDialer) Dial(_ context.Context, target fleet.Target) (remote.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fake, ok := d.hosts[target.Host]
	if !ok || fake.failConnect {
		return nil, fmt.Errorf("dial %s: %w", target, errFakeConnect)
	}

	return fake, nil
}
