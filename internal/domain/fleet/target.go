package fleet

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSSHPort is used when a target line carries no explicit port.
const DefaultSSHPort = 22

var (
	// errEmptyTarget is returned when a target line contains no hostname.
	errEmptyTarget = errors.New("target host must not be empty")
	// errFilePathRequired is returned when an edit spec has no remote file path.
	errFilePathRequired = errors.New("remote file path must be provided")
	// errOldValueRequired is returned when an edit spec has no value to replace.
	errOldValueRequired = errors.New("old value must be provided")
	// errSameValues is returned when the old and new values are identical.
	errSameValues = errors.New("old and new values must differ")
)

// Target identifies one remote host to be updated.
// It is immutable once parsed from the inventory.
type Target struct {
	// Host is the hostname or address of the machine.
	Host string
	// Port is the SSH port, DefaultSSHPort when not set explicitly.
	Port int
}

// ParseTarget parses a "host" or "host:port" inventory line.
func ParseTarget(line string) (Target, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Target{}, errEmptyTarget
	}

	host, portString, err := net.SplitHostPort(line)
	if err != nil {
		// No port in the line; use the default.
		return Target{Host: line, Port: DefaultSSHPort}, nil
	}

	if host == "" {
		return Target{}, errEmptyTarget
	}

	port, err := strconv.Atoi(portString)
	if err != nil || port <= 0 || port > 65535 {
		return Target{}, fmt.Errorf("invalid port %q for host %q", portString, host)
	}

	return Target{Host: host, Port: port}, nil
}

// Addr returns the dialable "host:port" form of the target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns the canonical key used for results and logging.
// The port is omitted when it is the default so summary keys match
// the inventory as written by the operator.
func (t Target) String() string {
	if t.Port == DefaultSSHPort {
		return t.Host
	}

	return t.Addr()
}

// MarshalYAML renders the target as its canonical string in run reports.
func (t Target) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML parses a target from its canonical string form.
func (t *Target) UnmarshalYAML(value *yaml.Node) error {
	var line string
	if err := value.Decode(&line); err != nil {
		return err
	}

	parsed, err := ParseTarget(line)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// EditSpec is the fleet-wide edit: the remote file and the literal
// old/new value pair to replace. Immutable for a run.
type EditSpec struct {
	// FilePath is the absolute path of the configuration file on each host.
	FilePath string
	// OldValue is the literal string to be replaced.
	OldValue string
	// NewValue is the literal replacement string.
	NewValue string
}

// Validate checks the edit spec for required fields.
func (s EditSpec) Validate() error {
	if s.FilePath == "" {
		return errFilePathRequired
	}

	if s.OldValue == "" {
		return errOldValueRequired
	}

	if s.OldValue == s.NewValue {
		return errSameValues
	}

	return nil
}
