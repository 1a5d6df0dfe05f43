package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	// errUserRequired is returned when credentials lack a username.
	errUserRequired = errors.New("ssh user must be provided")
	// errNoAuthMethod is returned when neither a key nor an agent is available.
	errNoAuthMethod = errors.New("no ssh authentication method available")
)

// Credentials is the process-wide connection identity: the remote username
// and resolved key material. It is immutable and shared by all sessions.
type Credentials struct {
	// User is the SSH username used on every target.
	User string

	// auth holds the resolved authentication methods.
	auth []ssh.AuthMethod
	// hostKeys verifies server host keys; nil disables verification.
	hostKeys ssh.HostKeyCallback
}

// LoadCredentials resolves the connection identity once, before any host is
// contacted. When keyFile is set the private key is read and parsed; when it
// is empty the SSH agent at SSH_AUTH_SOCK is used. A failure here is a
// configuration error and must abort the run before dispatch.
func LoadCredentials(user, keyFile, knownHostsFile string) (*Credentials, error) {
	if user == "" {
		return nil, errUserRequired
	}

	creds := &Credentials{User: user}

	if keyFile != "" {
		key, err := os.ReadFile(filepath.Clean(keyFile))
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}

		creds.auth = append(creds.auth, ssh.PublicKeys(signer))
	} else if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, fmt.Errorf("connect to ssh agent: %w", err)
		}

		creds.auth = append(creds.auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
	}

	if len(creds.auth) == 0 {
		return nil, errNoAuthMethod
	}

	if knownHostsFile != "" {
		callback, err := knownhosts.New(filepath.Clean(knownHostsFile))
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}

		creds.hostKeys = callback
	}

	return creds, nil
}

// hostKeyCallback returns the configured verification callback, or an
// insecure one when no known-hosts file was provided. The scripts this tool
// replaces ran with StrictHostKeyChecking=no; the insecure mode keeps that
// behavior available for lab fleets.
func (c *Credentials) hostKeyCallback() ssh.HostKeyCallback {
	if c.hostKeys != nil {
		return c.hostKeys
	}

	return ssh.InsecureIgnoreHostKey()
}
