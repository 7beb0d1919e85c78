package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// AddressResolver returns the network address of a host
type AddressResolver func(ctx context.Context, host string) (string, error)

// SSH runs host commands over a native SSH connection, authenticating with
// the private key the provisioning tool generated for the machine. Local
// targets are delegated to Fallback.
type SSH struct {
	User     string
	Port     int
	KeyDir   string
	Timeout  time.Duration
	Resolve  AddressResolver
	Fallback Executor

	// HostKeyCallback defaults to accepting any key, matching the
	// provisioning tool's own StrictHostKeyChecking=no behavior.
	HostKeyCallback ssh.HostKeyCallback

	logger zerolog.Logger
}

// NewSSH creates a native SSH executor
func NewSSH(user, keyDir string, resolve AddressResolver, fallback Executor) *SSH {
	return &SSH{
		User:     user,
		Port:     22,
		KeyDir:   keyDir,
		Timeout:  30 * time.Second,
		Resolve:  resolve,
		Fallback: fallback,
		logger:   log.WithComponent("ssh"),
	}
}

// DefaultSSHUser returns the login user the provisioning driver sets up
func DefaultSSHUser(driver string) string {
	switch driver {
	case "virtualbox":
		return "docker"
	case "amazonec2":
		return "ubuntu"
	default:
		return "root"
	}
}

// DefaultKeyDir returns the directory holding per-machine key directories.
// MACHINE_STORAGE_PATH overrides the default ~/.docker/machine.
func DefaultKeyDir() string {
	if dir := os.Getenv("MACHINE_STORAGE_PATH"); dir != "" {
		return filepath.Join(dir, "machines")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".docker", "machine", "machines")
	}
	return filepath.Join(home, ".docker", "machine", "machines")
}

// KeyPath returns the private key path for host
func (s *SSH) KeyPath(host string) string {
	return filepath.Join(s.KeyDir, host, "id_rsa")
}

// Run executes command on target
func (s *SSH) Run(ctx context.Context, target Target, command string) (Output, error) {
	if target.IsLocal() {
		if s.Fallback == nil {
			return Output{}, fmt.Errorf("no executor configured for local commands")
		}
		return s.Fallback.Run(ctx, target, command)
	}

	fail := func(out Output, exitCode int, err error) (Output, error) {
		metrics.CommandsTotal.WithLabelValues("host", "failure").Inc()
		return out, &ExecutionError{
			Target:   target,
			Command:  command,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			ExitCode: exitCode,
			Err:      err,
		}
	}

	client, err := s.dial(ctx, target.Host)
	if err != nil {
		return fail(Output{}, -1, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fail(Output{}, -1, fmt.Errorf("failed to open session: %w", err))
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	s.logger.Debug().
		Str("target", target.String()).
		Str("cmd", command).
		Msg("Executing")

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// Closing the connection ends the session; its output copiers are
		// done writing the buffers once Run returns.
		client.Close()
		<-done
		return fail(Output{Stdout: stdout.String(), Stderr: stderr.String()}, -1, ctx.Err())
	case err = <-done:
	}

	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		exitCode := -1
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitStatus()
		}
		return fail(out, exitCode, err)
	}

	metrics.CommandsTotal.WithLabelValues("host", "success").Inc()
	return out, nil
}

func (s *SSH) dial(ctx context.Context, host string) (*ssh.Client, error) {
	if s.Resolve == nil {
		return nil, fmt.Errorf("no address resolver configured")
	}
	addr, err := s.Resolve(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address of %s: %w", host, err)
	}

	key, err := os.ReadFile(s.KeyPath(host))
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key: %w", err)
	}

	hostKeyCallback := s.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	config := &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.Timeout,
	}

	port := s.Port
	if port == 0 {
		port = 22
	}
	endpoint := net.JoinHostPort(addr, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, endpoint, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", endpoint, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}
