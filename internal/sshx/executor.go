// Package sshx executes single commands on remote servers over SSH.
//
// Every call opens a fresh authenticated session and tears it down when the
// command finishes. There is no connection reuse: each call pays full
// connection setup cost in exchange for having no pool state to manage.
package sshx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Timeouts applied by the executor's higher-level operations.
const (
	DefaultTimeout     = 30 * time.Second
	ProbeTimeout       = 15 * time.Second
	LivenessTimeout    = 10 * time.Second
	MaintenanceTimeout = 120 * time.Second

	dialTimeout = 10 * time.Second
)

// Target identifies a remote server and how to authenticate against it.
type Target struct {
	Host       string
	Port       int
	Username   string
	AuthType   string // "password" or "key"
	Password   string
	PrivateKey string // PEM-encoded; used when AuthType is "key"
}

// Addr returns the dial address as host:port, defaulting the port to 22.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Result is the captured outcome of one remote command.
// A failed connection, authentication, or execution is reported as
// ExitCode -1 with the error text in Stderr, never as a Go error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Failed reports whether the command did not finish with exit code 0.
func (r Result) Failed() bool {
	return r.ExitCode != 0
}

// maintenanceCommands are the predefined multi-step remote operations,
// keyed by component name.
var maintenanceCommands = map[string]string{
	"panel":        "cd /opt/remnawave && docker compose pull && docker compose down && docker compose up -d && docker compose logs --tail=50",
	"node":         "cd /opt/remnanode && docker compose pull && docker compose down && docker compose up -d && docker compose logs --tail=50",
	"subscription": "cd /opt/remnawave/subscription && docker compose pull && docker compose down && docker compose up -d && docker compose logs --tail=50",
	"clean":        "docker image prune -f",
}

// Components returns the valid maintenance component names.
func Components() []string {
	return []string{"panel", "node", "subscription", "clean"}
}

// componentTitles are the operator-facing names of the predefined
// components.
var componentTitles = map[string]string{
	"panel":        "Remnawave Panel",
	"node":         "Remnawave Node",
	"subscription": "Subscription Page",
	"clean":        "Docker Clean",
}

// ComponentTitle returns the display name for a component, or the raw
// name when unknown.
func ComponentTitle(component string) string {
	if title, ok := componentTitles[component]; ok {
		return title
	}
	return component
}

// Executor runs commands on remote targets.
type Executor struct {
	logger *zap.Logger

	// dial is the function used to establish SSH connections.
	// Defaults to ssh.Dial; overridden in tests.
	dial func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

// NewExecutor creates an Executor.
func NewExecutor(logger *zap.Logger) *Executor {
	return &Executor{logger: logger, dial: ssh.Dial}
}

// Execute runs a single command on the target and captures its output.
// The session is torn down on every exit path. Output is decoded as UTF-8
// with invalid bytes replaced.
func (e *Executor) Execute(ctx context.Context, target Target, command string, timeout time.Duration) Result {
	cfg, err := clientConfig(target)
	if err != nil {
		e.logger.Error("ssh auth setup failed", zap.String("host", target.Host), zap.Error(err))
		return failure(err)
	}

	client, err := e.dial("tcp", target.Addr(), cfg)
	if err != nil {
		e.logger.Error("ssh dial failed", zap.String("addr", target.Addr()), zap.Error(err))
		return failure(err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		e.logger.Error("ssh session failed", zap.String("addr", target.Addr()), zap.Error(err))
		return failure(err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		err = fmt.Errorf("command timed out after %s", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				Stdout:   sanitize(stdout.String()),
				Stderr:   sanitize(stderr.String()),
				ExitCode: exitErr.ExitStatus(),
			}
		}
		e.logger.Error("ssh exec failed",
			zap.String("addr", target.Addr()),
			zap.Error(err),
		)
		return failure(err)
	}

	return Result{
		Stdout:   sanitize(stdout.String()),
		Stderr:   sanitize(stderr.String()),
		ExitCode: 0,
	}
}

// CheckConnection probes the target with a short echo and reports liveness.
func (e *Executor) CheckConnection(ctx context.Context, target Target) bool {
	r := e.Execute(ctx, target, "echo ok", LivenessTimeout)
	return r.ExitCode == 0 && strings.Contains(r.Stdout, "ok")
}

// ChangePassword sets a new password for the target's login user via chpasswd.
// Returns (true, "") on success, (false, stderr) on failure.
func (e *Executor) ChangePassword(ctx context.Context, target Target, newPassword string) (bool, string) {
	command := fmt.Sprintf("echo '%s:%s' | chpasswd", target.Username, newPassword)
	r := e.Execute(ctx, target, command, DefaultTimeout)
	if r.ExitCode == 0 {
		return true, ""
	}
	return false, r.Stderr
}

// Maintain runs a predefined maintenance command (component update/redeploy
// or image prune) with an extended timeout.
func (e *Executor) Maintain(ctx context.Context, target Target, component string) Result {
	command, ok := maintenanceCommands[component]
	if !ok {
		return failure(fmt.Errorf("unknown component %q", component))
	}
	return e.Execute(ctx, target, command, MaintenanceTimeout)
}

// clientConfig builds the SSH client configuration for a target.
// Host keys are accepted without verification: targets are entered by the
// operator and the bot has no channel to confirm fingerprints interactively.
func clientConfig(target Target) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if target.AuthType == "key" && target.PrivateKey != "" {
		// ssh.ParsePrivateKey accepts RSA and Ed25519 PEM encodings alike.
		signer, err := ssh.ParsePrivateKey([]byte(target.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	} else {
		auth = []ssh.AuthMethod{ssh.Password(target.Password)}
	}

	return &ssh.ClientConfig{
		User:            target.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // G106: operator-entered targets, no interactive fingerprint channel
		Timeout:         dialTimeout,
	}, nil
}

func failure(err error) Result {
	return Result{Stderr: err.Error(), ExitCode: -1}
}

func sanitize(s string) string {
	return strings.ToValidUTF8(s, "�")
}
