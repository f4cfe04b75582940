// Package executor is the single-host SSH execution
// primitive every ad-hoc and scheduled run fans out to. It is the only
// component that talks to the outside world over SSH.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/fleetrun/fleetrun/internal/metrics"
	"github.com/fleetrun/fleetrun/internal/repository"
	"golang.org/x/crypto/ssh"
)

// connectTimeout is passed as golang.org/x/crypto/ssh.ClientConfig.Timeout,
// which bounds only the TCP dial. The SSH handshake and banner exchange
// that follow the dial have no timeout of their own.
const (
	connectTimeout = 15 * time.Second
	execTimeout    = 300 * time.Second

	// interpretedCommand is the fixed interpreter used for
	// script_type=interpreted templates.
	interpretedCommand = "python3 -"
)

// Executor runs one script on one host over SSH and persists the
// outcome as a HostLog row.
type Executor struct {
	hostLogs repository.HostLogRepository
	logger   *slog.Logger
}

func New(hostLogs repository.HostLogRepository, logger *slog.Logger) *Executor {
	return &Executor{
		hostLogs: hostLogs,
		logger:   logger.With("component", "executor"),
	}
}

// Execute connects, authenticates, feeds the script over stdin,
// collects the outcome, and persists exactly one terminal HostLog row.
func (e *Executor) Execute(
	ctx context.Context,
	host *domain.Host,
	privateKeyPEM string,
	scriptBody string,
	scriptType domain.ScriptType,
	owner domain.OwnerKind,
	ownerID string,
) (*domain.HostLog, error) {
	log, err := e.hostLogs.CreateRunning(ctx, owner, ownerID, host.Hostname)
	if err != nil {
		return nil, fmt.Errorf("create running host log: %w", err)
	}

	start := time.Now()
	status, stdout, stderr := e.run(ctx, host, privateKeyPEM, scriptBody, scriptType)

	metrics.ExecutorRunDuration.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
	metrics.ExecutorRunsTotal.WithLabelValues(string(status)).Inc()

	if err := e.hostLogs.Finalize(ctx, log.ID, status, stdout, stderr); err != nil {
		return nil, fmt.Errorf("finalize host log: %w", err)
	}

	log.Status = status
	log.Stdout = stdout
	log.Stderr = stderr
	return log, nil
}

// run connects, authenticates, executes, and returns the terminal
// status plus decoded output. It never returns an error directly — every failure
// mode is expressed as a (status, stdout, stderr) triple so the caller
// always has something to persist; stdout is empty unless the remote
// command ran far enough to produce output.
func (e *Executor) run(
	ctx context.Context,
	host *domain.Host,
	privateKeyPEM string,
	scriptBody string,
	scriptType domain.ScriptType,
) (domain.HostLogStatus, string, string) {
	signer, err := parsePrivateKey([]byte(privateKeyPEM))
	if err != nil {
		e.logger.WarnContext(ctx, "private key parse failed", "host", host.Hostname, "error", err)
		return domain.HostLogStatusConnectionFailed, "", errUnparseableKey.Error()
	}

	cfg := &ssh.ClientConfig{
		User:            host.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // host keys are accepted automatically; TOFU is not performed
		Timeout:         connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", host.Hostname, host.Port)
	connectStart := time.Now()
	client, err := ssh.Dial("tcp", addr, cfg)
	metrics.ExecutorConnectDuration.Observe(time.Since(connectStart).Seconds())
	if err != nil {
		e.logger.WarnContext(ctx, "ssh connect failed", "host", host.Hostname, "error", err)
		return domain.HostLogStatusConnectionFailed, "", classifyConnectErr(err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		e.logger.WarnContext(ctx, "ssh session open failed", "host", host.Hostname, "error", err)
		return domain.HostLogStatusConnectionFailed, "", classifyConnectErr(err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	stdin, err := session.StdinPipe()
	if err != nil {
		e.logger.WarnContext(ctx, "stdin pipe failed", "host", host.Hostname, "error", err)
		return domain.HostLogStatusConnectionFailed, "", classifyConnectErr(err)
	}

	command := host.Shell
	if scriptType == domain.ScriptTypeInterpreted {
		command = interpretedCommand
	}

	if err := session.Start(command); err != nil {
		e.logger.WarnContext(ctx, "remote command start failed", "host", host.Hostname, "error", err)
		return domain.HostLogStatusConnectionFailed, "", classifyConnectErr(err)
	}

	if _, err := stdin.Write([]byte(scriptBody)); err != nil {
		e.logger.WarnContext(ctx, "stdin write failed", "host", host.Hostname, "error", err)
		return domain.HostLogStatusConnectionFailed, "", classifyConnectErr(err)
	}
	_ = stdin.Close()

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		return domain.HostLogStatusConnectionFailed, "", "Connection Timeout: " + ctx.Err().Error()
	case <-time.After(execTimeout):
		return domain.HostLogStatusConnectionFailed, "", "Connection Timeout: remote command exceeded 300s channel timeout"
	case err := <-done:
		stdout := decodeLossy(stdoutBuf.Bytes())
		stderr := decodeLossy(stderrBuf.Bytes())

		if err == nil {
			return domain.HostLogStatusSuccess, stdout, stderr
		}

		if _, ok := err.(*ssh.ExitError); ok {
			// A remote non-zero exit is never connection_failed.
			return domain.HostLogStatusError, stdout, stderr
		}

		e.logger.WarnContext(ctx, "remote command wait failed", "host", host.Hostname, "error", err)
		return domain.HostLogStatusConnectionFailed, stdout, classifyConnectErr(err)
	}
}

// decodeLossy decodes raw SSH channel bytes as UTF-8, replacing invalid
// byte sequences instead of erroring.
func decodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
