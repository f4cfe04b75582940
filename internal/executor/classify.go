package executor

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// classifyConnectErr maps a connect/handshake-time error to the stderr
// prefix used when a HostLog is finalized. Every branch here always
// yields HostLogStatusConnectionFailed — a remote
// non-zero exit is classified separately, in the caller's exit-status
// check. golang.org/x/crypto/ssh does not export typed errors for auth
// rejection or protocol failures during Dial, so classification falls
// back to matching the wrapped message text, same as the error text the
// library itself documents ("ssh: handshake failed", "ssh: unable to
// authenticate").
func classifyConnectErr(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Connection Timeout: " + err.Error()
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods remain"):
		return "Authentication Error: " + msg
	case strings.Contains(msg, "ssh:"):
		return "SSH Error: " + msg
	default:
		return fmt.Sprintf("Connection Error: %v", err)
	}
}
