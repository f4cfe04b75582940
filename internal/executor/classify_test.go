package executor

import (
	"errors"
	"testing"
)

func TestClassifyConnectErr(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		prefix string
	}{
		{"auth rejection", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [publickey], no supported methods remain"), "Authentication Error"},
		{"protocol error", errors.New("ssh: handshake failed: ssh: disconnect, reason 2"), "SSH Error"},
		{"unexpected error", errors.New("dial tcp: connection refused"), "Connection Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyConnectErr(tt.err)
			if len(got) < len(tt.prefix) || got[:len(tt.prefix)] != tt.prefix {
				t.Errorf("classifyConnectErr(%v) = %q, want prefix %q", tt.err, got, tt.prefix)
			}
		})
	}
}
