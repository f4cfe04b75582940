package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/fleetrun/fleetrun/internal/domain"
)

func TestDecodeLossy_ReplacesInvalidBytes(t *testing.T) {
	invalid := []byte{'o', 'k', 0xff, 0xfe}
	got := decodeLossy(invalid)
	if got == string(invalid) {
		t.Errorf("decodeLossy did not sanitize invalid bytes")
	}
	if !containsValidPrefix(got, "ok") {
		t.Errorf("decodeLossy(%v) = %q, want it to preserve the valid prefix", invalid, got)
	}
}

func TestDecodeLossy_PassesThroughValidUTF8(t *testing.T) {
	valid := "all good \xE2\x9C\x93"
	got := decodeLossy([]byte(valid))
	if got != valid {
		t.Errorf("decodeLossy(%q) = %q, want unchanged", valid, got)
	}
}

func containsValidPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// fakeHostLogRepo is a minimal in-memory stand-in for repository.HostLogRepository.
type fakeHostLogRepo struct {
	created  *domain.HostLog
	finalize func(id string, status domain.HostLogStatus, stdout, stderr string) error
}

func (f *fakeHostLogRepo) CreateRunning(ctx context.Context, owner domain.OwnerKind, ownerID, hostname string) (*domain.HostLog, error) {
	f.created = &domain.HostLog{ID: "log-1", OwnerKind: owner, OwnerID: ownerID, Hostname: hostname, Status: domain.HostLogStatusRunning}
	return f.created, nil
}

func (f *fakeHostLogRepo) Finalize(ctx context.Context, id string, status domain.HostLogStatus, stdout, stderr string) error {
	if f.finalize != nil {
		return f.finalize(id, status, stdout, stderr)
	}
	return nil
}

func (f *fakeHostLogRepo) ListByOwner(ctx context.Context, owner domain.OwnerKind, ownerID string) ([]*domain.HostLog, error) {
	return nil, nil
}

func (f *fakeHostLogRepo) StatusCounts(ctx context.Context, owner domain.OwnerKind, ownerID string) (map[domain.HostLogStatus]int, error) {
	return nil, nil
}

func (f *fakeHostLogRepo) CountCronLogs(ctx context.Context) (int, error) { return 0, nil }

func (f *fakeHostLogRepo) DeleteOldestCronLogs(ctx context.Context, keep int) (int, error) {
	return 0, nil
}

// TestExecute_UnparseableKey_FinalizesConnectionFailed exercises the
// key-parse failure path without needing a live SSH server: an
// undecodable private key must short-circuit straight to a finalized
// connection_failed row.
func TestExecute_UnparseableKey_FinalizesConnectionFailed(t *testing.T) {
	repo := &fakeHostLogRepo{}
	var gotStatus domain.HostLogStatus
	var gotStderr string
	repo.finalize = func(id string, status domain.HostLogStatus, stdout, stderr string) error {
		gotStatus = status
		gotStderr = stderr
		return nil
	}

	exec := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	host := &domain.Host{Hostname: "example.invalid", Port: 22, Username: "deploy", Shell: domain.DefaultShell}

	log, err := exec.Execute(context.Background(), host, "not a real key", "echo hi", domain.ScriptTypeShell, domain.OwnerKindAdHoc, "job-1")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if log.Status != domain.HostLogStatusConnectionFailed {
		t.Errorf("log.Status = %s, want connection_failed", log.Status)
	}
	if gotStatus != domain.HostLogStatusConnectionFailed {
		t.Errorf("finalized status = %s, want connection_failed", gotStatus)
	}
	if gotStderr == "" {
		t.Errorf("expected non-empty stderr explaining the parse failure")
	}
}
