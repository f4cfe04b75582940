package runner

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fleetrun/fleetrun/internal/domain"
	"github.com/fleetrun/fleetrun/internal/executor"
)

type fakeTemplates struct{ tmpl *domain.Template }

func (f *fakeTemplates) Create(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	return t, nil
}
func (f *fakeTemplates) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	return f.tmpl, nil
}
func (f *fakeTemplates) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	return f.tmpl, nil
}
func (f *fakeTemplates) Update(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	return t, nil
}
func (f *fakeTemplates) List(ctx context.Context) ([]*domain.Template, error) { return nil, nil }
func (f *fakeTemplates) Delete(ctx context.Context, id string) error          { return nil }

type fakeCredentials struct{ plaintext string }

func (f *fakeCredentials) Create(ctx context.Context, name, plaintext string) (*domain.Credential, error) {
	return &domain.Credential{Name: name}, nil
}
func (f *fakeCredentials) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	return &domain.Credential{ID: id}, nil
}
func (f *fakeCredentials) GetByName(ctx context.Context, name string) (*domain.Credential, error) {
	return &domain.Credential{Name: name}, nil
}
func (f *fakeCredentials) List(ctx context.Context) ([]*domain.Credential, error) { return nil, nil }
func (f *fakeCredentials) Delete(ctx context.Context, id string) error            { return nil }
func (f *fakeCredentials) PrivateKey(ctx context.Context, id string) (string, error) {
	return f.plaintext, nil
}

type fakeHosts struct {
	byID map[string]*domain.Host
}

func (f *fakeHosts) Create(ctx context.Context, h *domain.Host) (*domain.Host, error) { return h, nil }
func (f *fakeHosts) GetByID(ctx context.Context, id string) (*domain.Host, error) {
	h, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrHostNotFound
	}
	return h, nil
}
func (f *fakeHosts) List(ctx context.Context) ([]*domain.Host, error) { return nil, nil }
func (f *fakeHosts) Update(ctx context.Context, h *domain.Host) (*domain.Host, error) {
	return h, nil
}
func (f *fakeHosts) Delete(ctx context.Context, id string) error                           { return nil }
func (f *fakeHosts) AddToGroup(ctx context.Context, hostID, groupID string) error          { return nil }
func (f *fakeHosts) RemoveFromGroup(ctx context.Context, hostID, groupID string) error      { return nil }
func (f *fakeHosts) MembersOf(ctx context.Context, groupID string) ([]*domain.Host, error) { return nil, nil }

type fakeAdHocJobs struct {
	mu      sync.Mutex
	jobs    map[string]*domain.AdHocJob
	counter int
}

func newFakeAdHocJobs() *fakeAdHocJobs {
	return &fakeAdHocJobs{jobs: make(map[string]*domain.AdHocJob)}
}

func (f *fakeAdHocJobs) Create(ctx context.Context, templateName string) (*domain.AdHocJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	job := &domain.AdHocJob{ID: "job-1", TemplateName: templateName, Status: domain.JobStatusRunning, CreatedAt: time.Now()}
	f.jobs[job.ID] = job
	return job, nil
}
func (f *fakeAdHocJobs) GetByID(ctx context.Context, id string) (*domain.AdHocJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrAdHocJobNotFound
	}
	return j, nil
}
func (f *fakeAdHocJobs) SetStatus(ctx context.Context, id string, status domain.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrAdHocJobNotFound
	}
	j.Status = status
	return nil
}
func (f *fakeAdHocJobs) Delete(ctx context.Context, id string) error { return nil }

type fakeHostLogs struct {
	mu     sync.Mutex
	logs   []*domain.HostLog
	nextID int
}

func newFakeHostLogs() *fakeHostLogs { return &fakeHostLogs{} }

func (f *fakeHostLogs) CreateRunning(ctx context.Context, owner domain.OwnerKind, ownerID, hostname string) (*domain.HostLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	log := &domain.HostLog{ID: string(rune('a' + f.nextID)), OwnerKind: owner, OwnerID: ownerID, Hostname: hostname, Status: domain.HostLogStatusRunning}
	f.logs = append(f.logs, log)
	return log, nil
}

func (f *fakeHostLogs) Finalize(ctx context.Context, id string, status domain.HostLogStatus, stdout, stderr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id {
			l.Status = status
			l.Stdout = stdout
			l.Stderr = stderr
			return nil
		}
	}
	return domain.ErrHostLogNotFound
}

func (f *fakeHostLogs) ListByOwner(ctx context.Context, owner domain.OwnerKind, ownerID string) ([]*domain.HostLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.HostLog
	for _, l := range f.logs {
		if l.OwnerKind == owner && l.OwnerID == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeHostLogs) StatusCounts(ctx context.Context, owner domain.OwnerKind, ownerID string) (map[domain.HostLogStatus]int, error) {
	logs, _ := f.ListByOwner(ctx, owner, ownerID)
	counts := make(map[domain.HostLogStatus]int)
	for _, l := range logs {
		counts[l.Status]++
	}
	return counts, nil
}

func (f *fakeHostLogs) CountCronLogs(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeHostLogs) DeleteOldestCronLogs(ctx context.Context, keep int) (int, error) {
	return 0, nil
}

func TestRun_EmptyTargetSet_ReturnsError(t *testing.T) {
	r := New(
		&fakeTemplates{tmpl: &domain.Template{ID: "t1", Name: "noop", Type: domain.ScriptTypeShell}},
		&fakeCredentials{plaintext: "not-a-real-key"},
		&fakeHosts{byID: map[string]*domain.Host{}},
		newFakeAdHocJobs(),
		newFakeHostLogs(),
		executor.New(newFakeHostLogs(), slog.New(slog.NewTextHandler(io.Discard, nil))),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := r.Run(context.Background(), "t1", nil, nil, "c1")
	if err != domain.ErrEmptyTargetSet {
		t.Fatalf("Run() error = %v, want ErrEmptyTargetSet", err)
	}
}

func TestRun_FanOutRollsUpToFailed(t *testing.T) {
	hosts := &fakeHosts{byID: map[string]*domain.Host{
		"h1": {ID: "h1", Hostname: "host1.invalid", Port: 22, Username: "deploy", Shell: domain.DefaultShell},
		"h2": {ID: "h2", Hostname: "host2.invalid", Port: 22, Username: "deploy", Shell: domain.DefaultShell},
	}}
	hostLogs := newFakeHostLogs()
	jobs := newFakeAdHocJobs()

	r := New(
		&fakeTemplates{tmpl: &domain.Template{ID: "t1", Name: "noop", Content: "echo hi", Type: domain.ScriptTypeShell}},
		&fakeCredentials{plaintext: "not-a-real-key"},
		hosts,
		jobs,
		hostLogs,
		executor.New(hostLogs, slog.New(slog.NewTextHandler(io.Discard, nil))),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	jobID, err := r.Run(context.Background(), "t1", []string{"h1", "h2"}, nil, "c1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		job, _ := jobs.GetByID(context.Background(), jobID)
		if job.Status != domain.JobStatusRunning {
			if job.Status != domain.JobStatusFailed {
				t.Errorf("job.Status = %s, want failed (unparseable key forces connection_failed on every host)", job.Status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for dispatch to finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
