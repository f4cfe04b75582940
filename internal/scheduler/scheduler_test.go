package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fleetrun/fleetrun/internal/domain"
)

type fakeScheduledJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func newFakeScheduledJobs(jobs ...*domain.ScheduledJob) *fakeScheduledJobs {
	f := &fakeScheduledJobs{jobs: make(map[string]*domain.ScheduledJob)}
	for _, j := range jobs {
		f.jobs[j.ID] = j
	}
	return f
}

func (f *fakeScheduledJobs) Create(ctx context.Context, s *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	return s, nil
}
func (f *fakeScheduledJobs) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrScheduledJobNotFound
	}
	return j, nil
}
func (f *fakeScheduledJobs) GetByName(ctx context.Context, name string) (*domain.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return nil, domain.ErrScheduledJobNotFound
}
func (f *fakeScheduledJobs) ListEnabled(ctx context.Context) ([]*domain.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ScheduledJob
	for _, j := range f.jobs {
		if j.Enabled {
			out = append(out, j)
		}
	}
	return out, nil
}
func (f *fakeScheduledJobs) List(ctx context.Context) ([]*domain.ScheduledJob, error) { return nil, nil }
func (f *fakeScheduledJobs) SetEnabled(ctx context.Context, id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrScheduledJobNotFound
	}
	j.Enabled = enabled
	return nil
}
func (f *fakeScheduledJobs) UpdateRunTimes(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return domain.ErrScheduledJobNotFound
	}
	j.LastRun = &lastRun
	j.NextRun = nextRun
	return nil
}
func (f *fakeScheduledJobs) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeScheduledJobs) ReferencingTemplate(ctx context.Context, templateID string) ([]string, error) {
	return nil, nil
}

type fakeHostLogs struct{}

func (fakeHostLogs) CreateRunning(ctx context.Context, owner domain.OwnerKind, ownerID, hostname string) (*domain.HostLog, error) {
	return &domain.HostLog{ID: "l1"}, nil
}
func (fakeHostLogs) Finalize(ctx context.Context, id string, status domain.HostLogStatus, stdout, stderr string) error {
	return nil
}
func (fakeHostLogs) ListByOwner(ctx context.Context, owner domain.OwnerKind, ownerID string) ([]*domain.HostLog, error) {
	return nil, nil
}
func (fakeHostLogs) StatusCounts(ctx context.Context, owner domain.OwnerKind, ownerID string) (map[domain.HostLogStatus]int, error) {
	return nil, nil
}
func (fakeHostLogs) CountCronLogs(ctx context.Context) (int, error) { return 0, nil }
func (fakeHostLogs) DeleteOldestCronLogs(ctx context.Context, keep int) (int, error) {
	return 0, nil
}

type fakeSettings struct {
	limit int
}

func (f *fakeSettings) Get(ctx context.Context) (*domain.Settings, error) {
	return &domain.Settings{ID: 1, CronHistoryLimit: f.limit}, nil
}
func (f *fakeSettings) SetCronHistoryLimit(ctx context.Context, limit int) error {
	f.limit = limit
	return nil
}

type countingDispatcher struct {
	calls int32
	delay time.Duration
}

func (d *countingDispatcher) RunScheduled(ctx context.Context, job *domain.ScheduledJob) error {
	atomic.AddInt32(&d.calls, 1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateExpr(t *testing.T) {
	if err := ValidateExpr("*/5 * * * *"); err != nil {
		t.Errorf("ValidateExpr(valid) error = %v", err)
	}
	if err := ValidateExpr("not a cron expr"); err == nil {
		t.Error("ValidateExpr(invalid) expected an error")
	}
}

func TestFire_DisabledJob_Skipped(t *testing.T) {
	job := &domain.ScheduledJob{ID: "j1", Name: "disabled", Schedule: "* * * * *", Enabled: false}
	jobs := newFakeScheduledJobs(job)
	dispatcher := &countingDispatcher{}

	s := New(jobs, fakeHostLogs{}, &fakeSettings{}, dispatcher, newTestLogger())
	s.fire(context.Background(), "j1")

	if atomic.LoadInt32(&dispatcher.calls) != 0 {
		t.Errorf("dispatcher should not be called for a disabled job")
	}
}

func TestFire_NonReentrant_SecondConcurrentFireSkips(t *testing.T) {
	job := &domain.ScheduledJob{ID: "j1", Name: "slow", Schedule: "* * * * *", Enabled: true}
	jobs := newFakeScheduledJobs(job)
	dispatcher := &countingDispatcher{delay: 150 * time.Millisecond}

	s := New(jobs, fakeHostLogs{}, &fakeSettings{}, dispatcher, newTestLogger())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.fire(context.Background(), "j1") }()
	time.Sleep(20 * time.Millisecond)
	go func() { defer wg.Done(); s.fire(context.Background(), "j1") }()
	wg.Wait()

	if got := atomic.LoadInt32(&dispatcher.calls); got != 1 {
		t.Errorf("dispatcher calls = %d, want exactly 1 (overlap must be dropped, not queued)", got)
	}
}

func TestInstall_ReplacesExistingTrigger(t *testing.T) {
	job := &domain.ScheduledJob{ID: "j1", Name: "x", Schedule: "0 0 * * *", Enabled: true}
	s := New(newFakeScheduledJobs(job), fakeHostLogs{}, &fakeSettings{}, &countingDispatcher{}, newTestLogger())

	if err := s.Install(job); err != nil {
		t.Fatalf("first Install() error = %v", err)
	}
	if len(s.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(s.entries))
	}

	job.Schedule = "0 12 * * *"
	if err := s.Install(job); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}
	if len(s.entries) != 1 {
		t.Errorf("entries after reinstall = %d, want exactly 1 (no duplicate trigger)", len(s.entries))
	}
}
