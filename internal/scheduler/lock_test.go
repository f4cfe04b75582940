package scheduler

import "testing"

func TestLockRegistry_TryAcquire_SecondAttemptFails(t *testing.T) {
	reg := newLockRegistry()

	release, ok := reg.TryAcquire("job-1")
	if !ok {
		t.Fatal("first TryAcquire should succeed")
	}

	if _, ok := reg.TryAcquire("job-1"); ok {
		t.Error("second TryAcquire while held should fail")
	}

	release()

	release2, ok := reg.TryAcquire("job-1")
	if !ok {
		t.Error("TryAcquire after release should succeed")
	}
	release2()
}

func TestLockRegistry_IndependentJobsDoNotContend(t *testing.T) {
	reg := newLockRegistry()

	release1, ok := reg.TryAcquire("job-1")
	if !ok {
		t.Fatal("job-1 TryAcquire should succeed")
	}
	defer release1()

	if _, ok := reg.TryAcquire("job-2"); !ok {
		t.Error("job-2 TryAcquire should succeed independently of job-1's lock")
	}
}
