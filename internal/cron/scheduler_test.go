package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "five_fields", schedule: "*/5 * * * *"},
		{name: "descriptor", schedule: "@every 10m"},
		{name: "invalid", schedule: "invalid", wantErr: true},
		{name: "out_of_range", schedule: "60 * * * *", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewScheduler(nil)
			err := s.RegisterJob(&simpleJob{name: tt.name, schedule: tt.schedule})
			if (err != nil) != tt.wantErr {
				t.Errorf("RegisterJob() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_TickSkipsWhileBusy(t *testing.T) {
	t.Parallel()

	var concurrent, maxConcurrent atomic.Int32
	release := make(chan struct{})
	job := &simpleJob{
		name:     "slow",
		schedule: "* * * * *",
		runFunc: func(context.Context) error {
			c := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			<-release
			concurrent.Add(-1)
			return nil
		},
	}

	s := NewScheduler(slog.Default())
	e := &entry{job: job}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tick(context.Background(), e)
	}()
	for concurrent.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Overlapping ticks return immediately without running the job.
	for range 5 {
		s.tick(context.Background(), e)
	}
	close(release)
	wg.Wait()

	if maxConcurrent.Load() != 1 {
		t.Errorf("max concurrent = %d, want 1", maxConcurrent.Load())
	}
	if job.calls != 1 {
		t.Errorf("calls = %d, want 1", job.calls)
	}
}

func TestScheduler_JobErrorIsLogged(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	job := &simpleJob{name: "failing", runFunc: func(context.Context) error { return errors.New("job failed") }}
	s.tick(context.Background(), &entry{job: job})
	if job.calls != 1 {
		t.Errorf("calls = %d, want 1", job.calls)
	}
}

type fakePruner struct {
	maxIdle time.Duration
	n       int
}

func (f *fakePruner) PruneIdle(maxIdle time.Duration) int {
	f.maxIdle = maxIdle
	return f.n
}

func TestSlotPruneJob(t *testing.T) {
	t.Parallel()

	p := &fakePruner{n: 3}
	j := &SlotPruneJob{Controller: p, MaxIdle: time.Hour, Logger: slog.Default()}

	if j.Schedule() != "@every 10m" {
		t.Errorf("Schedule() = %q", j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.maxIdle != time.Hour {
		t.Errorf("PruneIdle called with %v, want 1h", p.maxIdle)
	}
}
