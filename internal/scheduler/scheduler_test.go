package scheduler

import (
	"context"
	"errors"
	"testing"

	"smabot/internal/config"
)

type fakeRunner struct {
	cycles int
	labels []string
	err    error
}

func (f *fakeRunner) RunCycle(context.Context) error {
	f.cycles++
	return f.err
}

func (f *fakeRunner) LogPortfolio(_ context.Context, label string) {
	f.labels = append(f.labels, label)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	if _, err := New(context.Background(), &fakeRunner{}, "Mars/Olympus"); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestRegisterAllUsesDefaultSchedule(t *testing.T) {
	s, err := New(context.Background(), &fakeRunner{}, "America/New_York")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.RegisterAll(config.Default().Schedule); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if n := len(s.Cron.Entries()); n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s, err := New(context.Background(), &fakeRunner{}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.RegisterAll(config.ScheduleConfig{IterationCron: "every day"}); err == nil {
		t.Fatalf("expected invalid cron error")
	}
}

func TestRunNowCallsAfterCycleEvenOnError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("broker down")}
	s, err := New(context.Background(), runner, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	saved := 0
	s.AfterCycle = func() { saved++ }

	s.RunNow()
	s.RunNow()

	if runner.cycles != 2 || saved != 2 {
		t.Fatalf("expected 2 cycles and 2 saves, got %d and %d", runner.cycles, saved)
	}
}
