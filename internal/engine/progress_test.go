package engine

import (
	"testing"
	"time"
)

// fakeClock lets tests drive the simulator's notion of "now".
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSimulator(cfg ProgressConfig) (*ProgressSimulator, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewProgressSimulator(cfg)
	s.now = clock.now
	return s, clock
}

func TestProgressInactiveDefaults(t *testing.T) {
	s, _ := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})

	snap := s.Snapshot()
	if snap.Percent != 0 || snap.Message != "" || !snap.StartedAt.IsZero() {
		t.Errorf("inactive snapshot = %+v, want zero values", snap)
	}
}

func TestProgressPercentFormula(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})
	s.Activate(time.Time{})

	clock.advance(2500 * time.Millisecond)
	if got := s.Snapshot().Percent; got != 25 {
		t.Errorf("percent at 2.5s = %v, want 25", got)
	}

	clock.advance(5 * time.Second)
	if got := s.Snapshot().Percent; got != 75 {
		t.Errorf("percent at 7.5s = %v, want 75", got)
	}
}

func TestProgressCapsAt95(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})
	s.Activate(time.Time{})

	clock.advance(time.Minute)
	if got := s.Snapshot().Percent; got != 95 {
		t.Errorf("percent past estimate = %v, want cap 95", got)
	}
}

func TestProgressMonotonic(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})
	s.Activate(time.Time{})

	var last float64
	for i := 0; i < 50; i++ {
		clock.advance(300 * time.Millisecond)
		got := s.Snapshot().Percent
		if got < last {
			t.Fatalf("percent decreased: %v after %v", got, last)
		}
		if got > 95 {
			t.Fatalf("percent %v exceeds cap before completion", got)
		}
		last = got
	}
}

func TestProgressComplete(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})
	s.Activate(time.Time{})
	clock.advance(time.Second)

	s.Complete()
	if got := s.Snapshot().Percent; got != 100 {
		t.Errorf("percent after Complete = %v, want 100", got)
	}
}

func TestProgressMilestones(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{
		EstimatedDuration: 10 * time.Second,
		Milestones: []Milestone{
			{At: 0, Message: "A"},
			{At: 50, Message: "B"},
			{At: 90, Message: "C"},
		},
	})
	s.Activate(time.Time{})

	steps := []struct {
		elapsed time.Duration
		want    string
	}{
		{100 * time.Millisecond, "A"},
		{5000 * time.Millisecond, "B"},
		{9000 * time.Millisecond, "C"},
	}

	prev := time.Duration(0)
	for _, step := range steps {
		clock.advance(step.elapsed - prev)
		prev = step.elapsed
		if got := s.Snapshot().Message; got != step.want {
			t.Errorf("message at %v = %q, want %q", step.elapsed, got, step.want)
		}
	}
}

func TestProgressNoMilestones(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})
	s.Activate(time.Time{})
	clock.advance(5 * time.Second)

	if got := s.Snapshot().Message; got != "" {
		t.Errorf("message = %q, want empty without milestones", got)
	}
}

func TestProgressDeactivateResets(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{
		EstimatedDuration: 10 * time.Second,
		Milestones:        []Milestone{{At: 0, Message: "working"}},
	})
	s.Activate(time.Time{})
	clock.advance(5 * time.Second)
	s.Deactivate()

	snap := s.Snapshot()
	if snap.Percent != 0 || snap.Message != "" || !snap.StartedAt.IsZero() {
		t.Errorf("snapshot after Deactivate = %+v, want reset", snap)
	}
}

func TestProgressResumesPersistedStart(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})

	// поверхность перемонтировалась: таймлайн начался 4 секунды назад
	persisted := clock.now().Add(-4 * time.Second)
	s.Activate(persisted)

	if got := s.Snapshot().Percent; got != 40 {
		t.Errorf("percent with persisted start = %v, want 40", got)
	}
	if got := s.Snapshot().StartedAt; !got.Equal(persisted) {
		t.Errorf("startedAt = %v, want persisted %v", got, persisted)
	}
}

func TestProgressReactivationRestartsTimeline(t *testing.T) {
	s, clock := newTestSimulator(ProgressConfig{EstimatedDuration: 10 * time.Second})
	s.Activate(time.Time{})
	clock.advance(8 * time.Second)
	s.Complete()
	s.Deactivate()

	s.Activate(time.Time{})
	if got := s.Snapshot().Percent; got != 0 {
		t.Errorf("percent after reactivation = %v, want 0", got)
	}
}

func TestProgressTickNotifications(t *testing.T) {
	s := NewProgressSimulator(ProgressConfig{
		EstimatedDuration: time.Second,
		TickInterval:      5 * time.Millisecond,
	})
	ticks := make(chan ProgressSnapshot, 64)
	s.OnTick(func(snap ProgressSnapshot) {
		select {
		case ticks <- snap:
		default:
		}
	})

	s.Activate(time.Time{})
	defer s.Deactivate()

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("no tick notification within 1s")
	}
}
