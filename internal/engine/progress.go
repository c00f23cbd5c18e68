package engine

import (
	"sort"
	"sync"
	"time"
)

// Milestone pairs a progress threshold with the status message shown once the
// simulated percentage reaches it.
type Milestone struct {
	At      float64 `json:"at"`
	Message string  `json:"message"`
}

// ProgressConfig описывает симуляцию прогресса для одного вида генерации.
type ProgressConfig struct {
	EstimatedDuration time.Duration
	Milestones        []Milestone
	Color             string
	// TickInterval drives change notifications while active. Zero means the
	// default of 16ms; reads recompute from the clock regardless.
	TickInterval time.Duration
}

// ProgressSnapshot is the read-only view consumed by display surfaces.
type ProgressSnapshot struct {
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Color     string    `json:"color,omitempty"`
}

const (
	// simulatedCap keeps the bar short of done until the real request settles.
	simulatedCap = 95.0
	defaultTick  = 16 * time.Millisecond
)

// ProgressSimulator fakes a completion percentage from elapsed wall-clock time
// against an estimated duration. It never reports 100 on its own; only
// Complete forces the bar to the end. Safe for concurrent use.
type ProgressSimulator struct {
	mu         sync.Mutex
	cfg        ProgressConfig
	now        func() time.Time
	active     bool
	completed  bool
	startedAt  time.Time
	floor      float64 // highest percent observed this activation
	ticker     *time.Ticker
	tickerDone chan struct{}
	onTick     func(ProgressSnapshot)
}

func NewProgressSimulator(cfg ProgressConfig) *ProgressSimulator {
	sort.Slice(cfg.Milestones, func(i, j int) bool {
		return cfg.Milestones[i].At < cfg.Milestones[j].At
	})
	return &ProgressSimulator{
		cfg: cfg,
		now: time.Now,
	}
}

// Activate starts a simulation timeline. A zero startedAt means "now"; a
// non-zero value resumes a persisted timeline so a remounted display surface
// continues instead of restarting.
func (s *ProgressSimulator) Activate(startedAt time.Time) {
	s.mu.Lock()
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	s.active = true
	s.completed = false
	s.startedAt = startedAt
	s.floor = 0
	s.startTickerLocked()
	s.mu.Unlock()
}

// Deactivate resets the simulator to the inactive defaults.
func (s *ProgressSimulator) Deactivate() {
	s.mu.Lock()
	s.active = false
	s.completed = false
	s.startedAt = time.Time{}
	s.floor = 0
	s.stopTickerLocked()
	s.mu.Unlock()
}

// Complete forces the percentage to 100, overriding the time-based formula.
// Invoked by the controller once the real request settles successfully.
func (s *ProgressSimulator) Complete() {
	s.mu.Lock()
	if s.active {
		s.completed = true
	}
	s.stopTickerLocked()
	s.mu.Unlock()
}

// OnTick registers a callback invoked on every tick while active. Intended for
// the controller's notify fan-out; at most one callback is supported.
func (s *ProgressSimulator) OnTick(fn func(ProgressSnapshot)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// Snapshot computes the current (percent, message) pair.
func (s *ProgressSimulator) Snapshot() ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ProgressSimulator) snapshotLocked() ProgressSnapshot {
	if !s.active {
		return ProgressSnapshot{Color: s.cfg.Color}
	}
	if s.completed {
		return ProgressSnapshot{
			Percent:   100,
			Message:   s.messageFor(100),
			StartedAt: s.startedAt,
			Color:     s.cfg.Color,
		}
	}

	percent := simulatedCap
	if s.cfg.EstimatedDuration > 0 {
		elapsed := s.now().Sub(s.startedAt)
		percent = 100 * float64(elapsed) / float64(s.cfg.EstimatedDuration)
		if percent > simulatedCap {
			percent = simulatedCap
		}
		if percent < 0 {
			percent = 0
		}
	}
	// монотонность в пределах одной активации
	if percent < s.floor {
		percent = s.floor
	}
	s.floor = percent

	return ProgressSnapshot{
		Percent:   percent,
		Message:   s.messageFor(percent),
		StartedAt: s.startedAt,
		Color:     s.cfg.Color,
	}
}

// messageFor returns the message of the greatest milestone threshold that is
// at or below percent, or "" when none is reached.
func (s *ProgressSimulator) messageFor(percent float64) string {
	msg := ""
	for _, m := range s.cfg.Milestones {
		if m.At > percent {
			break
		}
		msg = m.Message
	}
	return msg
}

func (s *ProgressSimulator) startTickerLocked() {
	s.stopTickerLocked()
	if s.onTick == nil {
		return
	}
	interval := s.cfg.TickInterval
	if interval <= 0 {
		interval = defaultTick
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	s.ticker = ticker
	s.tickerDone = done

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				fn := s.onTick
				snap := s.snapshotLocked()
				s.mu.Unlock()
				if fn != nil {
					fn(snap)
				}
			}
		}
	}()
}

func (s *ProgressSimulator) stopTickerLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.tickerDone)
		s.ticker = nil
		s.tickerDone = nil
	}
}
