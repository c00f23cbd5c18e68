// Package engine orchestrates AI card generation requests: validation,
// live/simulated transport selection, single-flight cancellation, a watchdog
// timeout, a simulated progress bar and a retry-aware error taxonomy.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// TutorialConfig switches the controller to the simulated transport: no
// network I/O, a timed resolution with mock data instead.
type TutorialConfig struct {
	MockData          json.RawMessage
	SimulatedDuration time.Duration
}

// Config is the immutable per-controller configuration supplied by the caller.
type Config struct {
	Endpoint string
	// Timeout arms the watchdog for every live request. Zero means the
	// default of 150s.
	Timeout time.Duration
	Client  *http.Client
	Headers map[string]string

	// Validate, TransformInput and TransformOutput are caller-supplied pure
	// functions; the controller calls them synchronously. All optional.
	Validate        func(input any) FieldErrors
	TransformInput  func(input any) (json.RawMessage, error)
	TransformOutput func(raw json.RawMessage) (any, error)

	Progress ProgressConfig
	Tutorial *TutorialConfig

	// Transport overrides the live transport when set. Tutorial still wins.
	Transport Transport
}

const defaultTimeout = 150 * time.Second

// Snapshot is the reactive state a display surface binds to.
type Snapshot struct {
	Generating bool             `json:"generating"`
	Err        *GenerationError `json:"error,omitempty"`
	Progress   ProgressSnapshot `json:"progress"`
}

type inFlight struct {
	startedAt time.Time
	cancel    context.CancelFunc
}

// Controller orchestrates one generation kind: validation, transport
// selection, single-flight cancellation, the watchdog timeout and output
// transformation. It owns the isGenerating/error reactive state and the
// progress simulator.
//
// Не более одного запроса в полёте: новый Generate синхронно отменяет
// предыдущий до создания нового (last-writer-wins, без очереди).
type Controller struct {
	cfg      Config
	live     Transport
	progress *ProgressSimulator

	mu         sync.Mutex
	generating bool
	genErr     *GenerationError
	inflight   *inFlight
	closed     bool

	listeners map[int]func(Snapshot)
	nextID    int
}

func NewController(cfg Config) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	live := cfg.Transport
	if live == nil {
		live = NewLiveTransport(cfg.Endpoint, cfg.Client)
		if t, ok := live.(*LiveTransport); ok {
			t.Headers = cfg.Headers
		}
	}
	c := &Controller{
		cfg:       cfg,
		live:      live,
		progress:  NewProgressSimulator(cfg.Progress),
		listeners: map[int]func(Snapshot){},
	}
	c.progress.OnTick(func(ProgressSnapshot) { c.notify() })
	return c
}

// Generate runs one generation attempt and returns the transformed output.
//
// Invalid input returns FieldErrors without touching any transport. A request
// superseded by a newer call (or by Cancel/Close) returns ErrSuperseded and
// records no GenerationError. A watchdog expiry records a retryable TIMEOUT.
func (c *Controller) Generate(ctx context.Context, input any) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}

	// сбрасываем предыдущую ошибку в начале каждого вызова
	c.genErr = nil

	if c.cfg.Validate != nil {
		if fe := c.cfg.Validate(input); len(fe) > 0 {
			c.mu.Unlock()
			c.notify()
			return nil, fe
		}
	}

	// single-flight: отменяем предыдущий запрос до создания нового
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}

	payload := json.RawMessage(`{}`)
	if c.cfg.TransformInput != nil {
		p, err := c.cfg.TransformInput(input)
		if err != nil {
			c.mu.Unlock()
			c.notify()
			return nil, fmt.Errorf("transform input: %w", err)
		}
		payload = p
	}

	transport := c.live
	if c.cfg.Tutorial != nil {
		transport = NewSimulatedTransport(c.cfg.Tutorial.SimulatedDuration, c.cfg.Tutorial.MockData)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	mine := &inFlight{startedAt: time.Now(), cancel: cancel}
	c.inflight = mine
	c.generating = true
	c.progress.Activate(mine.startedAt)
	c.mu.Unlock()
	c.notify()

	raw, err := transport.Submit(reqCtx, payload)
	return c.settle(mine, reqCtx, raw, err)
}

// settle resolves one request's outcome. A request that is no longer current
// was superseded; it must not mutate controller state.
func (c *Controller) settle(mine *inFlight, reqCtx context.Context, raw json.RawMessage, err error) (any, error) {
	c.mu.Lock()
	if c.inflight != mine {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	c.inflight = nil
	c.generating = false
	mine.cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) && reqCtx.Err() != context.DeadlineExceeded {
			c.progress.Deactivate()
			c.mu.Unlock()
			c.notify()
			return nil, ErrSuperseded
		}
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			// watchdog expiry: видимая ошибка TIMEOUT
			err = context.DeadlineExceeded
		}
		gerr := Classify(err)
		c.genErr = gerr
		c.progress.Deactivate()
		c.mu.Unlock()
		c.notify()
		return nil, gerr
	}

	var out any = raw
	if c.cfg.TransformOutput != nil {
		v, terr := c.cfg.TransformOutput(raw)
		if terr != nil {
			gerr := Classify(fmt.Errorf("transform output: %w", terr))
			c.genErr = gerr
			c.progress.Deactivate()
			c.mu.Unlock()
			c.notify()
			return nil, gerr
		}
		out = v
	}

	c.progress.Complete()
	c.mu.Unlock()
	c.notify()
	return out, nil
}

// Cancel silently aborts the in-flight request, if any. Not a failure: no
// GenerationError is recorded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
		c.generating = false
	}
	c.progress.Deactivate()
	c.mu.Unlock()
	c.notify()
}

// ClearError resets the current error without touching in-flight state.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.genErr = nil
	c.mu.Unlock()
	c.notify()
}

// Close disposes the controller: any in-flight request is cancelled and no
// state is mutated afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
	c.generating = false
	c.mu.Unlock()
	c.progress.Deactivate()
	c.notify()
}

// IsGenerating reports whether a request is currently in flight.
func (c *Controller) IsGenerating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating
}

// Err returns the current GenerationError, or nil.
func (c *Controller) Err() *GenerationError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.genErr
}

// Progress returns the current simulated progress snapshot.
func (c *Controller) Progress() ProgressSnapshot {
	return c.progress.Snapshot()
}

// Snapshot returns the full reactive state in one read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	generating := c.generating
	genErr := c.genErr
	c.mu.Unlock()
	return Snapshot{
		Generating: generating,
		Err:        genErr,
		Progress:   c.progress.Snapshot(),
	}
}

// Subscribe registers an observer notified on every state change. The
// returned func removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.listeners) == 0 {
		c.mu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	snap := c.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
