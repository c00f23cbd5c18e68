package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"cardforge/internal/engine"
	"cardforge/internal/infrastructure/metrics"
	"cardforge/internal/kinds"
)

// Session holds the live generation state for one editing surface: one
// controller per generation kind, created lazily. Kinds are independent by
// default — generating artwork does not cancel an in-flight statblock.
type Session struct {
	ID string

	mu          sync.Mutex
	controllers map[string]*engine.Controller
	lastUsed    time.Time
	closed      bool
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	for _, ctrl := range s.controllers {
		ctrl.Close()
	}
	s.controllers = nil
	s.mu.Unlock()
}

// SessionUsecase — операции генерации в рамках сессии.
type SessionUsecase interface {
	Generate(ctx context.Context, sessionID, kind string, input map[string]any) (any, error)
	Snapshot(sessionID, kind string) (engine.Snapshot, error)
	Subscribe(sessionID, kind string, fn func(engine.Snapshot)) (func(), error)
	Cancel(sessionID, kind string) error
	ClearError(sessionID, kind string) error
	CloseSession(sessionID string)
}

var _ SessionUsecase = (*SessionService)(nil)

// SessionService owns all live sessions and disposes the idle ones on a
// background ticker.
type SessionService struct {
	registry *kinds.Registry
	baseURL  string
	apiKey   string
	client   *http.Client
	tutorial bool
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	reapInterval time.Duration
	idleTTL      time.Duration

	// control
	stop    chan struct{}
	stopped chan struct{}
}

func NewSessionService(
	registry *kinds.Registry,
	baseURL string,
	apiKey string,
	client *http.Client,
	tutorial bool,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		registry:     registry,
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       client,
		tutorial:     tutorial,
		logger:       logger,
		sessions:     make(map[string]*Session),
		reapInterval: time.Minute,
		idleTTL:      30 * time.Minute,
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// Start запускает фоновый reaper простаивающих сессий.
func (s *SessionService) Start(ctx context.Context) {
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.reapInterval)
		defer ticker.Stop()

		s.logger.Info("SessionService reaper started", "interval", s.reapInterval)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("SessionService context canceled")
				return
			case <-s.stop:
				s.logger.Info("SessionService stopped by Stop()")
				return
			case <-ticker.C:
				s.reapOnce()
			}
		}
	}()
}

func (s *SessionService) Stop() {
	close(s.stop)
	<-s.stopped

	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
	metrics.SetActiveSessions(0)
	s.mu.Unlock()

	s.logger.Info("SessionService fully stopped")
}

func (s *SessionService) reapOnce() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			sess.close()
			delete(s.sessions, id)
			metrics.IncSessionsReaped()
			s.logger.Info("reaped idle session", "session_id", id)
		}
	}
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()
}

// session returns the live session, creating it on first use.
func (s *SessionService) session(sessionID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{
			ID:          sessionID,
			controllers: make(map[string]*engine.Controller),
			lastUsed:    time.Now(),
		}
		s.sessions[sessionID] = sess
		metrics.SetActiveSessions(len(s.sessions))
	}
	return sess
}

func (s *SessionService) controller(sessionID, kind string) (*engine.Controller, error) {
	k, ok := s.registry.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown generation kind %q", kind)
	}

	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, fmt.Errorf("session %s is closed", sessionID)
	}

	ctrl, ok := sess.controllers[kind]
	if !ok {
		cfg := k.ControllerConfig(s.baseURL, s.client, s.tutorial)
		if s.apiKey != "" {
			cfg.Headers = map[string]string{"Authorization": "Bearer " + s.apiKey}
		}
		cfg.Validate = validateInput
		cfg.TransformInput = transformInput
		cfg.TransformOutput = transformOutput
		ctrl = engine.NewController(cfg)
		sess.controllers[kind] = ctrl
	}
	sess.lastUsed = time.Now()
	return ctrl, nil
}

// Generate runs one generation attempt for the given session and kind.
func (s *SessionService) Generate(ctx context.Context, sessionID, kind string, input map[string]any) (any, error) {
	ctrl, err := s.controller(sessionID, kind)
	if err != nil {
		return nil, err
	}

	metrics.IncGenerationStarted(kind)
	start := time.Now()

	out, err := ctrl.Generate(ctx, input)
	metrics.ObserveGenerationDuration(kind, time.Since(start))
	metrics.IncGenerationSettled(kind, settleResult(err))

	if err != nil {
		if errors.Is(err, engine.ErrSuperseded) {
			s.logger.Debug("generation superseded", "session_id", sessionID, "kind", kind)
		} else {
			s.logger.Error("generation failed", "session_id", sessionID, "kind", kind, "err", err)
		}
		return nil, err
	}

	s.logger.Info("generation done", "session_id", sessionID, "kind", kind, "duration", time.Since(start))
	return out, nil
}

func settleResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, engine.ErrSuperseded):
		return "superseded"
	default:
		var fe engine.FieldErrors
		if errors.As(err, &fe) {
			return "invalid"
		}
		var gerr *engine.GenerationError
		if errors.As(err, &gerr) {
			return strings.ToLower(string(gerr.Code))
		}
		return "error"
	}
}

func (s *SessionService) Snapshot(sessionID, kind string) (engine.Snapshot, error) {
	ctrl, err := s.controller(sessionID, kind)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

func (s *SessionService) Subscribe(sessionID, kind string, fn func(engine.Snapshot)) (func(), error) {
	ctrl, err := s.controller(sessionID, kind)
	if err != nil {
		return nil, err
	}
	return ctrl.Subscribe(fn), nil
}

func (s *SessionService) Cancel(sessionID, kind string) error {
	ctrl, err := s.controller(sessionID, kind)
	if err != nil {
		return err
	}
	ctrl.Cancel()
	return nil
}

func (s *SessionService) ClearError(sessionID, kind string) error {
	ctrl, err := s.controller(sessionID, kind)
	if err != nil {
		return err
	}
	ctrl.ClearError()
	return nil
}

// CloseSession disposes a session and all its controllers.
func (s *SessionService) CloseSession(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()

	if ok {
		sess.close()
	}
}

// validateInput — локальная валидация формы; ошибки по полям не доходят до
// транспорта.
func validateInput(input any) engine.FieldErrors {
	fields, ok := input.(map[string]any)
	if !ok {
		return engine.FieldErrors{"input": "expected an object"}
	}
	desc, _ := fields["description"].(string)
	if strings.TrimSpace(desc) == "" {
		return engine.FieldErrors{"description": "description is required"}
	}
	return nil
}

func transformInput(input any) (json.RawMessage, error) {
	return json.Marshal(input)
}

func transformOutput(raw json.RawMessage) (any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode generation payload: %w", err)
	}
	return out, nil
}
