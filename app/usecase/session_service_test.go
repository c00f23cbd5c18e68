package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardforge/internal/engine"
	"cardforge/internal/kinds"
)

const testKinds = `
kind "statblock" {
  endpoint           = "/generate/statblock"
  estimated_duration = "100ms"

  milestone {
    at      = 0
    message = "Working..."
  }

  tutorial {
    simulated_duration = "10ms"
    mock_data          = "{\"statblock\":{\"name\":\"Practice Dummy\"}}"
  }
}
`

func testRegistry(t *testing.T) *kinds.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kinds.hcl")
	if err := os.WriteFile(path, []byte(testKinds), 0644); err != nil {
		t.Fatal(err)
	}
	reg, err := kinds.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) *SessionService {
	t.Helper()
	svc := NewSessionService(testRegistry(t), "http://unreachable.invalid", "", nil, true, testLogger())
	t.Cleanup(func() {
		svc.mu.Lock()
		for id, sess := range svc.sessions {
			sess.close()
			delete(svc.sessions, id)
		}
		svc.mu.Unlock()
	})
	return svc
}

func TestSessionGenerateTutorial(t *testing.T) {
	svc := newTestService(t)

	out, err := svc.Generate(context.Background(), "sess-1", "statblock", map[string]any{"description": "dragon"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("output type %T", out)
	}
	statblock, ok := m["statblock"].(map[string]any)
	if !ok || statblock["name"] != "Practice Dummy" {
		t.Errorf("output = %v, want tutorial mock data", m)
	}
}

func TestSessionGenerateSendsAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"statblock":{"name":"X"}}`))
	}))
	defer srv.Close()

	svc := NewSessionService(testRegistry(t), srv.URL, "sekret-key", srv.Client(), false, testLogger())

	if _, err := svc.Generate(context.Background(), "sess-1", "statblock", map[string]any{"description": "dragon"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotAuth != "Bearer sekret-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestSessionGenerateUnknownKind(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Generate(context.Background(), "sess-1", "landscape", map[string]any{"description": "x"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSessionGenerateInvalidInput(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Generate(context.Background(), "sess-1", "statblock", map[string]any{"description": "  "})

	var fe engine.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldErrors", err)
	}
	if _, ok := fe["description"]; !ok {
		t.Errorf("field errors = %v, want description entry", fe)
	}
}

func TestSessionControllerReuse(t *testing.T) {
	svc := newTestService(t)
	sess := svc.session("sess-1")

	a, err := svc.controller("sess-1", "statblock")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.controller("sess-1", "statblock")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same kind must reuse one controller")
	}
	if len(sess.controllers) != 1 {
		t.Errorf("controllers = %d, want 1", len(sess.controllers))
	}
}

func TestSessionSnapshotAndClearError(t *testing.T) {
	svc := newTestService(t)

	snap, err := svc.Snapshot("sess-1", "statblock")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Generating || snap.Err != nil {
		t.Errorf("fresh snapshot = %+v", snap)
	}

	if err := svc.ClearError("sess-1", "statblock"); err != nil {
		t.Errorf("ClearError: %v", err)
	}
}

func TestCloseSessionDisposesControllers(t *testing.T) {
	svc := newTestService(t)

	ctrl, err := svc.controller("sess-1", "statblock")
	if err != nil {
		t.Fatal(err)
	}

	svc.CloseSession("sess-1")

	// закрытый контроллер отвергает новые запросы
	if _, err := ctrl.Generate(context.Background(), map[string]any{"description": "x"}); !errors.Is(err, engine.ErrSuperseded) {
		t.Errorf("Generate after close = %v, want ErrSuperseded", err)
	}

	svc.mu.Lock()
	_, exists := svc.sessions["sess-1"]
	svc.mu.Unlock()
	if exists {
		t.Error("session still tracked after CloseSession")
	}
}

func TestReapOnceDisposesIdleSessions(t *testing.T) {
	svc := newTestService(t)
	svc.idleTTL = 10 * time.Millisecond

	sess := svc.session("sess-idle")
	sess.mu.Lock()
	sess.lastUsed = time.Now().Add(-time.Minute)
	sess.mu.Unlock()

	svc.reapOnce()

	svc.mu.Lock()
	_, exists := svc.sessions["sess-idle"]
	svc.mu.Unlock()
	if exists {
		t.Error("idle session survived the reaper")
	}
}

func TestSettleResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "success"},
		{"superseded", engine.ErrSuperseded, "superseded"},
		{"invalid", engine.FieldErrors{"description": "required"}, "invalid"},
		{"timeout", &engine.GenerationError{Code: engine.CodeTimeout}, "timeout"},
		{"other", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := settleResult(tt.err); got != tt.want {
				t.Errorf("settleResult = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateInput(t *testing.T) {
	if fe := validateInput(map[string]any{"description": "dragon"}); fe != nil {
		t.Errorf("valid input rejected: %v", fe)
	}
	if fe := validateInput(map[string]any{}); fe == nil {
		t.Error("missing description accepted")
	}
	if fe := validateInput("not a map"); fe == nil {
		t.Error("non-object input accepted")
	}
}
