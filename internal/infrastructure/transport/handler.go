package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardforge/app/usecase"
	"cardforge/internal/engine"
	"cardforge/internal/infrastructure/metrics"
)

type CardforgeHandler struct {
	sessionService usecase.SessionUsecase
	projectService usecase.ProjectUsecase
	logger         *slog.Logger
	upgrader       websocket.Upgrader

	// метрики
	reqDuration *prometheus.HistogramVec
	reqCount    *prometheus.CounterVec
	errCount    *prometheus.CounterVec
}

func NewCardforgeHandler(
	sessionService usecase.SessionUsecase,
	projectService usecase.ProjectUsecase,
	logger *slog.Logger,
) *CardforgeHandler {

	reqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reqCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	)

	errCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	)

	prometheus.MustRegister(reqDuration, reqCount, errCount)

	return &CardforgeHandler{
		sessionService: sessionService,
		projectService: projectService,
		logger:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		reqDuration: reqDuration,
		reqCount:    reqCount,
		errCount:    errCount,
	}
}

// Middleware для метрик
func (h *CardforgeHandler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		method := r.Method

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(rw.status)

		h.reqCount.WithLabelValues(method, path).Inc()
		h.reqDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if rw.status >= 400 {
			h.errCount.WithLabelValues(method, path, statusStr).Inc()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *CardforgeHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// generation sessions
	api.HandleFunc("/sessions/{id}/{kind}/generate", h.withMetrics(h.handleGenerate)).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/{kind}/cancel", h.withMetrics(h.handleCancel)).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/{kind}/clear-error", h.withMetrics(h.handleClearError)).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/{kind}/progress", h.withMetrics(h.handleProgress)).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/{kind}/progress/ws", h.handleProgressWS).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.withMetrics(h.handleCloseSession)).Methods(http.MethodDelete)

	// projects and cards
	api.HandleFunc("/projects", h.withMetrics(h.handleCreateProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects", h.withMetrics(h.handleListProjects)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", h.withMetrics(h.handleGetProject)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", h.withMetrics(h.handleDeleteProject)).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/cards", h.withMetrics(h.handleListCards)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/cards", h.withMetrics(h.handleAddCard)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/export", h.withMetrics(h.handleExportProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/export", h.withMetrics(h.handleDeleteExport)).Methods(http.MethodDelete)
	api.HandleFunc("/exports", h.withMetrics(h.handleListExports)).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id}", h.withMetrics(h.handleDeleteCard)).Methods(http.MethodDelete)

	api.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)

	// Prometheus
	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// POST /api/v1/sessions/{id}/{kind}/generate
func (h *CardforgeHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, kind := vars["id"], vars["kind"]
	if sessionID == "" || kind == "" {
		writeError(w, http.StatusBadRequest, errors.New("session id and kind required"))
		return
	}

	var input map[string]any
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}

	out, err := h.sessionService.Generate(r.Context(), sessionID, kind, input)
	if err != nil {
		h.writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CardforgeHandler) writeGenerateError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrSuperseded) {
		// не ошибка: запрос вытеснен более новым
		writeJSON(w, http.StatusConflict, map[string]bool{"superseded": true})
		return
	}

	var fe engine.FieldErrors
	if errors.As(err, &fe) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"fields": fe})
		return
	}

	var gerr *engine.GenerationError
	if errors.As(err, &gerr) {
		writeJSON(w, statusForCode(gerr.Code), gerr)
		return
	}

	writeError(w, http.StatusBadRequest, err)
}

func statusForCode(code engine.ErrorCode) int {
	switch code {
	case engine.CodeTimeout, engine.CodeGatewayTimeout:
		return http.StatusGatewayTimeout
	case engine.CodeAuth:
		return http.StatusUnauthorized
	case engine.CodeValidation:
		return http.StatusBadRequest
	case engine.CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// POST /api/v1/sessions/{id}/{kind}/cancel
func (h *CardforgeHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.sessionService.Cancel(vars["id"], vars["kind"]); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/sessions/{id}/{kind}/clear-error
func (h *CardforgeHandler) handleClearError(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.sessionService.ClearError(vars["id"], vars["kind"]); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/sessions/{id}/{kind}/progress
func (h *CardforgeHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	snap, err := h.sessionService.Snapshot(vars["id"], vars["kind"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /api/v1/sessions/{id}/{kind}/progress/ws
//
// Стрим снапшотов контроллера: подписка снимается при закрытии соединения.
func (h *CardforgeHandler) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, kind := vars["id"], vars["kind"]

	snap, err := h.sessionService.Snapshot(sessionID, kind)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	metrics.IncWSConnections()
	defer func() {
		metrics.DecWSConnections()
		_ = conn.Close()
	}()

	snapshots := make(chan engine.Snapshot, 16)
	unsubscribe, err := h.sessionService.Subscribe(sessionID, kind, func(s engine.Snapshot) {
		select {
		case snapshots <- s:
		default: // клиент не успевает — пропускаем кадр
		}
	})
	if err != nil {
		return
	}
	defer unsubscribe()

	if err := conn.WriteJSON(snap); err != nil {
		return
	}

	// reader: отслеживаем закрытие со стороны клиента
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case s := <-snapshots:
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		}
	}
}

// DELETE /api/v1/sessions/{id}
func (h *CardforgeHandler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	h.sessionService.CloseSession(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

type createProjectReq struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// POST /api/v1/projects
func (h *CardforgeHandler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	project, err := h.projectService.CreateProject(r.Context(), req.Name, req.OwnerID)
	if err != nil {
		h.logger.Error("create project failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GET /api/v1/projects
func (h *CardforgeHandler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectService.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("list projects failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GET /api/v1/projects/{id}
func (h *CardforgeHandler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}
	project, err := h.projectService.GetProject(r.Context(), id)
	if err != nil {
		h.logger.Error("get project failed", "id", id, "err", err)
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// DELETE /api/v1/projects/{id}
func (h *CardforgeHandler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}
	if err := h.projectService.DeleteProject(r.Context(), id); err != nil {
		h.logger.Error("delete project failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/projects/{id}/cards
func (h *CardforgeHandler) handleListCards(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cards, err := h.projectService.ListCards(r.Context(), id)
	if err != nil {
		h.logger.Error("list cards failed", "project_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

type addCardReq struct {
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Prompt  string          `json:"prompt"`
	Payload json.RawMessage `json:"payload"`
}

// POST /api/v1/projects/{id}/cards
func (h *CardforgeHandler) handleAddCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req addCardReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}
	if req.Kind == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("kind and name are required"))
		return
	}

	card, err := h.projectService.AddCard(r.Context(), id, req.Kind, req.Name, req.Prompt, req.Payload)
	if err != nil {
		h.logger.Error("add card failed", "project_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// POST /api/v1/projects/{id}/export
func (h *CardforgeHandler) handleExportProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.projectService.ExportProject(r.Context(), id); err != nil {
		h.logger.Error("export project failed", "project_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"project_id": id, "status": "exported"})
}

// DELETE /api/v1/projects/{id}/export
func (h *CardforgeHandler) handleDeleteExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.projectService.DeleteExport(r.Context(), id); err != nil {
		h.logger.Error("delete export failed", "project_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/exports
func (h *CardforgeHandler) handleListExports(w http.ResponseWriter, r *http.Request) {
	exports, err := h.projectService.ListExports(r.Context())
	if err != nil {
		h.logger.Error("list exports failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if exports == nil {
		exports = []string{}
	}
	writeJSON(w, http.StatusOK, exports)
}

// DELETE /api/v1/cards/{id}
func (h *CardforgeHandler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}
	if err := h.projectService.DeleteCard(r.Context(), id); err != nil {
		h.logger.Error("delete card failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/health
func (h *CardforgeHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, status)
}
