package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport submits a prepared payload and returns the raw response body.
// Две взаимозаменяемые реализации: живой HTTP-вызов и оффлайн-симуляция для
// туториала. Контроллер не различает их.
type Transport interface {
	Submit(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// LiveTransport performs the real network call against the generation service.
type LiveTransport struct {
	Endpoint string
	Client   *http.Client
	// Headers are attached to every request (auth tokens and the like).
	Headers map[string]string
}

func NewLiveTransport(endpoint string, client *http.Client) *LiveTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &LiveTransport{Endpoint: endpoint, Client: client}
}

func (t *LiveTransport) Submit(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit generation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Detail: extractDetail(body)}
	}

	return body, nil
}

// extractDetail pulls the server-provided detail string out of an error body.
func extractDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

// SimulatedTransport resolves after a fixed delay with mock data and performs
// zero network I/O. Used when tutorial mode is active.
type SimulatedTransport struct {
	Duration time.Duration
	MockData json.RawMessage
}

const defaultSimulatedDuration = 7 * time.Second

func NewSimulatedTransport(duration time.Duration, mockData json.RawMessage) *SimulatedTransport {
	if duration <= 0 {
		duration = defaultSimulatedDuration
	}
	return &SimulatedTransport{Duration: duration, MockData: mockData}
}

func (t *SimulatedTransport) Submit(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	timer := time.NewTimer(t.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	if len(t.MockData) > 0 {
		return t.MockData, nil
	}
	// пустой объект: transformOutput определяет дефолтную форму
	return json.RawMessage(`{}`), nil
}
