package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// sendEvent delivers one event. The second return reports whether the
// failure is transient: transport errors, 5xx and 429 are retried,
// other 4xx responses mean the event will never be accepted.
func (e *Exporter) sendEvent(ctx context.Context, event *Event) (bool, error) {
	status, err := e.post(ctx, "/api/v1/events", event)
	if err != nil {
		return true, err
	}
	return classifyStatus(status)
}

// sendMetrics delivers a batch of metrics in one request.
func (e *Exporter) sendMetrics(ctx context.Context, metrics []*Metric) error {
	status, err := e.post(ctx, "/api/v1/metrics", metrics)
	if err != nil {
		return err
	}
	if _, serr := classifyStatus(status); serr != nil {
		return serr
	}
	return nil
}

func (e *Exporter) post(ctx context.Context, path string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

// classifyStatus maps a response status to (retryable, error).
func classifyStatus(status int) (bool, error) {
	switch {
	case status >= 200 && status < 300:
		return false, nil
	case status == http.StatusTooManyRequests || status >= 500:
		return true, fmt.Errorf("hub returned status %d", status)
	default:
		return false, fmt.Errorf("hub rejected request with status %d", status)
	}
}
