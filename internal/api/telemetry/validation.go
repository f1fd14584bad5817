package telemetry

import (
	"encoding/json"
	"strconv"

	"github.com/vibranic/central/internal/models"
)

// validateEventRequest returns an error message for the first invalid
// field, or "" if the request is valid.
func validateEventRequest(req *eventRequest) string {
	if req.Type == "" {
		return "type is required"
	}
	if !models.EventType(req.Type).Valid() {
		return "Invalid event type"
	}
	if req.Severity == "" {
		return "severity is required"
	}
	if !models.Severity(req.Severity).Valid() {
		return "Invalid severity"
	}
	if req.Message == "" {
		return "message is required"
	}
	return ""
}

type metricItem struct {
	key   string
	value float64
	unit  string
}

type metricRequest struct {
	MetricKey string `json:"metricKey"`
	Value     any    `json:"value"`
	Unit      string `json:"unit"`
}

// parseMetricPayload parses a single metric object or an array of them.
// The batch is all-or-nothing: the first invalid item rejects the whole
// request.
func parseMetricPayload(raw json.RawMessage) ([]metricItem, string) {
	var reqs []metricRequest

	trimmed := firstNonSpace(raw)
	if trimmed == '[' {
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, "Invalid JSON payload"
		}
	} else {
		var single metricRequest
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, "Invalid JSON payload"
		}
		reqs = []metricRequest{single}
	}

	if len(reqs) == 0 {
		return nil, "No metrics provided"
	}

	items := make([]metricItem, 0, len(reqs))
	for _, req := range reqs {
		if req.MetricKey == "" {
			return nil, "metricKey is required"
		}
		value, ok := numericValue(req.Value)
		if !ok {
			return nil, "value must be numeric"
		}
		items = append(items, metricItem{key: req.MetricKey, value: value, unit: req.Unit})
	}

	return items, ""
}

// numericValue accepts a JSON number or a string holding one.
func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func firstNonSpace(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}
