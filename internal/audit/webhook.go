// Package audit delivers execution and prediction records to their sinks.
// Delivery never blocks a pricing decision: sinks report errors, callers
// log them and move on.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"repricer/pkg/api"
	"repricer/pkg/platform"
)

// WebhookSink posts records as JSON to external endpoints, one URL per
// record kind. An empty URL disables that kind.
type WebhookSink struct {
	client        *platform.HTTPClient
	executionURL  string
	predictionURL string
	log           zerolog.Logger
}

// NewWebhookSink builds a sink with the platform retrying client.
func NewWebhookSink(executionURL, predictionURL string, log zerolog.Logger) *WebhookSink {
	return &WebhookSink{
		client:        platform.NewHTTPClient(3, 10*time.Second, log),
		executionURL:  executionURL,
		predictionURL: predictionURL,
		log:           log,
	}
}

// RecordExecution delivers an execution record.
func (s *WebhookSink) RecordExecution(_ context.Context, rec api.ExecutionRecord) error {
	return s.post(s.executionURL, rec)
}

// RecordPrediction delivers a prediction record.
func (s *WebhookSink) RecordPrediction(_ context.Context, rec api.PredictionRecord) error {
	return s.post(s.predictionURL, rec)
}

func (s *WebhookSink) post(url string, record any) error {
	if url == "" {
		return nil
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	resp, err := s.client.PostJSON(url, body)
	if err != nil {
		return fmt.Errorf("delivering audit record: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("audit webhook %s returned %d", url, resp.StatusCode)
	}
	return nil
}
