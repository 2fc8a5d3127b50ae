// Package gateway is the forwarding boundary to the SafeCar backend. One
// normalized sample, one synchronous POST; retry policy belongs to the
// caller, never here.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"safecar-edge/internal/config"
	"safecar-edge/internal/model"
)

const (
	telemetryPath = "/api/v1/telemetry"
	healthPath    = "/actuator/health"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.BackendConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ingestCommand wraps the sample the way the backend's telemetry ingest
// endpoint expects it.
type ingestCommand struct {
	Sample model.NormalizedSample `json:"sample"`
}

// EncodeCommand encodes a sample as the backend's ingest command. The same
// bytes go to the wire and to the ledger, so replays are byte-identical.
func EncodeCommand(sample model.NormalizedSample) ([]byte, error) {
	return json.Marshal(ingestCommand{Sample: sample})
}

// Send forwards one sample. Unreachable covers transport-level failures;
// Rejected covers any non-201 backend response.
func (c *Client) Send(ctx context.Context, sample model.NormalizedSample) model.ForwardOutcome {
	payload, err := EncodeCommand(sample)
	if err != nil {
		return model.ForwardOutcome{Status: model.ForwardRejected, Reason: fmt.Sprintf("encode sample: %v", err)}
	}
	return c.SendRaw(ctx, payload)
}

// SendRaw forwards an already-encoded ingest command. Used by the
// reconciliation job to replay payloads stored in the ledger.
func (c *Client) SendRaw(ctx context.Context, payload []byte) model.ForwardOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+telemetryPath, bytes.NewReader(payload))
	if err != nil {
		return model.ForwardOutcome{Status: model.ForwardUnreachable, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("backend unreachable", "err", err)
		}
		return model.ForwardOutcome{Status: model.ForwardUnreachable, Reason: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusCreated {
		return model.ForwardOutcome{Status: model.ForwardDelivered}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	reason := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if c.logger != nil {
		c.logger.Warn("backend rejected sample", "status", resp.StatusCode)
	}
	return model.ForwardOutcome{Status: model.ForwardRejected, Reason: reason}
}

// CheckHealth probes the backend's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
