// Package engine houses the classification core: range validation, severity
// banding, telemetry type resolution, and the per-reading pipeline that ties
// them to the ledger and the forwarding gateway. The classification
// functions are pure and stateless; any number of request workers may call
// them without coordination.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"safecar-edge/internal/alerts"
	"safecar-edge/internal/gateway"
	"safecar-edge/internal/metrics"
	"safecar-edge/internal/model"
	"safecar-edge/internal/normalize"
)

// Forwarder sends an encoded ingest command to the backend. Satisfied by
// gateway.Client.
type Forwarder interface {
	SendRaw(ctx context.Context, payload []byte) model.ForwardOutcome
}

// Ledger is the slice of the storage interface the pipeline writes to.
type Ledger interface {
	SaveReading(ctx context.Context, rec model.LedgerRecord, sampleJSON []byte) (int64, error)
	MarkSynced(ctx context.Context, readingID int64) error
}

type Engine struct {
	logger    *slog.Logger
	ledger    Ledger
	forwarder Forwarder
	metrics   *metrics.Store
	alerts    *alerts.Store
}

func NewEngine(ledger Ledger, forwarder Forwarder, metricsStore *metrics.Store, alertsStore *alerts.Store, logger *slog.Logger) *Engine {
	return &Engine{
		logger:    logger,
		ledger:    ledger,
		forwarder: forwarder,
		metrics:   metricsStore,
		alerts:    alertsStore,
	}
}

// Receipt is what the caller gets back for an accepted reading.
type Receipt struct {
	ReadingID     int64               `json:"id"`
	DeviceID      string              `json:"device_id"`
	VehicleID     int64               `json:"vehicle_id"`
	DriverID      int64               `json:"driver_id"`
	Timestamp     time.Time           `json:"timestamp"`
	Severity      model.Severity      `json:"severity"`
	TelemetryType model.TelemetryType `json:"telemetry_type"`
	BackendSynced bool                `json:"backend_synced"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ProcessReading runs one reading through validate, classify, normalize,
// ledger write and forward. Validation failures are recorded in the ledger
// with outcome rejected and returned to the caller; a failed forward leaves
// the reading accepted but unsynced, to be replayed later. The forward is a
// single synchronous attempt, never retried here.
func (e *Engine) ProcessReading(ctx context.Context, dev model.DeviceIdentity, raw model.RawReading) (Receipt, error) {
	now := time.Now().UTC()
	if raw.Timestamp.IsZero() {
		raw.Timestamp = now
	}
	e.count(dev.DeviceID, func(c *metrics.Counters) { c.Received++ })

	validated, err := Validate(raw)
	if err != nil {
		e.recordRejected(ctx, dev, raw, now)
		e.count(dev.DeviceID, func(c *metrics.Counters) { c.Rejected++ })
		return Receipt{}, err
	}

	severity := ClassifySeverity(validated)
	telemetryType, err := ResolveType(validated)
	if err != nil {
		return Receipt{}, err
	}

	sample := normalize.BuildSample(validated, severity, telemetryType, dev)
	payload, err := gateway.EncodeCommand(sample)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode sample: %w", err)
	}

	rec := model.LedgerRecord{
		Device:        dev,
		Reading:       validated.RawReading,
		Severity:      severity,
		TelemetryType: telemetryType,
		Outcome:       model.OutcomeAccepted,
		CreatedAt:     now,
	}
	readingID, err := e.ledger.SaveReading(ctx, rec, payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger write: %w", err)
	}

	outcome := e.forwarder.SendRaw(ctx, payload)
	if outcome.Delivered() {
		if err := e.ledger.MarkSynced(ctx, readingID); err != nil && e.logger != nil {
			e.logger.Warn("mark synced failed", "reading_id", readingID, "err", err)
		}
		e.count(dev.DeviceID, func(c *metrics.Counters) { c.Accepted++; c.Forwarded++ })
	} else {
		if e.logger != nil {
			e.logger.Warn("sample not delivered",
				"reading_id", readingID,
				"status", outcome.Status,
				"reason", outcome.Reason,
			)
		}
		e.count(dev.DeviceID, func(c *metrics.Counters) { c.Accepted++; c.SyncPending++ })
	}

	if e.alerts != nil {
		e.alerts.Add(dev.DeviceID, sample, raw.Timestamp)
	}
	if severity != model.SeverityInfo && e.logger != nil {
		e.logger.Warn("anomalous reading",
			"device_id", dev.DeviceID,
			"severity", severity,
			"type", telemetryType,
		)
	}

	return Receipt{
		ReadingID:     readingID,
		DeviceID:      dev.DeviceID,
		VehicleID:     dev.VehicleID,
		DriverID:      dev.DriverID,
		Timestamp:     raw.Timestamp,
		Severity:      severity,
		TelemetryType: telemetryType,
		BackendSynced: outcome.Delivered(),
		CreatedAt:     now,
	}, nil
}

// recordRejected writes the audit row for a reading that failed validation.
// Best effort: the rejection is reported to the caller regardless.
func (e *Engine) recordRejected(ctx context.Context, dev model.DeviceIdentity, raw model.RawReading, now time.Time) {
	if e.ledger == nil {
		return
	}
	rec := model.LedgerRecord{
		Device:    dev,
		Reading:   raw,
		Outcome:   model.OutcomeRejected,
		CreatedAt: now,
	}
	if _, err := e.ledger.SaveReading(ctx, rec, nil); err != nil && e.logger != nil {
		e.logger.Warn("ledger write for rejected reading failed", "device_id", dev.DeviceID, "err", err)
	}
}

func (e *Engine) count(deviceID string, update func(*metrics.Counters)) {
	if e.metrics != nil {
		e.metrics.Record(deviceID, update)
	}
}
