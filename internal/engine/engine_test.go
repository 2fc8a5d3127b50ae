package engine

import (
	"context"
	"testing"
	"time"

	"safecar-edge/internal/alerts"
	"safecar-edge/internal/metrics"
	"safecar-edge/internal/model"
)

type fakeLedger struct {
	records  []model.LedgerRecord
	payloads [][]byte
	synced   []int64
	nextID   int64
}

func (l *fakeLedger) SaveReading(_ context.Context, rec model.LedgerRecord, sampleJSON []byte) (int64, error) {
	l.nextID++
	l.records = append(l.records, rec)
	l.payloads = append(l.payloads, sampleJSON)
	return l.nextID, nil
}

func (l *fakeLedger) MarkSynced(_ context.Context, readingID int64) error {
	l.synced = append(l.synced, readingID)
	return nil
}

type fakeForwarder struct {
	outcome model.ForwardOutcome
	sent    [][]byte
}

func (f *fakeForwarder) SendRaw(_ context.Context, payload []byte) model.ForwardOutcome {
	f.sent = append(f.sent, payload)
	return f.outcome
}

func testDevice() model.DeviceIdentity {
	return model.DeviceIdentity{DeviceID: "device-001", VehicleID: 7, DriverID: 3}
}

func newEngineForTest(ledger *fakeLedger, fwd *fakeForwarder) *Engine {
	return NewEngine(ledger, fwd, metrics.NewStore(10), alerts.NewStore(10), nil)
}

func TestProcessReadingDelivered(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &fakeForwarder{outcome: model.ForwardOutcome{Status: model.ForwardDelivered}}
	eng := newEngineForTest(ledger, fwd)

	receipt, err := eng.ProcessReading(context.Background(), testDevice(), model.RawReading{
		EngineTempC: f(95),
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Severity != model.SeverityWarning || receipt.TelemetryType != model.TypeEngineOverheat {
		t.Fatalf("wrong classification: %s %s", receipt.Severity, receipt.TelemetryType)
	}
	if !receipt.BackendSynced {
		t.Fatalf("delivered reading not marked synced in receipt")
	}
	if len(ledger.synced) != 1 || ledger.synced[0] != receipt.ReadingID {
		t.Fatalf("MarkSynced not called for reading %d", receipt.ReadingID)
	}
	if len(ledger.records) != 1 || ledger.records[0].Outcome != model.OutcomeAccepted {
		t.Fatalf("accepted reading not in ledger")
	}
	if len(fwd.sent) != 1 || string(fwd.sent[0]) != string(ledger.payloads[0]) {
		t.Fatalf("wire payload and ledger payload differ")
	}
}

func TestProcessReadingUnreachable(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &fakeForwarder{outcome: model.ForwardOutcome{Status: model.ForwardUnreachable, Reason: "connection refused"}}
	eng := newEngineForTest(ledger, fwd)

	receipt, err := eng.ProcessReading(context.Background(), testDevice(), model.RawReading{CabinTempC: f(22)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.BackendSynced {
		t.Fatalf("unreachable backend must leave the reading unsynced")
	}
	if len(ledger.synced) != 0 {
		t.Fatalf("MarkSynced called despite failed forward")
	}
	if len(ledger.records) != 1 || ledger.records[0].Outcome != model.OutcomeAccepted {
		t.Fatalf("reading should still be accepted locally")
	}
}

func TestProcessReadingBackendRejected(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &fakeForwarder{outcome: model.ForwardOutcome{Status: model.ForwardRejected, Reason: "HTTP 400"}}
	eng := newEngineForTest(ledger, fwd)

	receipt, err := eng.ProcessReading(context.Background(), testDevice(), model.RawReading{CurrentA: f(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.BackendSynced || len(ledger.synced) != 0 {
		t.Fatalf("rejected forward must not be marked synced")
	}
}

func TestProcessReadingValidationFailure(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &fakeForwarder{outcome: model.ForwardOutcome{Status: model.ForwardDelivered}}
	eng := newEngineForTest(ledger, fwd)

	_, err := eng.ProcessReading(context.Background(), testDevice(), model.RawReading{CabinTempC: f(200)})
	if err == nil || !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fwd.sent) != 0 {
		t.Fatalf("rejected reading must never be forwarded")
	}
	if len(ledger.records) != 1 || ledger.records[0].Outcome != model.OutcomeRejected {
		t.Fatalf("rejected reading missing from ledger audit trail")
	}
	if ledger.payloads[0] != nil {
		t.Fatalf("rejected reading must not carry a sample payload")
	}
}

func TestProcessReadingDefaultsTimestamp(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &fakeForwarder{outcome: model.ForwardOutcome{Status: model.ForwardDelivered}}
	eng := newEngineForTest(ledger, fwd)

	before := time.Now().UTC()
	receipt, err := eng.ProcessReading(context.Background(), testDevice(), model.RawReading{CabinTempC: f(22)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Timestamp.Before(before) || receipt.Timestamp.After(time.Now().UTC()) {
		t.Fatalf("zero timestamp not defaulted to receive time: %v", receipt.Timestamp)
	}
}

func TestProcessReadingCounters(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &fakeForwarder{outcome: model.ForwardOutcome{Status: model.ForwardUnreachable}}
	metricsStore := metrics.NewStore(10)
	eng := NewEngine(ledger, fwd, metricsStore, alerts.NewStore(10), nil)

	dev := testDevice()
	if _, err := eng.ProcessReading(context.Background(), dev, model.RawReading{CabinTempC: f(22)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := eng.ProcessReading(context.Background(), dev, model.RawReading{}); err == nil {
		t.Fatalf("expected validation error")
	}

	counters, _, ok := metricsStore.Get(dev.DeviceID)
	if !ok {
		t.Fatalf("no counters recorded")
	}
	if counters.Received != 2 || counters.Accepted != 1 || counters.Rejected != 1 || counters.SyncPending != 1 {
		t.Fatalf("wrong counters: %+v", counters)
	}
}

func TestProcessReadingRecordsAnomaly(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &fakeForwarder{outcome: model.ForwardOutcome{Status: model.ForwardDelivered}}
	alertsStore := alerts.NewStore(10)
	eng := NewEngine(ledger, fwd, metrics.NewStore(10), alertsStore, nil)

	dev := testDevice()
	if _, err := eng.ProcessReading(context.Background(), dev, model.RawReading{EngineTempC: f(120)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := eng.ProcessReading(context.Background(), dev, model.RawReading{CabinTempC: f(22)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anomalies := alertsStore.List(10)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].Severity != model.SeverityCritical {
		t.Fatalf("wrong anomaly severity: %s", anomalies[0].Severity)
	}
}
