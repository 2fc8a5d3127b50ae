package syncer

import (
	"context"
	"io"
	"testing"

	"safecar-edge/internal/config"
	"safecar-edge/internal/logging"
	"safecar-edge/internal/model"
	"safecar-edge/internal/storage"
)

type fakeLedger struct {
	pending []storage.UnsyncedSample
	synced  []int64
}

func (l *fakeLedger) ListUnsynced(_ context.Context, limit int) ([]storage.UnsyncedSample, error) {
	if limit > len(l.pending) {
		limit = len(l.pending)
	}
	return l.pending[:limit], nil
}

func (l *fakeLedger) MarkSynced(_ context.Context, readingID int64) error {
	l.synced = append(l.synced, readingID)
	return nil
}

type scriptedForwarder struct {
	outcomes []model.ForwardOutcome
	calls    int
}

func (f *scriptedForwarder) SendRaw(_ context.Context, _ []byte) model.ForwardOutcome {
	out := f.outcomes[f.calls%len(f.outcomes)]
	f.calls++
	return out
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{Enabled: true, BatchLimit: 100, MaxAttempts: 3}
}

func newTestSyncer(ledger *fakeLedger, fwd *scriptedForwarder) *Syncer {
	return New(testSyncConfig(), ledger, fwd, logging.NewLoggerTo(io.Discard, "error"))
}

func TestSyncOnceMarksDelivered(t *testing.T) {
	ledger := &fakeLedger{pending: []storage.UnsyncedSample{
		{ReadingID: 1, SampleJSON: []byte(`{"sample":{}}`)},
		{ReadingID: 2, SampleJSON: []byte(`{"sample":{}}`)},
	}}
	fwd := &scriptedForwarder{outcomes: []model.ForwardOutcome{{Status: model.ForwardDelivered}}}

	if err := newTestSyncer(ledger, fwd).SyncOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledger.synced) != 2 || ledger.synced[0] != 1 || ledger.synced[1] != 2 {
		t.Fatalf("delivered readings not marked synced: %v", ledger.synced)
	}
}

func TestSyncOnceRetriesUnreachable(t *testing.T) {
	ledger := &fakeLedger{pending: []storage.UnsyncedSample{{ReadingID: 1, SampleJSON: []byte(`{}`)}}}
	fwd := &scriptedForwarder{outcomes: []model.ForwardOutcome{
		{Status: model.ForwardUnreachable, Reason: "connection refused"},
		{Status: model.ForwardUnreachable, Reason: "connection refused"},
		{Status: model.ForwardDelivered},
	}}

	if err := newTestSyncer(ledger, fwd).SyncOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fwd.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fwd.calls)
	}
	if len(ledger.synced) != 1 {
		t.Fatalf("reading not marked synced after retry succeeded")
	}
}

func TestSyncOnceDoesNotRetryRejected(t *testing.T) {
	ledger := &fakeLedger{pending: []storage.UnsyncedSample{{ReadingID: 1, SampleJSON: []byte(`{}`)}}}
	fwd := &scriptedForwarder{outcomes: []model.ForwardOutcome{
		{Status: model.ForwardRejected, Reason: "HTTP 400"},
	}}

	if err := newTestSyncer(ledger, fwd).SyncOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fwd.calls != 1 {
		t.Fatalf("rejected payload must not be retried, got %d attempts", fwd.calls)
	}
	if len(ledger.synced) != 0 {
		t.Fatalf("rejected payload must stay unsynced")
	}
}

func TestSyncOnceGivesUpAfterMaxAttempts(t *testing.T) {
	ledger := &fakeLedger{pending: []storage.UnsyncedSample{{ReadingID: 1, SampleJSON: []byte(`{}`)}}}
	fwd := &scriptedForwarder{outcomes: []model.ForwardOutcome{
		{Status: model.ForwardUnreachable, Reason: "timeout"},
	}}

	if err := newTestSyncer(ledger, fwd).SyncOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fwd.calls != 3 {
		t.Fatalf("expected max attempts 3, got %d", fwd.calls)
	}
	if len(ledger.synced) != 0 {
		t.Fatalf("unreachable payload must stay unsynced")
	}
}

func TestSyncOnceEmptyBacklog(t *testing.T) {
	ledger := &fakeLedger{}
	fwd := &scriptedForwarder{outcomes: []model.ForwardOutcome{{Status: model.ForwardDelivered}}}
	if err := newTestSyncer(ledger, fwd).SyncOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fwd.calls != 0 {
		t.Fatalf("nothing to sync, but forwarder was called")
	}
}
