// Package syncer replays accepted readings that never reached the backend.
//
// Forwarding during ingest is a single synchronous attempt. When the backend
// is unreachable the reading stays in the ledger with backend_synced = false
// and the syncer picks it up on the next cycle. Rejected forwards are
// permanent and are never retried.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"safecar-edge/internal/config"
	"safecar-edge/internal/model"
	"safecar-edge/internal/storage"
)

// Forwarder sends an already encoded sample payload to the backend.
type Forwarder interface {
	SendRaw(ctx context.Context, payload []byte) model.ForwardOutcome
}

// Ledger is the slice of the storage interface the syncer needs.
type Ledger interface {
	ListUnsynced(ctx context.Context, limit int) ([]storage.UnsyncedSample, error)
	MarkSynced(ctx context.Context, readingID int64) error
}

type Syncer struct {
	cfg       config.SyncConfig
	store     Ledger
	forwarder Forwarder
	logger    *slog.Logger
}

func New(cfg config.SyncConfig, store Ledger, forwarder Forwarder, logger *slog.Logger) *Syncer {
	return &Syncer{
		cfg:       cfg,
		store:     store,
		forwarder: forwarder,
		logger:    logger.With("component", "syncer"),
	}
}

// Run reconciles unsynced readings every interval until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("syncer started", "interval", s.cfg.Interval, "batch_limit", s.cfg.BatchLimit)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer stopped")
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				s.logger.Error("sync cycle failed", "error", err)
			}
		}
	}
}

// SyncOnce replays one batch of unsynced readings. Readings the backend
// rejects are left unsynced for operator inspection; only transport failures
// are retried within the cycle.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	pending, err := s.store.ListUnsynced(ctx, s.cfg.BatchLimit)
	if err != nil {
		return fmt.Errorf("listing unsynced readings: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	s.logger.Info("replaying unsynced readings", "count", len(pending))

	var synced int
	for _, sample := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome := s.replay(ctx, sample)
		switch outcome.Status {
		case model.ForwardDelivered:
			if err := s.store.MarkSynced(ctx, sample.ReadingID); err != nil {
				return fmt.Errorf("marking reading %d synced: %w", sample.ReadingID, err)
			}
			synced++
		case model.ForwardRejected:
			s.logger.Warn("backend rejected replayed reading",
				"reading_id", sample.ReadingID, "reason", outcome.Reason)
		default:
			s.logger.Warn("backend unreachable, reading stays pending",
				"reading_id", sample.ReadingID, "reason", outcome.Reason)
		}
	}

	s.logger.Info("sync cycle finished", "synced", synced, "pending", len(pending)-synced)
	return nil
}

func (s *Syncer) replay(ctx context.Context, sample storage.UnsyncedSample) model.ForwardOutcome {
	var outcome model.ForwardOutcome
	err := retry.Do(
		func() error {
			outcome = s.forwarder.SendRaw(ctx, sample.SampleJSON)
			if outcome.Status == model.ForwardUnreachable {
				return fmt.Errorf("backend unreachable: %s", outcome.Reason)
			}
			return nil
		},
		retry.Attempts(s.cfg.MaxAttempts),
		retry.LastErrorOnly(true),
	)
	if err != nil && outcome.Status == "" {
		outcome = model.ForwardOutcome{Status: model.ForwardUnreachable, Reason: err.Error()}
	}
	return outcome
}
