package ingest

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/encoding/json"
	"github.com/segmentio/kafka-go"

	"safecar-edge/internal/config"
	"safecar-edge/internal/engine"
	"safecar-edge/internal/iam"
)

// kafkaEnvelope is a reading payload plus the credentials that REST clients
// carry in headers. Kafka has no authenticated transport identity here, so
// each message authenticates itself.
type kafkaEnvelope struct {
	DeviceID string             `json:"device_id"`
	APIKey   string             `json:"api_key"`
	Reading  stdjson.RawMessage `json:"reading"`
}

// StartKafka consumes reading envelopes from a Kafka topic and runs them
// through the same authenticate-and-process path as REST. Bad messages are
// logged and skipped; the consumer never stalls on one message.
func StartKafka(ctx context.Context, cfg config.KafkaConfig, eng *engine.Engine, auth *iam.Service, logger *slog.Logger) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", cfg.Brokers, "topic", cfg.Topic, "group_id", cfg.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				if !BackoffSleep(ctx, 0) {
					return
				}
				continue
			}
			processKafkaMessage(ctx, m.Value, eng, auth, logger)
		}
	}()
}

func processKafkaMessage(ctx context.Context, value []byte, eng *engine.Engine, auth *iam.Service, logger *slog.Logger) {
	var env kafkaEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		if logger != nil {
			logger.Warn("kafka envelope decode error", "err", err)
		}
		return
	}
	dev, err := auth.Authenticate(ctx, env.DeviceID, env.APIKey)
	if err != nil {
		if logger != nil {
			logger.Warn("kafka message rejected", "device_id", env.DeviceID, "err", err)
		}
		return
	}
	reading, err := ParseReading(env.Reading)
	if err != nil {
		if logger != nil {
			logger.Warn("kafka reading parse error", "device_id", env.DeviceID, "err", err)
		}
		return
	}
	if _, err := eng.ProcessReading(ctx, dev, reading); err != nil {
		if errors.Is(err, engine.ErrUnclassifiableReading) && logger != nil {
			logger.Error("unclassifiable reading", "device_id", env.DeviceID)
			return
		}
		if logger != nil {
			logger.Warn("kafka reading not accepted", "device_id", env.DeviceID, "err", err)
		}
	}
}
