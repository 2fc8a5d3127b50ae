// Package iam manages edge device credentials: registration, API key
// issuance and request authentication. The registry of record lives in the
// local ledger; lookups go through an in-memory TTL cache and, when
// configured, a shared Redis cache so a fleet of ingest workers can reuse
// verdicts.
package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"safecar-edge/internal/config"
	"safecar-edge/internal/model"
	"safecar-edge/internal/storage"
)

var ErrUnauthorized = errors.New("device not found or invalid API key")

const minAPIKeyLen = 8

type cacheEntry struct {
	device    model.Device
	expiresAt time.Time
}

type Service struct {
	store      storage.Store
	redis      *redis.Client
	ttl        time.Duration
	localCache sync.Map
	logger     *slog.Logger
}

func NewService(cfg config.AuthConfig, store storage.Store, logger *slog.Logger) *Service {
	s := &Service{
		store:  store,
		ttl:    cfg.CacheTTL,
		logger: logger,
	}
	if cfg.Redis.Enabled {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return s
}

func (s *Service) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

// Register provisions a device. An empty apiKey gets a generated one; the
// issued key is returned either way.
func (s *Service) Register(ctx context.Context, deviceID, apiKey string, vehicleID, driverID int64) (model.Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return model.Device{}, errors.New("device ID cannot be empty")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		apiKey = uuid.NewString()
	}
	if len(apiKey) < minAPIKeyLen {
		return model.Device{}, fmt.Errorf("API key must be at least %d characters long", minAPIKeyLen)
	}
	if vehicleID <= 0 {
		return model.Device{}, errors.New("vehicle ID must be positive")
	}
	if driverID <= 0 {
		return model.Device{}, errors.New("driver ID must be positive")
	}
	dev := model.Device{
		DeviceID:  deviceID,
		APIKey:    apiKey,
		VehicleID: vehicleID,
		DriverID:  driverID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveDevice(ctx, dev); err != nil {
		return model.Device{}, fmt.Errorf("save device: %w", err)
	}
	s.localCache.Delete(deviceID)
	s.invalidateShared(ctx, deviceID)
	if s.logger != nil {
		s.logger.Info("device registered", "device_id", deviceID, "vehicle_id", vehicleID)
	}
	return dev, nil
}

// Authenticate resolves the identities for a device/key pair. Returns
// ErrUnauthorized on any credential mismatch; other errors are
// infrastructure faults.
func (s *Service) Authenticate(ctx context.Context, deviceID, apiKey string) (model.DeviceIdentity, error) {
	if deviceID == "" || apiKey == "" {
		return model.DeviceIdentity{}, ErrUnauthorized
	}
	dev, ok := s.lookup(ctx, deviceID)
	if !ok {
		found, exists, err := s.store.GetDevice(ctx, deviceID)
		if err != nil {
			return model.DeviceIdentity{}, fmt.Errorf("device lookup: %w", err)
		}
		if !exists {
			return model.DeviceIdentity{}, ErrUnauthorized
		}
		dev = found
		s.cache(ctx, dev)
	}
	if dev.APIKey != apiKey {
		return model.DeviceIdentity{}, ErrUnauthorized
	}
	return model.DeviceIdentity{
		DeviceID:  dev.DeviceID,
		VehicleID: dev.VehicleID,
		DriverID:  dev.DriverID,
	}, nil
}

// EnsureBootstrapDevice registers the configured bootstrap device unless it
// already exists.
func (s *Service) EnsureBootstrapDevice(ctx context.Context, boot config.BootstrapDevice) error {
	if !boot.Enabled {
		return nil
	}
	_, exists, err := s.store.GetDevice(ctx, boot.DeviceID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.Register(ctx, boot.DeviceID, boot.APIKey, boot.VehicleID, boot.DriverID)
	return err
}

func (s *Service) lookup(ctx context.Context, deviceID string) (model.Device, bool) {
	if raw, ok := s.localCache.Load(deviceID); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.device, true
		}
		s.localCache.Delete(deviceID)
	}
	if s.redis == nil {
		return model.Device{}, false
	}
	vals, err := s.redis.HGetAll(ctx, deviceKey(deviceID)).Result()
	if err != nil || len(vals) == 0 {
		return model.Device{}, false
	}
	dev := model.Device{
		DeviceID: deviceID,
		APIKey:   vals["api_key"],
	}
	fmt.Sscanf(vals["vehicle_id"], "%d", &dev.VehicleID)
	fmt.Sscanf(vals["driver_id"], "%d", &dev.DriverID)
	if dev.APIKey == "" || dev.VehicleID == 0 {
		return model.Device{}, false
	}
	s.localCache.Store(deviceID, cacheEntry{device: dev, expiresAt: time.Now().Add(s.ttl)})
	return dev, true
}

func (s *Service) cache(ctx context.Context, dev model.Device) {
	s.localCache.Store(dev.DeviceID, cacheEntry{device: dev, expiresAt: time.Now().Add(s.ttl)})
	if s.redis == nil {
		return
	}
	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, deviceKey(dev.DeviceID), map[string]interface{}{
		"api_key":    dev.APIKey,
		"vehicle_id": dev.VehicleID,
		"driver_id":  dev.DriverID,
	})
	pipe.Expire(ctx, deviceKey(dev.DeviceID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil && s.logger != nil {
		s.logger.Warn("redis device cache write failed", "device_id", dev.DeviceID, "err", err)
	}
}

func (s *Service) invalidateShared(ctx context.Context, deviceID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, deviceKey(deviceID)).Err(); err != nil && s.logger != nil {
		s.logger.Warn("redis device cache invalidation failed", "device_id", deviceID, "err", err)
	}
}

func deviceKey(deviceID string) string {
	return "device:auth:" + deviceID
}
