// Package api is the operator/fleet-facing surface: reading lookups, device
// stats, recent anomalies, ingest counters and device registration. Device
// sample ingestion lives in internal/ingest, not here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"safecar-edge/internal/alerts"
	"safecar-edge/internal/config"
	"safecar-edge/internal/gateway"
	"safecar-edge/internal/iam"
	"safecar-edge/internal/metrics"
	"safecar-edge/internal/storage"
)

type Server struct {
	cfg     *config.Config
	store   storage.Store
	auth    *iam.Service
	backend *gateway.Client
	metrics *metrics.Store
	alerts  *alerts.Store
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status         string       `json:"status"`
	Time           string       `json:"time"`
	Version        string       `json:"version"`
	BackendURL     string       `json:"backend_url"`
	BackendHealthy bool         `json:"backend_healthy"`
	Storage        string       `json:"storage_driver"`
	Ingest         ingestStatus `json:"ingest"`
}

type ingestStatus struct {
	REST  bool `json:"rest"`
	Kafka bool `json:"kafka"`
}

func Start(ctx context.Context, cfg *config.Config, store storage.Store, auth *iam.Service, backend *gateway.Client, metricsStore *metrics.Store, alertsStore *alerts.Store, logger *slog.Logger, version string) *http.Server {
	if cfg == nil || !cfg.API.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", cfg.API.Addr)
	}
	server := &Server{
		cfg:     cfg,
		store:   store,
		auth:    auth,
		backend: backend,
		metrics: metricsStore,
		alerts:  alertsStore,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/readings/", server.handleReading)
	mux.HandleFunc("/vehicles/", server.handleVehicleReadings)
	mux.HandleFunc("/stats", server.handleDeviceStats)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/metrics", server.handleMetrics)
	mux.HandleFunc("/metrics/", server.handleMetrics)
	mux.HandleFunc("/devices", server.handleRegisterDevice)
	mux.HandleFunc("/admin/clear", server.handleClear)

	httpServer := &http.Server{Addr: cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	healthy := false
	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		healthy = s.backend.CheckHealth(ctx)
	}
	resp := statusResponse{
		Status:         "ok",
		Time:           time.Now().UTC().Format(time.RFC3339Nano),
		Version:        s.version,
		BackendURL:     s.cfg.Backend.URL,
		BackendHealthy: healthy,
		Storage:        s.cfg.Storage.Driver,
		Ingest: ingestStatus{
			REST:  s.cfg.Ingest.REST.Enabled,
			Kafka: s.cfg.Ingest.Kafka.Enabled,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/readings/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reading id")
		return
	}
	rec, found, err := s.store.GetReading(r.Context(), id)
	if err != nil {
		s.serverError(w, "reading lookup failed", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "reading not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

// handleVehicleReadings serves /vehicles/{id}/readings with optional
// start_date, end_date and limit query parameters.
func (s *Server) handleVehicleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/vehicles/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "readings" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	vehicleID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || vehicleID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}
	q := storage.ReadingQuery{Limit: 100}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		q.Start = &ts
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		q.End = &ts
	}
	readings, err := s.store.ListVehicleReadings(r.Context(), vehicleID, q)
	if err != nil {
		s.serverError(w, "vehicle readings lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vehicle_id": vehicleID,
		"count":      len(readings),
		"data":       readings,
	})
}

func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	deviceID := r.Header.Get("X-Device-Id")
	apiKey := r.Header.Get("X-API-Key")
	if deviceID == "" || apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing authentication headers: X-Device-Id and X-API-Key required")
		return
	}
	if _, err := s.auth.Authenticate(r.Context(), deviceID, apiKey); err != nil {
		if errors.Is(err, iam.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.serverError(w, "authentication failed", err)
		return
	}
	recent, err := s.store.RecentDeviceReadings(r.Context(), deviceID, 100)
	if err != nil {
		s.serverError(w, "device stats lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": buildDeviceStats(deviceID, recent)})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []alerts.Anomaly
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		list = s.alerts.Since(ts)
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/metrics")
	path = strings.TrimPrefix(path, "/")
	if path != "" {
		counters, updated, ok := s.metrics.Get(path)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"device_id":  path,
			"updated_at": updated.Format(time.RFC3339Nano),
			"counters":   counters,
		})
		return
	}
	all := s.metrics.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"counters": all,
		"count":    len(all),
	})
}

type registerDeviceRequest struct {
	DeviceID  string `json:"device_id"`
	APIKey    string `json:"api_key"`
	VehicleID int64  `json:"vehicle_id"`
	DriverID  int64  `json:"driver_id"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}
	var req registerDeviceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dev, err := s.auth.Register(r.Context(), req.DeviceID, req.APIKey, req.VehicleID, req.DriverID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "device registered successfully",
		"data": map[string]any{
			"device_id":  dev.DeviceID,
			"api_key":    dev.APIKey,
			"vehicle_id": dev.VehicleID,
			"driver_id":  dev.DriverID,
			"created_at": dev.CreatedAt.Format(time.RFC3339Nano),
		},
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.metrics != nil {
			s.metrics.Clear()
		}
		if s.alerts != nil {
			s.alerts.Clear()
		}
	case "alerts":
		if s.alerts != nil {
			s.alerts.Clear()
		}
	case "metrics":
		if s.metrics != nil {
			s.metrics.Clear()
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown clear target")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "err", err)
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
