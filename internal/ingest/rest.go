package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"safecar-edge/internal/config"
	"safecar-edge/internal/engine"
	"safecar-edge/internal/iam"
)

const (
	headerDeviceID = "X-Device-Id"
	headerAPIKey   = "X-API-Key"
)

type RESTServer struct {
	engine *engine.Engine
	auth   *iam.Service
	logger *slog.Logger
}

// StartREST serves the device-facing sample endpoint. The request handler
// authenticates the device and hands the parsed reading to the engine; it
// never parses sensor semantics itself.
func StartREST(ctx context.Context, cfg config.RESTConfig, eng *engine.Engine, auth *iam.Service, logger *slog.Logger) *http.Server {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", cfg.Addr)
	}
	server := &RESTServer{engine: eng, auth: auth, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/telemetry/samples", server.handleSamples)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *RESTServer) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	deviceID := r.Header.Get(headerDeviceID)
	apiKey := r.Header.Get(headerAPIKey)
	if deviceID == "" || apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing authentication headers: X-Device-Id and X-API-Key required")
		return
	}
	dev, err := s.auth.Authenticate(r.Context(), deviceID, apiKey)
	if err != nil {
		if errors.Is(err, iam.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "authentication backend unavailable")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}
	reading, err := ParseReading(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := s.engine.ProcessReading(r.Context(), dev, reading)
	if err != nil {
		if engine.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.logger != nil {
			s.logger.Error("process reading failed", "device_id", dev.DeviceID, "err", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "sensor reading recorded successfully",
		"data":    receipt,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
