package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"safecar-edge/internal/config"
	"safecar-edge/internal/model"
)

func testSample() model.NormalizedSample {
	return model.NormalizedSample{
		Type:      model.TypeEngineOverheat,
		Severity:  model.SeverityWarning,
		Timestamp: model.SampleTimestamp{OccurredAt: "2024-05-12T09:30:00Z"},
		VehicleID: model.VehicleIDValue{VehicleID: 7},
		DriverID:  model.DriverIDValue{DriverID: 3},
		DeviceID:  model.DeviceIDValue{DeviceID: "device-001"},
		EngineTemp: &model.TemperatureValue{
			Celsius: 95,
		},
	}
}

func newTestClient(url string) *Client {
	return NewClient(config.BackendConfig{URL: url, APIKey: "secret"}, nil)
}

func TestSendDelivered(t *testing.T) {
	var gotPath, gotKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).Send(context.Background(), testSample())
	if !outcome.Delivered() {
		t.Fatalf("expected delivered, got %s: %s", outcome.Status, outcome.Reason)
	}
	if gotPath != "/api/v1/telemetry" {
		t.Fatalf("wrong path: %s", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header missing")
	}
	body := string(gotBody)
	if !strings.Contains(body, `"sample"`) || !strings.Contains(body, `"type":"ENGINE_OVERHEAT"`) {
		t.Fatalf("unexpected payload: %s", body)
	}
}

func TestSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid sample"))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).Send(context.Background(), testSample())
	if outcome.Status != model.ForwardRejected {
		t.Fatalf("expected rejected, got %s", outcome.Status)
	}
	if !strings.Contains(outcome.Reason, "HTTP 400") || !strings.Contains(outcome.Reason, "invalid sample") {
		t.Fatalf("reason lacks detail: %s", outcome.Reason)
	}
}

func TestSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	outcome := newTestClient(srv.URL).Send(context.Background(), testSample())
	if outcome.Status != model.ForwardUnreachable {
		t.Fatalf("expected unreachable, got %s", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Fatalf("unreachable outcome needs a reason")
	}
}

func TestSendRawReplaysStoredPayload(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	payload, err := EncodeCommand(testSample())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	outcome := newTestClient(srv.URL).SendRaw(context.Background(), payload)
	if !outcome.Delivered() {
		t.Fatalf("expected delivered, got %s", outcome.Status)
	}
	if string(gotBody) != string(payload) {
		t.Fatalf("replayed bytes differ from stored payload")
	}
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/actuator/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if !c.CheckHealth(context.Background()) {
		t.Fatalf("healthy backend reported unhealthy")
	}

	srv.Close()
	if c.CheckHealth(context.Background()) {
		t.Fatalf("closed backend reported healthy")
	}
}
