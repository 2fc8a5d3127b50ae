// Package alerts keeps a bounded in-memory view of recent WARNING and
// CRITICAL samples so operators can inspect the edge unit without querying
// the ledger.
package alerts

import (
	"sync"
	"time"

	"safecar-edge/internal/model"
)

type Anomaly struct {
	Timestamp time.Time              `json:"timestamp"`
	DeviceID  string                 `json:"device_id"`
	Severity  model.Severity         `json:"severity"`
	Type      model.TelemetryType    `json:"type"`
	Sample    model.NormalizedSample `json:"sample"`
}

type Store struct {
	mu    sync.RWMutex
	buf   []Anomaly
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{limit: limit}
}

// Add records a sample if it is WARNING or worse; INFO samples are ignored.
func (s *Store) Add(deviceID string, sample model.NormalizedSample, ts time.Time) {
	if sample.Severity == model.SeverityInfo {
		return
	}
	a := Anomaly{
		Timestamp: ts,
		DeviceID:  deviceID,
		Severity:  sample.Severity,
		Type:      sample.Type,
		Sample:    sample,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, a)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = a
}

func (s *Store) List(limit int) []Anomaly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]Anomaly, 0, limit)
	start := len(s.buf) - limit
	for i := start; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []Anomaly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Anomaly, 0)
	for _, a := range s.buf {
		if !a.Timestamp.Before(ts) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
