package metrics

import (
	"sync"
	"time"
)

// Counters tracks one device's ingest outcomes.
type Counters struct {
	Received    int64 `json:"received"`
	Accepted    int64 `json:"accepted"`
	Rejected    int64 `json:"rejected"`
	Forwarded   int64 `json:"forwarded"`
	SyncPending int64 `json:"sync_pending"`
}

type Store struct {
	mu        sync.RWMutex
	byDevice  map[string]*Counters
	updatedAt map[string]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{
		byDevice:  make(map[string]*Counters),
		updatedAt: make(map[string]time.Time),
		limit:     limit,
	}
}

func (s *Store) Record(deviceID string, update func(*Counters)) {
	if deviceID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byDevice[deviceID]
	if !ok {
		c = &Counters{}
		s.byDevice[deviceID] = c
	}
	update(c)
	s.updatedAt[deviceID] = time.Now().UTC()
	if len(s.byDevice) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(deviceID string) (Counters, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byDevice[deviceID]
	if !ok {
		return Counters{}, time.Time{}, false
	}
	return *c, s.updatedAt[deviceID], true
}

func (s *Store) GetAll() map[string]Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Counters, len(s.byDevice))
	for deviceID, c := range s.byDevice {
		out[deviceID] = *c
	}
	return out
}

func (s *Store) evictOldest() {
	var oldestDevice string
	var oldest time.Time
	for deviceID, ts := range s.updatedAt {
		if oldestDevice == "" || ts.Before(oldest) {
			oldestDevice = deviceID
			oldest = ts
		}
	}
	if oldestDevice != "" {
		delete(s.byDevice, oldestDevice)
		delete(s.updatedAt, oldestDevice)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDevice = make(map[string]*Counters)
	s.updatedAt = make(map[string]time.Time)
}
