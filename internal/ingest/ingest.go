// Package ingest hosts the transports readings arrive on: the device-facing
// REST endpoint and an optional Kafka source. Both feed the same
// authenticate-validate-classify path; neither interprets sensor values.
package ingest

import (
	"context"
	"time"
)

// BackoffSleep pauses between retries of a failing source, returning false
// when the context is cancelled first.
func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
