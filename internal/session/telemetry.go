// ABOUTME: Global model and rate-limit telemetry consumed by the status display
// ABOUTME: Not scoped to any agent; updated from model_info and rate_limits frames

package session

import (
	"sync"

	"github.com/2389/coven-client/internal/protocol"
)

// Telemetry holds the latest global model and rate-limit information.
type Telemetry struct {
	mu         sync.RWMutex
	model      protocol.ModelInfo
	rateLimits protocol.RateLimitInfo
	statusLine string
}

// NewTelemetry creates an empty Telemetry store.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// SetModelInfo replaces the global model telemetry.
func (t *Telemetry) SetModelInfo(mi protocol.ModelInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.model = mi
}

// SetRateLimits replaces the global rate-limit telemetry.
func (t *Telemetry) SetRateLimits(rl protocol.RateLimitInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rateLimits = rl
}

// SetStatusLine stores the most recent global status-line text.
func (t *Telemetry) SetStatusLine(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusLine = s
}

// Snapshot returns copies of the current telemetry values.
func (t *Telemetry) Snapshot() (model protocol.ModelInfo, rateLimits protocol.RateLimitInfo, statusLine string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.model, t.rateLimits, t.statusLine
}
