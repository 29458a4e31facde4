package offline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/air-gapped/moviego/internal/logging"
)

// Container holds the single active worker. Requests go through the active
// worker, or straight to the network while none is registered.
type Container struct {
	network http.RoundTripper
	logger  *slog.Logger

	mu     sync.RWMutex
	active *Worker
}

// NewContainer creates an empty container passing requests to network.
func NewContainer(network http.RoundTripper, logger *slog.Logger) *Container {
	return &Container{network: network, logger: logging.OrDefault(logger)}
}

// Register installs and activates w, then retires the previously active
// worker. If install or activation fails, the previous worker stays active.
func (c *Container) Register(ctx context.Context, w *Worker) (InstallReport, error) {
	report, err := w.Install(ctx)
	if err != nil {
		return report, fmt.Errorf("register %s: %w", w.Version(), err)
	}
	deleted, err := w.Activate(ctx)
	if err != nil {
		return report, fmt.Errorf("register %s: %w", w.Version(), err)
	}

	c.mu.Lock()
	prev := c.active
	c.active = w
	c.mu.Unlock()

	if prev != nil {
		prev.Supersede()
		_ = prev.Close()
	}
	c.logger.Info("offline worker registered",
		"cache_version", w.Version(),
		"cached", len(report.Cached),
		"failed", len(report.Failed),
		"deleted", deleted,
	)
	return report, nil
}

// Active returns the active worker, or nil.
func (c *Container) Active() *Worker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// RoundTrip delegates to the active worker.
func (c *Container) RoundTrip(req *http.Request) (*http.Response, error) {
	if w := c.Active(); w != nil {
		return w.RoundTrip(req)
	}
	return c.network.RoundTrip(req)
}

// Close retires and drains the active worker.
func (c *Container) Close() error {
	c.mu.Lock()
	w := c.active
	c.active = nil
	c.mu.Unlock()

	if w == nil {
		return nil
	}
	w.Supersede()
	return w.Close()
}
