package bus

import (
	"context"
	"io"
	"log"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger *log.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &NullBus{logger: logger}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// PublishActivity logs the activity but doesn't actually publish it
func (nb *NullBus) PublishActivity(ctx context.Context, msg ActivityMessage) error {
	nb.logger.Printf("Would publish %s for case %s (Redis disabled)", msg.Action, msg.CaseID)
	return nil
}

// RecentActivity has nothing to return without Redis
func (nb *NullBus) RecentActivity(ctx context.Context, n int64) ([]ActivityMessage, error) {
	return nil, nil
}

// GetStats returns empty stats for null bus
func (nb *NullBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"type":   "null",
		"status": "disabled",
	}, nil
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
