// Package bus fans investigator activity out to other consoles over Redis
// Streams. Without Redis a NullBus keeps the console working offline.
package bus

import (
	"context"
	"io"
	"log"
)

// ActivityStream is the Redis stream activity is appended to.
const ActivityStream = "activity"

// ActivityMessage is one investigator action.
type ActivityMessage struct {
	ID        string            `json:"id,omitempty"`
	CaseID    string            `json:"case_id"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Bus defines the interface for activity bus implementations
type Bus interface {
	// PublishActivity appends an activity message to the activity stream
	PublishActivity(ctx context.Context, msg ActivityMessage) error

	// RecentActivity returns up to n of the newest messages, newest first
	RecentActivity(ctx context.Context, n int64) ([]ActivityMessage, error)

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or unreachable, returns a NullBus
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}
	logger.Printf("Redis unavailable, activity stays local: %v", err)
	return NewNullBus(logger)
}
