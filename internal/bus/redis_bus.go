package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// maxStreamLen bounds the activity stream; trimming is approximate.
const maxStreamLen = 10000

// RedisBus publishes activity to a Redis Stream
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &RedisBus{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishActivity appends msg to the activity stream
func (rb *RedisBus) PublishActivity(ctx context.Context, msg ActivityMessage) error {
	fields, err := activityFields(msg)
	if err != nil {
		return err
	}

	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: ActivityStream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: fields,
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}

	rb.logger.Printf("Published %s for case %s to activity stream", msg.Action, msg.CaseID)
	return nil
}

// RecentActivity reads the newest n messages of the activity stream
func (rb *RedisBus) RecentActivity(ctx context.Context, n int64) ([]ActivityMessage, error) {
	if n <= 0 {
		n = 20
	}
	result := rb.client.XRevRangeN(ctx, ActivityStream, "+", "-", n)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity stream: %w", err)
	}

	out := make([]ActivityMessage, 0, len(result.Val()))
	for _, m := range result.Val() {
		values := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			if s, ok := v.(string); ok {
				values[k] = s
			}
		}
		msg := parseActivity(values)
		msg.ID = m.ID
		out = append(out, msg)
	}
	return out, nil
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the activity stream
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis"}

	info, err := rb.client.XInfoStream(ctx, ActivityStream).Result()
	if err != nil {
		if err == redis.Nil || isNoSuchKey(err) {
			stats["activity_stream"] = map[string]interface{}{"length": int64(0)}
			return stats, nil
		}
		return nil, fmt.Errorf("failed to get stream info for %s: %w", ActivityStream, err)
	}
	stats["activity_stream"] = map[string]interface{}{
		"length":         info.Length,
		"first_entry_id": info.FirstEntry.ID,
		"last_entry_id":  info.LastEntry.ID,
	}
	return stats, nil
}

func isNoSuchKey(err error) bool {
	return err != nil && err.Error() == "ERR no such key"
}

func activityFields(msg ActivityMessage) (map[string]interface{}, error) {
	ts := msg.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	fields := map[string]interface{}{
		"case_id":   msg.CaseID,
		"action":    msg.Action,
		"actor":     msg.Actor,
		"timestamp": ts,
	}
	if len(msg.Details) > 0 {
		data, err := json.Marshal(msg.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal activity details: %w", err)
		}
		fields["details"] = string(data)
	}
	return fields, nil
}

func parseActivity(fields map[string]string) ActivityMessage {
	msg := ActivityMessage{
		CaseID: fields["case_id"],
		Action: fields["action"],
		Actor:  fields["actor"],
	}
	if raw := fields["details"]; raw != "" {
		var details map[string]string
		if err := json.Unmarshal([]byte(raw), &details); err == nil {
			msg.Details = details
		}
	}
	if ts, err := strconv.ParseInt(fields["timestamp"], 10, 64); err == nil {
		msg.Timestamp = ts
	}
	return msg
}
