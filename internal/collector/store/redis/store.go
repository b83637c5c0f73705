// Package redis stores collector events in a Redis list. RPUSH is atomic, so
// concurrent collectors sharing one list never overwrite each other.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pdftrack/internal/collector/models"
	"pdftrack/pkg/platform/sentinel"
)

// DefaultKey is the list holding the events.
const DefaultKey = "pdftrack:events"

type Store struct {
	client redis.Cmdable
	key    string
}

func New(client redis.Cmdable, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) Append(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w: %v", s.key, sentinel.ErrUnavailable, err)
	}
	return nil
}

// List returns every event in push order.
func (s *Store) List(ctx context.Context) ([]models.Event, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w: %v", s.key, sentinel.ErrUnavailable, err)
	}
	events := make([]models.Event, 0, len(raw))
	for i, item := range raw {
		var ev models.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", sentinel.ErrCorrupt, s.key, i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
