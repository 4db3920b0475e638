package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	goredis "github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "video:status:"

type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, cfg ClientConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// StatusCache stores the latest status of each video under video:status:<id> and
// publishes every change on a channel of the same name.
type StatusCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewStatusCache(client *goredis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusCache{client: client, ttl: ttl}
}

func StatusKey(videoID string) string {
	return statusKeyPrefix + videoID
}

func (c *StatusCache) SetStatus(ctx context.Context, status port.CachedStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	key := StatusKey(status.VideoID)
	_, err = c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.ttl)
		pipe.Publish(ctx, key, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache status for %s: %w", status.VideoID, err)
	}
	return nil
}

func (c *StatusCache) GetStatus(ctx context.Context, videoID string) (*port.CachedStatus, error) {
	data, err := c.client.Get(ctx, StatusKey(videoID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached status for %s: %w", videoID, err)
	}

	var status port.CachedStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode cached status for %s: %w", videoID, err)
	}
	return &status, nil
}
