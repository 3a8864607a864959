// Package events announces newly created posts on a Redis pub/sub channel.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/image-posts/internal/config"
	"github.com/example/image-posts/internal/models"
)

// PostCreated is the payload published for every new post.
type PostCreated struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Cover      string    `json:"cover"`
	UploadedOn time.Time `json:"uploaded_on"`
}

type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(cfg *config.Config) *RedisPublisher {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisPublisher{client: c, channel: cfg.EventsChannel}
}

func (r *RedisPublisher) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisPublisher) Close() error { return r.client.Close() }

func (r *RedisPublisher) PublishPostCreated(ctx context.Context, p *models.Post) error {
	b, err := json.Marshal(PostCreated{ID: p.ID, Title: p.Title, Cover: p.Cover, UploadedOn: p.UploadedOn})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}

// Noop drops every event; used when REDIS_ADDR is empty.
type Noop struct{}

func (Noop) PublishPostCreated(context.Context, *models.Post) error { return nil }
