package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"github.com/ogurasousui/courier-shift/internal/platform/config"
)

const pingTimeout = 2 * time.Second

// client は Publisher が利用する go-redis のサブセットです。
type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Publisher はコミット済みのシフトイベントを Redis Pub/Sub に送信します。
type Publisher struct {
	client  client
	channel string
}

var _ shift.Publisher = (*Publisher)(nil)

// Message は Pub/Sub に流れるシフトイベントのペイロードです。
type Message struct {
	ID         string         `json:"id"`
	ShiftID    string         `json:"shift_id"`
	CourierID  string         `json:"courier_id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewClient は redis 設定から go-redis クライアントを生成し疎通確認を行います。
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	c := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// NewPublisher は Publisher を生成します。
func NewPublisher(c client, channel string) *Publisher {
	return &Publisher{client: c, channel: channel}
}

// Publish はイベントを JSON にエンコードしてチャンネルへ送信します。
func (p *Publisher) Publish(ctx context.Context, ev shift.Event) error {
	payload, err := json.Marshal(Message{
		ID:         ev.ID,
		ShiftID:    ev.ShiftID,
		CourierID:  ev.CourierID,
		Type:       string(ev.Type),
		OccurredAt: ev.OccurredAt,
		Meta:       ev.Meta,
	})
	if err != nil {
		return fmt.Errorf("redis: encode event %s: %w", ev.ID, err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish to %s: %w", p.channel, err)
	}
	return nil
}
