package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"RPGMixer/model"
	"RPGMixer/repository"

	"github.com/go-redis/redis/v8"
)

// OrdersKey is the Redis hash holding every playlist order: field = order key,
// value = JSON array of track ids.
const OrdersKey = "rpgmixer:playlist_orders"

var _ repository.OrderRepository = (*OrderCache)(nil)

// OrderCache stores playlist orders in Redis.
type OrderCache struct {
	client *redis.Client
}

// NewOrderCache wraps a connected client.
func NewOrderCache(client *redis.Client) *OrderCache {
	return &OrderCache{client: client}
}

// All 获取全部播放顺序
func (c *OrderCache) All(ctx context.Context) (model.PlaylistOrders, error) {
	fields, err := c.client.HGetAll(ctx, OrdersKey).Result()
	if err != nil {
		if err == redis.Nil {
			return model.PlaylistOrders{}, nil
		}
		return nil, fmt.Errorf("failed to load playlist orders: %w", err)
	}
	return decodeOrders(fields)
}

// Save 保存单个播放顺序
func (c *OrderCache) Save(ctx context.Context, key string, trackIDs []string) error {
	value, err := encodeOrder(trackIDs)
	if err != nil {
		return err
	}
	if err := c.client.HSet(ctx, OrdersKey, key, value).Err(); err != nil {
		return fmt.Errorf("failed to save playlist order %s: %w", key, err)
	}
	return nil
}

// Delete removes one order, so the list falls back to catalog order.
func (c *OrderCache) Delete(ctx context.Context, key string) error {
	return c.client.HDel(ctx, OrdersKey, key).Err()
}

func encodeOrder(trackIDs []string) (string, error) {
	if trackIDs == nil {
		trackIDs = []string{}
	}
	b, err := json.Marshal(trackIDs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal playlist order: %w", err)
	}
	return string(b), nil
}

func decodeOrders(fields map[string]string) (model.PlaylistOrders, error) {
	orders := make(model.PlaylistOrders, len(fields))
	for key, raw := range fields {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("failed to unmarshal playlist order %s: %w", key, err)
		}
		orders[key] = ids
	}
	return orders, nil
}
