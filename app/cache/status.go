package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-pix/app/factory"
)

const statusKeyPrefix = "pix:status:"

// StatusCache is a short-TTL read-through cache for the hot status
// projection. The status endpoint is polled every few seconds per active
// checkout; the cache absorbs that load without changing observable behavior.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewStatusCache(addr, password string, db int, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &StatusCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl:    ttl,
		logger: factory.NewModuleLogger("pix-status-cache"),
	}
}

// Ping verifies connectivity at startup.
func (c *StatusCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetStatus returns the cached status for a payment id, or "" on miss.
// Cache errors degrade to a miss.
func (c *StatusCache) GetStatus(ctx context.Context, paymentID string) string {
	value, err := c.client.Get(ctx, statusKeyPrefix+paymentID).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("payment_id", paymentID).Warn("status cache read failed")
		}
		return ""
	}
	return value
}

// SetStatus overwrites the cached status for a payment id. Called on every
// read-miss and on every status transition so pollers observe new states
// within one TTL at worst.
func (c *StatusCache) SetStatus(ctx context.Context, paymentID, status string) {
	if err := c.client.Set(ctx, statusKeyPrefix+paymentID, status, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("payment_id", paymentID).Warn("status cache write failed")
	}
}

func (c *StatusCache) Close() error {
	return c.client.Close()
}
