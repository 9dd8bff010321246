package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matbaogit/WFAHub-sub000/app/mailmerge"
	"github.com/matbaogit/WFAHub-sub000/utils"
	"github.com/redis/go-redis/v9"
)

// ErrUploadNotFound covers unknown, expired and foreign upload tokens alike
var ErrUploadNotFound = errors.New("upload not found or expired")

// CachedUpload is a parsed upload waiting for its column mapping
type CachedUpload struct {
	Token      string           `json:"token"`
	CustomerID uint             `json:"customer_id"`
	FileName   string           `json:"file_name"`
	Table      *mailmerge.Table `json:"table"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// UploadCache keeps parsed uploads between the preview and the apply-mapping calls
type UploadCache interface {
	Put(ctx context.Context, customerID uint, fileName string, table *mailmerge.Table) (*CachedUpload, error)
	Get(ctx context.Context, customerID uint, token string) (*CachedUpload, error)
	Delete(ctx context.Context, token string) error
}

func newCachedUpload(customerID uint, fileName string, table *mailmerge.Table, ttl time.Duration) *CachedUpload {
	now := utils.UTCNow()
	return &CachedUpload{
		Token:      uuid.NewString(),
		CustomerID: customerID,
		FileName:   fileName,
		Table:      table,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// RedisUploadCache stores uploads as JSON with a TTL
type RedisUploadCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisUploadCache creates a Redis backed upload cache
func NewRedisUploadCache(client *redis.Client, prefix string, ttl time.Duration) *RedisUploadCache {
	if ttl <= 0 {
		ttl = utils.DefaultUploadTTL
	}
	return &RedisUploadCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisUploadCache) key(token string) string {
	return c.prefix + "upload:" + token
}

func (c *RedisUploadCache) Put(ctx context.Context, customerID uint, fileName string, table *mailmerge.Table) (*CachedUpload, error) {
	entry := newCachedUpload(customerID, fileName, table, c.ttl)

	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	if err := c.client.Set(ctx, c.key(entry.Token), payload, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to cache upload: %w", err)
	}

	return entry, nil
}

func (c *RedisUploadCache) Get(ctx context.Context, customerID uint, token string) (*CachedUpload, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrUploadNotFound
	}

	payload, err := c.client.Get(ctx, c.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	var entry CachedUpload
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode upload: %w", err)
	}
	if entry.CustomerID != customerID {
		return nil, ErrUploadNotFound
	}

	return &entry, nil
}

func (c *RedisUploadCache) Delete(ctx context.Context, token string) error {
	return c.client.Del(ctx, c.key(token)).Err()
}

// MemoryUploadCache is the in-process variant for CACHE_PROVIDER=memory
type MemoryUploadCache struct {
	mu      sync.Mutex
	entries map[string]*CachedUpload
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryUploadCache creates an in-memory upload cache
func NewMemoryUploadCache(ttl time.Duration) *MemoryUploadCache {
	if ttl <= 0 {
		ttl = utils.DefaultUploadTTL
	}
	return &MemoryUploadCache{
		entries: make(map[string]*CachedUpload),
		ttl:     ttl,
		now:     utils.UTCNow,
	}
}

func (c *MemoryUploadCache) Put(ctx context.Context, customerID uint, fileName string, table *mailmerge.Table) (*CachedUpload, error) {
	entry := newCachedUpload(customerID, fileName, table, c.ttl)
	entry.CreatedAt = c.now()
	entry.ExpiresAt = entry.CreatedAt.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpiredLocked()
	c.entries[entry.Token] = entry
	return entry, nil
}

func (c *MemoryUploadCache) Get(ctx context.Context, customerID uint, token string) (*CachedUpload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return nil, ErrUploadNotFound
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, token)
		return nil, ErrUploadNotFound
	}
	if entry.CustomerID != customerID {
		return nil, ErrUploadNotFound
	}
	return entry, nil
}

func (c *MemoryUploadCache) Delete(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	return nil
}

func (c *MemoryUploadCache) evictExpiredLocked() {
	now := c.now()
	for token, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, token)
		}
	}
}

var (
	_ UploadCache = (*RedisUploadCache)(nil)
	_ UploadCache = (*MemoryUploadCache)(nil)
)
