package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker guarantees at most one running loop per campaign across processes
type Locker interface {
	Acquire(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, campaignID uint, owner string) error
}

// Only the owner may extend or drop a lock
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a Redis backed campaign lock
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) key(campaignID uint) string {
	return fmt.Sprintf("%sdispatch:lock:%d", l.prefix, campaignID)
}

func (l *RedisLocker) Acquire(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(campaignID), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock of campaign %d: %w", campaignID, err)
	}
	return ok, nil
}

func (l *RedisLocker) Renew(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, l.client, []string{l.key(campaignID)}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to renew lock of campaign %d: %w", campaignID, err)
	}
	return n == 1, nil
}

func (l *RedisLocker) Release(ctx context.Context, campaignID uint, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(campaignID)}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release lock of campaign %d: %w", campaignID, err)
	}
	return nil
}

type memoryLease struct {
	owner   string
	expires time.Time
}

// MemoryLocker is the single-process Locker used without Redis
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[uint]memoryLease
	now    func() time.Time
}

// NewMemoryLocker creates an in-process campaign lock
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[uint]memoryLease), now: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, ok := l.leases[campaignID]; ok && now.Before(lease.expires) {
		return false, nil
	}
	l.leases[campaignID] = memoryLease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLocker) Renew(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lease, ok := l.leases[campaignID]
	if !ok || lease.owner != owner {
		return false, nil
	}
	lease.expires = l.now().Add(ttl)
	l.leases[campaignID] = lease
	return true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, campaignID uint, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, ok := l.leases[campaignID]; ok && lease.owner == owner {
		delete(l.leases, campaignID)
	}
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*MemoryLocker)(nil)
)
