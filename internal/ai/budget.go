package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetChecker checks and records token usage against budgets.
type BudgetChecker interface {
	// Check returns true if the tenant/user has budget remaining.
	Check(tenantID, userID string) (bool, error)
	// Record records token usage for a tenant/user.
	Record(tenantID, userID string, tokens int) error
	// Usage returns current usage for a tenant/user.
	Usage(tenantID, userID string) (used int64, budget int64, err error)
}

// InMemoryBudget tracks usage in process memory. It meters a single gateway
// instance when no cache is configured. Like RedisBudget, usage resets once
// the window has passed since the first recorded call.
type InMemoryBudget struct {
	mu            sync.Mutex
	window        time.Duration
	defaultBudget int64
	now           func() time.Time
	budgets       map[string]int64
	usage         map[string]windowUsage
}

type windowUsage struct {
	tokens int64
	start  time.Time
}

// NewInMemoryBudget creates a tracker. A window <= 0 never resets usage and a
// defaultBudget <= 0 leaves users without an explicit budget unlimited.
func NewInMemoryBudget(window time.Duration, defaultBudget int64) *InMemoryBudget {
	return &InMemoryBudget{
		window:        window,
		defaultBudget: defaultBudget,
		now:           time.Now,
		budgets:       make(map[string]int64),
		usage:         make(map[string]windowUsage),
	}
}

// SetBudget sets an explicit token budget for a tenant/user.
func (b *InMemoryBudget) SetBudget(tenantID, userID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[budgetKey(tenantID, userID)] = tokens
}

func (b *InMemoryBudget) Check(tenantID, userID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(tenantID, userID)
	budget, explicit := b.budgets[key]
	if !explicit {
		if b.defaultBudget <= 0 {
			return true, nil
		}
		budget = b.defaultBudget
	}
	return b.usedLocked(key) < budget, nil
}

func (b *InMemoryBudget) Record(tenantID, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(tenantID, userID)
	u, ok := b.usage[key]
	if !ok || b.expiredLocked(u.start) {
		u = windowUsage{start: b.now()}
	}
	u.tokens += int64(tokens)
	b.usage[key] = u
	return nil
}

func (b *InMemoryBudget) Usage(tenantID, userID string) (int64, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(tenantID, userID)
	budget, explicit := b.budgets[key]
	if !explicit {
		budget = b.defaultBudget
	}
	return b.usedLocked(key), budget, nil
}

// usedLocked returns the tokens used in the current window.
func (b *InMemoryBudget) usedLocked(key string) int64 {
	u, ok := b.usage[key]
	if !ok || b.expiredLocked(u.start) {
		return 0
	}
	return u.tokens
}

func (b *InMemoryBudget) expiredLocked(start time.Time) bool {
	return b.window > 0 && !b.now().Before(start.Add(b.window))
}

func budgetKey(tenantID, userID string) string {
	return tenantID + ":" + userID
}

// RedisBudget shares budgets across gateway instances. Usage counters expire
// after the window, so the budget applies per window (e.g. per day).
type RedisBudget struct {
	client        redis.UniversalClient
	prefix        string
	window        time.Duration
	defaultBudget int64
	timeout       time.Duration
}

// NewRedisBudget creates a Redis-backed tracker. A defaultBudget <= 0 means
// users without an explicit budget are unlimited.
func NewRedisBudget(client redis.UniversalClient, window time.Duration, defaultBudget int64) *RedisBudget {
	return &RedisBudget{
		client:        client,
		prefix:        "arandu:ai:",
		window:        window,
		defaultBudget: defaultBudget,
		timeout:       2 * time.Second,
	}
}

func (b *RedisBudget) usageKey(tenantID, userID string) string {
	return b.prefix + "usage:" + budgetKey(tenantID, userID)
}

func (b *RedisBudget) limitKey(tenantID, userID string) string {
	return b.prefix + "budget:" + budgetKey(tenantID, userID)
}

// SetBudget stores an explicit budget for a tenant/user.
func (b *RedisBudget) SetBudget(ctx context.Context, tenantID, userID string, tokens int64) error {
	return b.client.Set(ctx, b.limitKey(tenantID, userID), tokens, 0).Err()
}

func (b *RedisBudget) Check(tenantID, userID string) (bool, error) {
	used, budget, err := b.Usage(tenantID, userID)
	if err != nil {
		return false, err
	}
	if budget <= 0 {
		return true, nil
	}
	return used < budget, nil
}

func (b *RedisBudget) Record(tenantID, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	key := b.usageKey(tenantID, userID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	if b.window > 0 {
		pipe.ExpireNX(ctx, key, b.window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording AI usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(tenantID, userID string) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	used, err := b.client.Get(ctx, b.usageKey(tenantID, userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("reading AI usage: %w", err)
	}
	budget, err := b.client.Get(ctx, b.limitKey(tenantID, userID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		budget = b.defaultBudget
	case err != nil:
		return 0, 0, fmt.Errorf("reading AI budget: %w", err)
	}
	return used, budget, nil
}
