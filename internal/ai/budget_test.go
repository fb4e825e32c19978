package ai

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestInMemoryBudget_NoBudgetSet(t *testing.T) {
	b := NewInMemoryBudget(0, 0)

	ok, err := b.Check("tenant1", "user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true (no budget means unlimited)")
	}
}

func TestInMemoryBudget_WithinBudget(t *testing.T) {
	b := NewInMemoryBudget(0, 0)
	b.SetBudget("tenant1", "user1", 1000)

	if err := b.Record("tenant1", "user1", 500); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	ok, err := b.Check("tenant1", "user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true (500 < 1000)")
	}
}

func TestInMemoryBudget_OverBudget(t *testing.T) {
	b := NewInMemoryBudget(0, 0)
	b.SetBudget("tenant1", "user1", 100)

	if err := b.Record("tenant1", "user1", 150); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	ok, err := b.Check("tenant1", "user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if ok {
		t.Error("Check() = true, want false (150 >= 100)")
	}
}

func TestInMemoryBudget_ExactBudget(t *testing.T) {
	b := NewInMemoryBudget(0, 0)
	b.SetBudget("tenant1", "user1", 100)

	if err := b.Record("tenant1", "user1", 100); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	ok, err := b.Check("tenant1", "user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if ok {
		t.Error("Check() = true, want false (100 >= 100, budget exhausted)")
	}
}

func TestInMemoryBudget_MultipleRecords(t *testing.T) {
	b := NewInMemoryBudget(0, 0)
	b.SetBudget("tenant1", "user1", 1000)

	records := []int{100, 200, 300}
	for _, tokens := range records {
		if err := b.Record("tenant1", "user1", tokens); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	used, budget, err := b.Usage("tenant1", "user1")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used != 600 {
		t.Errorf("used = %d, want 600", used)
	}
	if budget != 1000 {
		t.Errorf("budget = %d, want 1000", budget)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(0, 0)

	err := b.Record("tenant1", "user1", -10)
	if err == nil {
		t.Fatal("Record() should return error for negative tokens")
	}
}

func TestInMemoryBudget_IsolatedUsers(t *testing.T) {
	b := NewInMemoryBudget(0, 0)
	b.SetBudget("tenant1", "user1", 100)
	b.SetBudget("tenant1", "user2", 200)

	b.Record("tenant1", "user1", 90)
	b.Record("tenant1", "user2", 50)

	ok1, _ := b.Check("tenant1", "user1")
	ok2, _ := b.Check("tenant1", "user2")

	if !ok1 {
		t.Error("user1 should be within budget (90 < 100)")
	}
	if !ok2 {
		t.Error("user2 should be within budget (50 < 200)")
	}
}

func TestInMemoryBudget_DefaultBudget(t *testing.T) {
	b := NewInMemoryBudget(time.Hour, 100)

	if err := b.Record("tenant1", "user1", 100); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := b.Check("tenant1", "user1"); ok {
		t.Error("Check() = true, want false once the default budget is spent")
	}
	if ok, _ := b.Check("tenant1", "user2"); !ok {
		t.Error("Check() = false for an unused user")
	}

	b.SetBudget("tenant1", "user1", 500)
	if ok, _ := b.Check("tenant1", "user1"); !ok {
		t.Error("Check() = false, want explicit budget to override the default")
	}
	if _, budget, _ := b.Usage("tenant1", "user2"); budget != 100 {
		t.Errorf("Usage() budget = %d, want default 100", budget)
	}
}

func TestInMemoryBudget_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewInMemoryBudget(24*time.Hour, 100)
	b.now = func() time.Time { return now }

	if err := b.Record("tenant1", "user1", 150); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := b.Check("tenant1", "user1"); ok {
		t.Fatal("Check() = true within the window")
	}

	now = now.Add(24 * time.Hour)
	if ok, _ := b.Check("tenant1", "user1"); !ok {
		t.Error("Check() = false after the window passed")
	}
	if err := b.Record("tenant1", "user1", 10); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if used, _, _ := b.Usage("tenant1", "user1"); used != 10 {
		t.Errorf("used = %d, want 10 in the new window", used)
	}
}

func TestRedisBudget(t *testing.T) {
	url := os.Getenv("ARANDU_TEST_REDIS_URL")
	if testing.Short() || url == "" {
		t.Skip("set ARANDU_TEST_REDIS_URL to run Redis budget tests")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := t.Context()
	tenant := "test-" + t.Name()
	b := NewRedisBudget(client, time.Minute, 0)
	t.Cleanup(func() {
		client.Del(context.Background(), b.usageKey(tenant, "u1"), b.limitKey(tenant, "u1"))
	})

	if ok, err := b.Check(tenant, "u1"); err != nil || !ok {
		t.Fatalf("Check() without budget = %v, %v; want true", ok, err)
	}

	if err := b.SetBudget(ctx, tenant, "u1", 100); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if err := b.Record(tenant, "u1", 60); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := b.Check(tenant, "u1"); !ok {
		t.Error("Check() = false, want true (60 < 100)")
	}
	if err := b.Record(tenant, "u1", 40); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	used, budget, err := b.Usage(tenant, "u1")
	if err != nil || used != 100 || budget != 100 {
		t.Errorf("Usage() = %d, %d, %v", used, budget, err)
	}
	if ok, _ := b.Check(tenant, "u1"); ok {
		t.Error("Check() = true, want false (100 >= 100)")
	}
	if ttl := client.TTL(ctx, b.usageKey(tenant, "u1")).Val(); ttl <= 0 {
		t.Errorf("usage key TTL = %v, want a window expiry", ttl)
	}
}

func TestRedisBudget_NegativeTokens(t *testing.T) {
	b := NewRedisBudget(nil, time.Minute, 0)
	if err := b.Record("t", "u", -1); err == nil {
		t.Fatal("Record() should return error for negative tokens")
	}
}
