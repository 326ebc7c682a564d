package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

// RuleCache é um read-through cache com TTL sobre o repositório de regras.
// Evita bater no banco a cada evento de documento; o TTL curto faz regras
// editadas entrarem em vigor sem invalidação explícita.
type RuleCache struct {
	repo entity.RuleRepository
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	rules     []entity.NotificationRule
	expiresAt time.Time
}

func NewRuleCache(repo entity.RuleRepository, ttl time.Duration) *RuleCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RuleCache{
		repo:    repo,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *RuleCache) FindEnabled(ctx context.Context, documentType string, event entity.EventType) ([]entity.NotificationRule, error) {
	key := documentType + "|" + string(event)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && time.Now().Before(cached.expiresAt) {
		return cached.rules, nil
	}

	rules, err := c.repo.FindEnabled(ctx, documentType, event)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{rules: rules, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return rules, nil
}

// Invalidate limpa tudo (chamado quando regras mudam)
func (c *RuleCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
