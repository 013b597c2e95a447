package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"multibot/internal/domain"
)

// DefaultRuleTTL is how long a cached trading rule stays fresh.
const DefaultRuleTTL = 5 * time.Minute

type ruleEntry struct {
	rule      *domain.TradingRule
	fetchedAt time.Time
}

// RuleCache caches per-symbol trading rules with a TTL. It is shared by all
// bots and safe for concurrent use. A fetch failure surfaces as
// domain.ErrRuleUnavailable; callers must skip the trade rather than fall
// back to a default rule.
type RuleCache struct {
	exchange domain.Exchange
	ttl      time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[string]ruleEntry
}

func NewRuleCache(exchange domain.Exchange, ttl time.Duration, logger *zap.Logger) *RuleCache {
	if ttl <= 0 {
		ttl = DefaultRuleTTL
	}
	return &RuleCache{
		exchange: exchange,
		ttl:      ttl,
		logger:   logger,
		entries:  make(map[string]ruleEntry),
	}
}

// Get returns the trading rule for symbol, querying the venue on a miss,
// staleness, or forced refresh. The lock is not held across the network
// call; concurrent misses on the same symbol may fetch twice, the last write
// wins.
func (c *RuleCache) Get(ctx context.Context, symbol string, force bool) (*domain.TradingRule, error) {
	if !force {
		c.mu.RLock()
		entry, ok := c.entries[symbol]
		c.mu.RUnlock()
		if ok && time.Since(entry.fetchedAt) < c.ttl {
			return entry.rule, nil
		}
	}

	rule, err := c.exchange.GetTradingRule(ctx, symbol)
	if err != nil {
		c.logger.Error("Failed to fetch trading rule",
			zap.String("symbol", symbol),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrRuleUnavailable)
	}

	c.mu.Lock()
	c.entries[symbol] = ruleEntry{rule: rule, fetchedAt: time.Now()}
	c.mu.Unlock()

	return rule, nil
}
