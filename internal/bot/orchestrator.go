package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"multibot/internal/domain"
)

// Orchestrator owns the bot registry and the shared exchange client. It
// starts and stops bots with per-bot failure isolation and aggregates
// statistics and order history without ever mutating a bot's own lists.
// Bot loops run on the orchestrator's own lifecycle context, never on a
// caller's; an HTTP request context dies with the request.
type Orchestrator struct {
	baseCtx  context.Context
	exchange domain.Exchange
	logger   *zap.Logger

	mu    sync.RWMutex
	bots  map[string]domain.Bot
	names []string // registration order
}

func NewOrchestrator(ctx context.Context, exchange domain.Exchange, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		baseCtx:  ctx,
		exchange: exchange,
		logger:   logger.Named("Orchestrator"),
		bots:     make(map[string]domain.Bot),
	}
}

func (o *Orchestrator) Register(bot domain.Bot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.bots[bot.Name()]; !exists {
		o.names = append(o.names, bot.Name())
	}
	o.bots[bot.Name()] = bot
	o.logger.Info("Bot registered", zap.String("bot", bot.Name()))
}

// StartAll starts every registered bot. One bot's failure is logged and does
// not abort the others.
func (o *Orchestrator) StartAll() {
	for _, bot := range o.snapshot() {
		if err := bot.Start(o.baseCtx); err != nil {
			o.logger.Error("Failed to start bot",
				zap.String("bot", bot.Name()),
				zap.Error(err))
			continue
		}
		o.logger.Info("Started bot", zap.String("bot", bot.Name()))
	}
}

func (o *Orchestrator) StopAll() {
	for _, bot := range o.snapshot() {
		bot.Stop()
		o.logger.Info("Stopped bot", zap.String("bot", bot.Name()))
	}
}

func (o *Orchestrator) StartOne(name string) error {
	bot, err := o.get(name)
	if err != nil {
		return err
	}
	return bot.Start(o.baseCtx)
}

func (o *Orchestrator) StopOne(name string) error {
	bot, err := o.get(name)
	if err != nil {
		return err
	}
	bot.Stop()
	return nil
}

// Stats collects every bot's derived statistics. A failure for one bot is
// reported as an error marker in that bot's entry; the others are unaffected.
func (o *Orchestrator) Stats() map[string]domain.BotStats {
	stats := make(map[string]domain.BotStats)
	for _, bot := range o.snapshot() {
		stats[bot.Name()] = collectStats(bot)
	}
	return stats
}

// collectStats isolates one bot's stats computation so a panicking bot
// cannot take aggregation down with it.
func collectStats(bot domain.Bot) (stats domain.BotStats) {
	defer func() {
		if r := recover(); r != nil {
			stats = domain.BotStats{Name: bot.Name(), Error: fmt.Sprintf("%v", r)}
		}
	}()
	return bot.Stats()
}

// Orders merges every bot's order history, newest first.
func (o *Orchestrator) Orders() []domain.Order {
	var all []domain.Order
	for _, bot := range o.snapshot() {
		all = append(all, bot.Orders()...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Time.After(all[j].Time)
	})
	return all
}

// RecentOrders returns at most n of the newest orders across all bots.
func (o *Orchestrator) RecentOrders(n int) []domain.Order {
	all := o.Orders()
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Balances reads the shared account's balances.
func (o *Orchestrator) Balances(ctx context.Context) (map[string]domain.Balance, error) {
	return o.exchange.GetBalances(ctx)
}

func (o *Orchestrator) Health() domain.Health {
	health := domain.Health{}
	for _, bot := range o.snapshot() {
		health.TotalBots++
		if bot.Running() {
			health.RunningBots++
		}
	}
	return health
}

// snapshot returns the bots in registration order without holding the lock
// during the callers' bot calls.
func (o *Orchestrator) snapshot() []domain.Bot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	bots := make([]domain.Bot, 0, len(o.names))
	for _, name := range o.names {
		bots = append(bots, o.bots[name])
	}
	return bots
}

func (o *Orchestrator) get(name string) (domain.Bot, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	bot, ok := o.bots[name]
	if !ok {
		return nil, fmt.Errorf("bot not found: %s", name)
	}
	return bot, nil
}
