// Package bot contains the three trading strategies and the orchestrator
// that owns them. Each bot runs one loop on its own goroutine, mutates only
// its own ledger, and shares the single exchange client injected at
// construction.
package bot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"multibot/internal/domain"
	"multibot/internal/executor"
	"multibot/internal/ledger"
)

// base carries the state every bot variant shares: identity, collaborators,
// and the cooperative run/stop machinery. The stop flag is observed at the
// top of the next loop iteration; in-flight exchange calls are not
// interrupted.
type base struct {
	name     string
	exchange domain.Exchange
	exec     *executor.Executor
	ledger   *ledger.Ledger
	logger   *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	cancel   context.CancelFunc
}

func newBase(name string, exchange domain.Exchange, exec *executor.Executor, logger *zap.Logger) base {
	return base{
		name:     name,
		exchange: exchange,
		exec:     exec,
		ledger:   ledger.New(),
		logger:   logger.Named(name),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *base) Stats() domain.BotStats {
	return b.ledger.Stats(b.name, b.Running())
}

func (b *base) Orders() []domain.Order { return b.ledger.Orders() }

func (b *base) Positions() []domain.Position { return b.ledger.Positions() }

// begin transitions to running and derives the loop context. It fails when
// the bot is already running.
func (b *base) begin(ctx context.Context) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil, fmt.Errorf("%s already running", b.name)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.stopChan = make(chan struct{})
	b.cancel = cancel
	b.logger.Info("Bot started")
	return loopCtx, nil
}

func (b *base) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	if b.cancel != nil {
		b.cancel()
	}
	close(b.stopChan)
	b.logger.Info("Bot stopped")
}

// exitLoop clears the running state when a loop goroutine returns on its
// own, typically on parent context cancellation. stop identifies the loop's
// generation; a bot stopped and restarted since then is left alone.
func (b *base) exitLoop(stop chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running || b.stopChan != stop {
		return
	}
	b.running = false
	if b.cancel != nil {
		b.cancel()
	}
	close(stop)
	b.logger.Info("Bot loop exited")
}

// freeBalance returns the free balance of one asset, zero when the account
// holds none.
func (b *base) freeBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := b.exchange.GetBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("get balances: %w", err)
	}
	return balances[asset].Free, nil
}
