// Connectivity check: verifies API credentials, prints account balances and
// the trading rule for a symbol. Run before pointing the bots at an account.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"multibot/internal/infrastructure/exchange"
)

func main() {
	_ = godotenv.Load()

	symbol := "BTCUSDT"
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	adapter := exchange.NewBinanceAdapter(
		os.Getenv("BINANCE_API_KEY"),
		os.Getenv("BINANCE_API_SECRET"),
		"",
		rate.NewLimiter(10, 20),
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	price, err := adapter.GetPrice(ctx, symbol)
	if err != nil {
		log.Fatal("Price check failed", zap.String("symbol", symbol), zap.Error(err))
	}
	fmt.Printf("%s price: %.8f\n", symbol, price)

	rule, err := adapter.GetTradingRule(ctx, symbol)
	if err != nil {
		log.Fatal("Trading rule check failed", zap.String("symbol", symbol), zap.Error(err))
	}
	fmt.Printf("%s rule: step=%s tick=%s minNotional=%s\n",
		symbol, rule.StepSize, rule.TickSize, rule.MinNotional)

	balances, err := adapter.GetBalances(ctx)
	if err != nil {
		log.Fatal("Balance check failed (check API key permissions)", zap.Error(err))
	}
	if len(balances) == 0 {
		fmt.Println("Account holds no balances")
	}
	for asset, balance := range balances {
		fmt.Printf("%-8s free=%.8f locked=%.8f\n", asset, balance.Free, balance.Locked)
	}

	fmt.Println("Exchange connectivity OK")
}
