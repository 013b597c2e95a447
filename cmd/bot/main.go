package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"multibot/internal/bot"
	"multibot/internal/executor"
	"multibot/internal/infrastructure/exchange"
	"multibot/internal/infrastructure/logger"
	"multibot/internal/web"
)

const testnetWSBaseURL = "wss://stream.testnet.binance.vision"

type Config struct {
	Exchange struct {
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		WSBaseURL string `yaml:"ws_base_url"`
		Testnet   bool   `yaml:"testnet"`
		// Requests per second shared by every bot against the REST API.
		RateLimit float64 `yaml:"rate_limit"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"exchange"`
	Executor   executor.Config `yaml:"executor"`
	RuleTTLSec int             `yaml:"rule_ttl_sec"`
	Bots       BotConfigs      `yaml:"bots"`
	Logging    logger.Config   `yaml:"logging"`
	Server   struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

type BotConfigs struct {
	Scalping   bot.ScalpingConfig   `yaml:"scalping"`
	NewListing bot.NewListingConfig `yaml:"new_listing"`
	HighVolume bot.HighVolumeConfig `yaml:"high_volume"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Exchange.RateLimit = 10
	cfg.Exchange.RateBurst = 20
	cfg.RuleTTLSec = int(executor.DefaultRuleTTL / time.Second)
	cfg.Bots.Scalping = bot.DefaultScalpingConfig()
	cfg.Bots.NewListing = bot.DefaultNewListingConfig()
	cfg.Bots.HighVolume = bot.DefaultHighVolumeConfig()
	cfg.Logging.Level = "info"
	cfg.Server.Port = 8080

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	// Credentials from the environment take precedence over the file.
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	return cfg, nil
}

// publicConfig is the portion of the configuration the dashboard may see.
// Credentials never leave the process.
func publicConfig(cfg *Config) map[string]any {
	return map[string]any{
		"testnet":      cfg.Exchange.Testnet,
		"rule_ttl_sec": cfg.RuleTTLSec,
		"executor":     cfg.Executor,
		"bots":         cfg.Bots,
		"server":       cfg.Server,
	}
}

func main() {
	// .env is optional; real deployments inject the variables directly.
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Exchange.Testnet {
		binance.UseTestnet = true
		if cfg.Exchange.WSBaseURL == "" {
			cfg.Exchange.WSBaseURL = testnetWSBaseURL
		}
		log.Info("Using Binance testnet")
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Exchange.RateLimit), cfg.Exchange.RateBurst)
	adapter := exchange.NewBinanceAdapter(
		cfg.Exchange.APIKey,
		cfg.Exchange.APISecret,
		cfg.Exchange.WSBaseURL,
		limiter,
		log.Named("Exchange"),
	)

	rules := executor.NewRuleCache(adapter, time.Duration(cfg.RuleTTLSec)*time.Second, log.Named("RuleCache"))
	exec := executor.New(adapter, rules, log.Named("Executor"), cfg.Executor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator := bot.NewOrchestrator(ctx, adapter, log)
	orchestrator.Register(bot.NewScalpingBot(cfg.Bots.Scalping, adapter, exec, log))
	orchestrator.Register(bot.NewNewListingBot(cfg.Bots.NewListing, adapter, exec, log))
	orchestrator.Register(bot.NewHighVolumeBot(cfg.Bots.HighVolume, adapter, exec, log))

	orchestrator.StartAll()

	server := web.NewServer(cfg.Server.Port, orchestrator, publicConfig(cfg), log.Named("Web"))
	go func() {
		if err := server.Start(ctx); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	orchestrator.StopAll()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
