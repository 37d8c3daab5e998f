package commands

import (
	"context"
	"fmt"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/marketdata"
	"github.com/wonny/rotor/internal/rebalance"
	"github.com/wonny/rotor/internal/screener"
	"github.com/wonny/rotor/internal/store"
	"github.com/wonny/rotor/internal/strategyconfig"
	"github.com/wonny/rotor/pkg/config"
	"github.com/wonny/rotor/pkg/database"
	"github.com/wonny/rotor/pkg/httputil"
	"github.com/wonny/rotor/pkg/logger"
	"github.com/wonny/rotor/pkg/redis"
)

// liveDeps bundles everything the live rebalance path needs.
// api/cycle/scheduler가 모두 같은 배선을 공유함.
type liveDeps struct {
	Cfg        *config.Config
	Log        *logger.Logger
	DB         *database.DB
	Redis      *redis.Client
	Strategy   *strategyconfig.Config
	ConfigHash string
	Settings   *contracts.Settings
	Snapshots  *store.PGSnapshots
	SettingsDB *store.PGSettings
	Rankings   *store.PGRankings
	Prices     *store.PGPrices
	Guard      *store.PGRunGuard
	Finviz     *screener.Client
	Yahoo      *marketdata.YahooClient
	Engine     *rebalance.Engine
}

// Close releases all held connections
func (d *liveDeps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// initLiveDeps wires the live rebalance engine: config, logger, database,
// redis cache, strategy YAML, stores, external clients, engine.
func initLiveDeps(ctx context.Context) (*liveDeps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (optional; disabled면 no-op 캐시)
	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	quoteCache := redis.NewCache(rdb, "rotor")

	// 5. Load the strategy config and stamp hash
	strategy, _, err := strategyconfig.Load(cfg.StrategyFile)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("load strategy config %s: %w", cfg.StrategyFile, err)
	}
	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("hash strategy config: %w", err)
	}

	// 6. Create repositories
	snapshots := store.NewPGSnapshots(db.Pool)
	settingsDB := store.NewPGSettings(db.Pool)
	histRankings := store.NewPGRankings(db.Pool)
	histPrices := store.NewPGPrices(db.Pool)
	guard := store.NewPGRunGuard(db.Pool)

	// 7. Load runtime settings (row 없으면 전략 기본값)
	settings, err := settingsDB.Load(ctx)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	// 8. Create external API clients
	screenerHTTP := httputil.New(log, cfg.Screener.Timeout).
		WithUserAgent(cfg.Screener.UserAgent).
		WithRateLimit(cfg.Screener.RateLimit)
	finviz := screener.NewClient(screenerHTTP, log, strategy.Screener.URL).
		WithBaseURL(cfg.Screener.BaseURL)

	marketHTTP := httputil.New(log, cfg.Market.Timeout).
		WithRateLimit(cfg.Market.RateLimit)
	yahoo := marketdata.NewYahooClient(marketHTTP, quoteCache, cfg.Market.QuoteCacheTTL, log).
		WithBaseURL(cfg.Market.BaseURL)

	// 9. Create rebalance engine
	engine := rebalance.New(
		rebalance.Config{
			Settings:   settings,
			Tiers:      strategy.Tiers,
			ConfigHash: hash,
			Mode:       rebalance.ModeLive,
		},
		finviz,
		yahoo,
		snapshots,
		guard,
		log,
	)

	return &liveDeps{
		Cfg:        cfg,
		Log:        log,
		DB:         db,
		Redis:      rdb,
		Strategy:   strategy,
		ConfigHash: hash,
		Settings:   settings,
		Snapshots:  snapshots,
		SettingsDB: settingsDB,
		Rankings:   histRankings,
		Prices:     histPrices,
		Guard:      guard,
		Finviz:     finviz,
		Yahoo:      yahoo,
		Engine:     engine,
	}, nil
}
