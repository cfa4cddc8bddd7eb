package app

import (
	"context"

	"go.uber.org/zap"

	"volume-sentry/internal/config"
	"volume-sentry/internal/scheduler"
	"volume-sentry/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 初始化各组件并进入调度循环，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.String("symbol", a.cfg.Exchange.Symbol),
		zap.String("interval", a.cfg.Exchange.Interval),
	)

	orch, err := newOrchestrator(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}

	orch.Bootstrap(ctx)

	if a.cfg.Monitor.Enabled {
		startMonitorServer(ctx, orch.monitor, orch.registry, a.cfg.Monitor.Port, a.logger)
	}

	loop := scheduler.NewLoop(a.cfg.Scheduler.BarInterval, orch.Cycle, a.logger)
	return loop.Run(ctx)
}
