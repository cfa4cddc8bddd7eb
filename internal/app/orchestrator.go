package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"volume-sentry/internal/config"
	"volume-sentry/internal/detector"
	"volume-sentry/internal/exchange"
	"volume-sentry/internal/market"
	"volume-sentry/internal/monitor"
	"volume-sentry/internal/store"
	"volume-sentry/internal/trade"
)

// gateway 将行情客户端与交易客户端组合为交易生命周期所需的网关。
type gateway struct {
	trading *exchange.Client
	data    *exchange.RestClient
}

var _ trade.Gateway = (*gateway)(nil)

func (g *gateway) HasOpenPosition(ctx context.Context) (bool, error) {
	return g.trading.HasOpenPosition(ctx)
}

func (g *gateway) CancelAllOpenOrders(ctx context.Context) error {
	return g.trading.CancelAllOpenOrders(ctx)
}

func (g *gateway) SymbolPrecision(ctx context.Context) (exchange.Precision, error) {
	return g.data.SymbolPrecision(ctx)
}

func (g *gateway) WalletBalance(ctx context.Context) (float64, error) {
	return g.trading.WalletBalance(ctx)
}

func (g *gateway) MarkPrice(ctx context.Context) (float64, error) {
	return g.data.MarkPrice(ctx)
}

func (g *gateway) PlaceOrder(ctx context.Context, spec exchange.OrderSpec) (string, error) {
	return g.trading.PlaceOrder(ctx, spec)
}

type orchestrator struct {
	cfg      *config.Config
	trading  *exchange.Client
	window   *market.Service
	manager  *trade.Manager
	monitor  *monitor.Service
	metrics  *monitor.Metrics
	registry *prometheus.Registry
	logger   *zap.Logger
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, store *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	monitorSvc, err := monitor.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(registry)

	dataClient := exchange.NewRestClient(
		cfg.Exchange.DataBaseURL,
		cfg.Exchange.Symbol,
		cfg.Exchange.Interval,
		logger,
	)

	tradeClient, err := exchange.NewClient(cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化交易客户端失败: %w", err)
	}

	gw := &gateway{trading: tradeClient, data: dataClient}

	return &orchestrator{
		cfg:      cfg,
		trading:  tradeClient,
		window:   market.NewService(dataClient, logger),
		manager:  trade.NewManager(gw, cfg.Trade, logger),
		monitor:  monitorSvc,
		metrics:  metrics,
		registry: registry,
		logger:   logger,
	}, nil
}

// Bootstrap 在启动时设置杠杆。失败仅记录并降级继续，不视为致命。
func (o *orchestrator) Bootstrap(ctx context.Context) {
	if err := o.trading.SetLeverage(ctx, o.cfg.Trade.Leverage); err != nil {
		o.logger.Error("设置杠杆失败，降级继续运行",
			zap.Int("leverage", o.cfg.Trade.Leverage),
			zap.Error(err),
		)
		o.monitor.RecordError(ctx, "设置杠杆失败", err, map[string]interface{}{
			"leverage": o.cfg.Trade.Leverage,
		})
		return
	}

	o.logger.Info("杠杆设置完成",
		zap.String("market", o.trading.Market()),
		zap.Int("leverage", o.cfg.Trade.Leverage),
	)
}

// Cycle 执行一轮检测-执行：刷新窗口、检测异常、按最新信号开仓。
func (o *orchestrator) Cycle(ctx context.Context) error {
	window, err := o.window.Refresh(ctx, o.cfg.Strategy.Lookback)
	if err != nil {
		o.metrics.Cycles.WithLabelValues("fetch_error").Inc()
		o.monitor.RecordError(ctx, "刷新行情窗口失败", err, nil)
		return err
	}

	o.metrics.WindowLen.Set(float64(window.Len()))

	refresh := monitor.WindowRefreshPayload{Bars: window.Len()}
	if last, ok := window.Last(); ok {
		refresh.LastOpen = last.OpenTime
	}
	o.monitor.RecordWindowRefresh(ctx, refresh)

	if window.Empty() {
		o.logger.Warn("未获取到行情数据，跳过本轮")
		o.metrics.Cycles.WithLabelValues("empty").Inc()
		return nil
	}

	signals := detector.Detect(window, o.cfg.Strategy)
	if len(signals) == 0 {
		o.logger.Info("未发现显著成交量异常")
		o.metrics.Cycles.WithLabelValues("no_signal").Inc()
		return nil
	}

	// 只对最新的信号采取行动，更早的异常仅作记录。
	latest := signals[len(signals)-1]
	o.metrics.LastZ.Set(latest.ZScore)
	o.metrics.Signals.WithLabelValues(string(latest.OrderType)).Inc()

	o.logger.Info("检测到显著成交量异常",
		zap.Time("bar_time", latest.BarTime),
		zap.String("order_type", string(latest.OrderType)),
		zap.Float64("z_score", latest.ZScore),
		zap.Float64("buy_ratio", latest.BuyRatio),
	)

	actionable := latest.OrderType == detector.OrderTypeBuy || latest.OrderType == detector.OrderTypeSell
	o.monitor.RecordSignal(ctx, latest, actionable)

	if !actionable {
		o.logger.Info("买卖力量混杂，方向不明，跳过")
		o.metrics.Cycles.WithLabelValues("mixed").Inc()
		return nil
	}

	side := exchange.OrderSideBuy
	if latest.OrderType == detector.OrderTypeSell {
		side = exchange.OrderSideSell
	}

	start := time.Now()
	execErr := o.manager.Execute(ctx, side)
	elapsed := time.Since(start)

	payload := monitor.TradePayload{
		Side:     string(side),
		State:    o.manager.State(),
		Duration: elapsed,
	}
	result := "ok"
	if execErr != nil {
		payload.Err = execErr.Error()
		result = "error"
	}
	o.monitor.RecordTrade(ctx, payload)
	o.metrics.Trades.WithLabelValues(string(side), result).Inc()

	if execErr != nil {
		o.metrics.Cycles.WithLabelValues("trade_error").Inc()
		o.monitor.RecordError(ctx, "执行交易失败", execErr, map[string]interface{}{
			"side": string(side),
		})
		return execErr
	}

	o.metrics.Cycles.WithLabelValues("traded").Inc()
	return nil
}
