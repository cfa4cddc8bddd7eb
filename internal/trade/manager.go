package trade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"volume-sentry/internal/config"
	"volume-sentry/internal/exchange"
)

// Gateway 抽象执行端交易所，便于替换为测试替身。
// 交易所账户状态是唯一事实来源，每次都重新查询。
type Gateway interface {
	HasOpenPosition(ctx context.Context) (bool, error)
	CancelAllOpenOrders(ctx context.Context) error
	SymbolPrecision(ctx context.Context) (exchange.Precision, error)
	WalletBalance(ctx context.Context) (float64, error)
	MarkPrice(ctx context.Context) (float64, error)
	PlaceOrder(ctx context.Context, spec exchange.OrderSpec) (string, error)
}

// State 表示交易生命周期管理器的当前阶段。
type State string

const (
	StateIdle            State = "idle"
	StatePlacing         State = "placing"
	StateAwaitingClosure State = "awaiting_closure"
)

// Manager 按信号驱动一次完整的交易生命周期：
// 前置检查、定量定价、括号单提交、阻塞等待平仓与收尾清理。
type Manager struct {
	gateway Gateway
	cfg     config.TradeConfig
	retry   RetryPolicy
	logger  *zap.Logger

	mu    sync.Mutex
	state State
}

// NewManager 创建交易生命周期管理器。
func NewManager(gateway Gateway, cfg config.TradeConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		gateway: gateway,
		cfg:     cfg,
		retry:   NewRetryPolicy(cfg.OrderRetry),
		logger:  logger,
		state:   StateIdle,
	}
}

// State 返回当前阶段。
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Execute 以给定方向尝试开仓，直到持仓平掉才返回。
// 核心不变量：同一时刻最多一笔持仓，已有持仓时静默放弃。
func (m *Manager) Execute(ctx context.Context, side exchange.OrderSide) error {
	m.setState(StatePlacing)
	defer m.setState(StateIdle)

	open, err := m.gateway.HasOpenPosition(ctx)
	if err != nil {
		return fmt.Errorf("trade: 开仓前置检查失败: %w", err)
	}
	if open {
		m.logger.Info("已有持仓，跳过本次信号")
		return nil
	}

	// 清理残留挂单属于收尾动作，失败不阻断开仓。
	if err := m.gateway.CancelAllOpenOrders(ctx); err != nil {
		m.logger.Warn("清理残留挂单失败", zap.Error(err))
	}

	prec, err := m.gateway.SymbolPrecision(ctx)
	if err != nil {
		return fmt.Errorf("trade: 获取精度失败，放弃本次开仓: %w", err)
	}

	var balance, markPrice float64
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		v, err := m.gateway.WalletBalance(groupCtx)
		if err != nil {
			return err
		}
		balance = v
		return nil
	})
	group.Go(func() error {
		v, err := m.gateway.MarkPrice(groupCtx)
		if err != nil {
			return err
		}
		markPrice = v
		return nil
	})
	if err := group.Wait(); err != nil {
		return fmt.Errorf("trade: 获取账户与价格失败: %w", err)
	}

	intent, err := BuildIntent(side, balance, markPrice, prec, m.cfg)
	if err != nil {
		return err
	}

	m.logger.Info("准备开仓",
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity),
		zap.Float64("mark_price", markPrice),
		zap.Float64("stop_loss", intent.StopLossPrice),
		zap.Float64("take_profit", intent.TakeProfitPrice),
	)

	entryID, ok := m.retry.Place(ctx, m.logger, "entry_market", func() (string, error) {
		return m.gateway.PlaceOrder(ctx, exchange.OrderSpec{
			Side:     intent.Side,
			Type:     exchange.OrderTypeMarket,
			Quantity: intent.Quantity,
		})
	})
	if !ok {
		return fmt.Errorf("trade: 入场市价单重试后仍失败，放弃本次开仓")
	}
	m.logger.Info("入场市价单已提交", zap.String("order_id", entryID))

	opposite := intent.Side.Opposite()

	// 括号单以 closePosition 全额平仓，容忍仓位大小漂移。
	// 入场已成交后括号腿失败会留下裸仓位，这里只告警不自动补救。
	if _, ok := m.retry.Place(ctx, m.logger, "stop_loss", func() (string, error) {
		return m.gateway.PlaceOrder(ctx, exchange.OrderSpec{
			Side:          opposite,
			Type:          exchange.OrderTypeStopMarket,
			StopPrice:     intent.StopLossPrice,
			ClosePosition: true,
		})
	}); !ok {
		m.logger.Error("止损委托提交失败，当前持仓缺少止损保护",
			zap.Float64("stop_loss", intent.StopLossPrice),
		)
	}

	if _, ok := m.retry.Place(ctx, m.logger, "take_profit", func() (string, error) {
		return m.gateway.PlaceOrder(ctx, exchange.OrderSpec{
			Side:          opposite,
			Type:          exchange.OrderTypeTakeProfitMarket,
			StopPrice:     intent.TakeProfitPrice,
			ClosePosition: true,
		})
	}); !ok {
		m.logger.Error("止盈委托提交失败，当前持仓缺少止盈腿",
			zap.Float64("take_profit", intent.TakeProfitPrice),
		)
	}

	if err := m.awaitClosure(ctx); err != nil {
		return err
	}

	m.logger.Info("持仓已平，清理剩余括号单")
	if err := m.gateway.CancelAllOpenOrders(ctx); err != nil {
		m.logger.Warn("平仓后清理挂单失败", zap.Error(err))
	}

	return nil
}

// awaitClosure 按固定间隔轮询持仓状态，直到平仓。
// 刻意不设超时：仓位不平则调度循环一直阻塞，仅 ctx 取消可中断。
func (m *Manager) awaitClosure(ctx context.Context) error {
	m.setState(StateAwaitingClosure)

	interval := m.cfg.ClosePollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		open, err := m.gateway.HasOpenPosition(ctx)
		if err != nil {
			m.logger.Warn("轮询持仓状态失败", zap.Error(err))
		} else if !open {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
