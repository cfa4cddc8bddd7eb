package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"volume-sentry/internal/config"
)

type futuresClient interface {
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error)
	CreateOrder(symbol string, typeVar string, side string, amount float64, options ...ccxt.CreateOrderOptions) (ccxt.Order, error)
	CancelAllOrders(options ...ccxt.CancelAllOrdersOptions) ([]ccxt.Order, error)
	SetLeverage(leverage int64, options ...ccxt.SetLeverageOptions) (map[string]interface{}, error)
	LoadMarkets(params ...interface{}) (map[string]ccxt.MarketInterface, error)
}

// Client 负责账户、持仓与委托操作，并实现统一重试机制。
type Client struct {
	cfg    config.ExchangeConfig
	logger *zap.Logger
	client futuresClient
	market string

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 构造 Binance USDⓈ-M 交易客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		client: ex,
		market: cfg.Market,
	}, nil
}

// Market 返回 ccxt 统一格式的交易对。
func (c *Client) Market() string {
	return c.market
}

// HasOpenPosition 查询当前交易对是否存在非零持仓。
// 每次调用都重新查询交易所，账户状态不做本地缓存。
func (c *Client) HasOpenPosition(ctx context.Context) (bool, error) {
	var open bool

	err := c.callWithRetry(ctx, "fetch_positions", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		positions, err := c.client.FetchPositions()
		if err != nil {
			return err
		}

		open = false
		for _, pos := range positions {
			symbol := derefString(pos.Symbol)
			if symbol == "" || !strings.EqualFold(symbol, c.market) {
				continue
			}
			if derefFloat(pos.Contracts) != 0 {
				open = true
				break
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("exchange: 查询持仓失败: %w", err)
	}

	return open, nil
}

// CancelAllOpenOrders 撤销交易对的全部挂单，无挂单时也可安全调用。
func (c *Client) CancelAllOpenOrders(ctx context.Context) error {
	err := c.callWithRetry(ctx, "cancel_all_orders", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		_, err := c.client.CancelAllOrders(ccxt.WithCancelAllOrdersSymbol(c.market))
		return err
	})
	if err != nil {
		return fmt.Errorf("exchange: 撤销挂单失败: %w", err)
	}
	return nil
}

// WalletBalance 返回账户钱包余额（USDT）。
func (c *Client) WalletBalance(ctx context.Context) (float64, error) {
	var balance float64

	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		balances, err := c.client.FetchBalance()
		if err != nil {
			return err
		}

		balance = 0
		if balances.Total != nil {
			for _, code := range []string{"USDT", "USDC", "USD"} {
				if total, ok := balances.Total[code]; ok && total != nil && *total > 0 {
					balance = *total
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: 获取余额失败: %w", err)
	}

	if balance <= 0 {
		return 0, errors.New("exchange: 钱包余额无效")
	}

	return balance, nil
}

// PlaceOrder 提交单笔委托并返回交易所订单号。
// 本方法不做重试，重试策略由上层的下单流程控制。
func (c *Client) PlaceOrder(ctx context.Context, spec OrderSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return "", err
	}

	params := map[string]interface{}{}
	amount := spec.Quantity
	if spec.ClosePosition {
		params["stopPrice"] = spec.StopPrice
		params["closePosition"] = true
		amount = 0
	}

	order, err := c.client.CreateOrder(
		c.market,
		spec.Type,
		strings.ToLower(string(spec.Side)),
		amount,
		ccxt.WithCreateOrderParams(params),
	)
	if err != nil {
		return "", fmt.Errorf("exchange: 提交 %s 委托失败: %w", spec.Type, err)
	}

	return derefString(order.Id), nil
}

// SetLeverage 设置交易对杠杆，启动时调用一次。
func (c *Client) SetLeverage(ctx context.Context, leverage int) error {
	err := c.callWithRetry(ctx, "set_leverage", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		_, err := c.client.SetLeverage(int64(leverage), ccxt.WithSetLeverageSymbol(c.market))
		return err
	})
	if err != nil {
		return fmt.Errorf("exchange: 设置杠杆失败: %w", err)
	}
	return nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	if c.marketsLoaded {
		return nil
	}

	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.client.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.String("market", c.market))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}

	if IsRetryable(err) {
		return err, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
