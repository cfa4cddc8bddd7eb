package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Trade     TradeConfig     `mapstructure:"trade"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name        string      `mapstructure:"name"`
	Symbol      string      `mapstructure:"symbol"`
	Market      string      `mapstructure:"market"`
	Interval    string      `mapstructure:"interval"`
	APIKey      string      `mapstructure:"api_key"`
	APISecret   string      `mapstructure:"api_secret"`
	UseSandbox  bool        `mapstructure:"use_sandbox"`
	DataBaseURL string      `mapstructure:"data_base_url"`
	Retry       RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制交易所调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// StrategyConfig 控制成交量异常检测参数。
type StrategyConfig struct {
	Lookback        time.Duration `mapstructure:"lookback"`
	ZScoreWindow    int           `mapstructure:"zscore_window"`
	ZScoreThreshold float64       `mapstructure:"zscore_threshold"`
	VolumeThreshold float64       `mapstructure:"volume_threshold"`
}

// OrderRetryConfig 控制下单重试策略。
type OrderRetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// TradeConfig 控制开仓与括号单行为。
type TradeConfig struct {
	Leverage          int              `mapstructure:"leverage"`
	StopLossPct       float64          `mapstructure:"stop_loss_pct"`
	TakeProfitPct     float64          `mapstructure:"take_profit_pct"`
	BalanceBuffer     float64          `mapstructure:"balance_buffer"`
	ClosePollInterval time.Duration    `mapstructure:"close_poll_interval"`
	OrderRetry        OrderRetryConfig `mapstructure:"order_retry"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SchedulerConfig 控制主循环节奏。
type SchedulerConfig struct {
	BarInterval time.Duration `mapstructure:"bar_interval"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Symbol == "" {
		err = multierr.Append(err, errors.New("exchange.symbol 不能为空"))
	}
	if c.Exchange.Market == "" {
		err = multierr.Append(err, errors.New("exchange.market 不能为空"))
	}
	if c.Exchange.Interval == "" {
		err = multierr.Append(err, errors.New("exchange.interval 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Strategy.Lookback <= 0 {
		err = multierr.Append(err, errors.New("strategy.lookback 必须大于0"))
	}
	if c.Strategy.ZScoreWindow <= 1 {
		err = multierr.Append(err, errors.New("strategy.zscore_window 必须大于1"))
	}
	if c.Strategy.ZScoreThreshold <= 0 {
		err = multierr.Append(err, errors.New("strategy.zscore_threshold 必须大于0"))
	}
	if c.Strategy.VolumeThreshold < 0 {
		err = multierr.Append(err, errors.New("strategy.volume_threshold 不能为负"))
	}
	if c.Trade.Leverage <= 0 {
		err = multierr.Append(err, errors.New("trade.leverage 必须大于0"))
	}
	if c.Trade.StopLossPct <= 0 || c.Trade.StopLossPct >= 100 {
		err = multierr.Append(err, errors.New("trade.stop_loss_pct 必须位于(0,100)"))
	}
	if c.Trade.TakeProfitPct <= 0 || c.Trade.TakeProfitPct >= 100 {
		err = multierr.Append(err, errors.New("trade.take_profit_pct 必须位于(0,100)"))
	}
	if c.Trade.BalanceBuffer <= 0 || c.Trade.BalanceBuffer > 1 {
		err = multierr.Append(err, errors.New("trade.balance_buffer 必须位于(0,1]"))
	}
	if c.Trade.ClosePollInterval <= 0 {
		err = multierr.Append(err, errors.New("trade.close_poll_interval 必须大于0"))
	}
	if c.Trade.OrderRetry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("trade.order_retry.max_attempts 必须大于0"))
	}
	if c.Trade.OrderRetry.BaseDelay <= 0 {
		err = multierr.Append(err, errors.New("trade.order_retry.base_delay 必须大于0"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于(0,65535]"))
	}
	if c.Scheduler.BarInterval < time.Minute {
		err = multierr.Append(err, errors.New("scheduler.bar_interval 不应小于1分钟"))
	}
	if c.Strategy.ZScoreWindow > 1 && c.Scheduler.BarInterval >= time.Minute &&
		c.Strategy.Lookback < c.Scheduler.BarInterval*time.Duration(c.Strategy.ZScoreWindow+1) {
		err = multierr.Append(err, errors.New("strategy.lookback 不足以覆盖 zscore_window+1 根K线"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
