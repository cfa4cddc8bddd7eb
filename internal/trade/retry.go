package trade

import (
	"context"
	"time"

	"go.uber.org/zap"

	"volume-sentry/internal/config"
)

// RetryPolicy 将退避策略与调用点解耦：固定次数上限，
// 第 n 次失败后等待 BaseDelay·2^(n-1)，最后一次失败不再等待。
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewRetryPolicy 从配置构造下单重试策略。
func NewRetryPolicy(cfg config.OrderRetryConfig) RetryPolicy {
	policy := RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	return policy
}

// Backoff 返回第 attempt 次失败后的等待时长。
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

// Place 依次尝试 fn 至多 MaxAttempts 次。
// 耗尽后返回 ok=false，调用方必须把缺失的订单号视为下单失败，
// 补偿动作由调用方自行决定。
func (p RetryPolicy) Place(ctx context.Context, logger *zap.Logger, operation string, fn func() (string, error)) (string, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", false
		}

		orderID, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("下单重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
				)
			}
			return orderID, true
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Backoff(attempt)
		logger.Warn("下单失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false
		case <-timer.C:
		}
	}

	logger.Error("下单重试次数耗尽",
		zap.String("operation", operation),
		zap.Int("attempts", p.MaxAttempts),
		zap.Error(lastErr),
	)
	return "", false
}
