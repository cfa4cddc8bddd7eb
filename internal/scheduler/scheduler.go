package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// CycleFunc 为单轮检测-执行逻辑。
type CycleFunc func(ctx context.Context) error

// Loop 以K线收盘边界为节奏驱动检测-执行循环。
// 周期间无并发：一轮内的阻塞等待会顺延下一轮的开始。
type Loop struct {
	interval time.Duration
	cycle    CycleFunc
	logger   *zap.Logger
}

// NewLoop 创建调度循环。
func NewLoop(interval time.Duration, cycle CycleFunc, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		interval: interval,
		cycle:    cycle,
		logger:   logger,
	}
}

// NextBoundary 返回 now 之后最近的 UTC 周期边界。
// 例如 interval=15m 时，10:07:30 的下一个边界为 10:15:00。
func NextBoundary(now time.Time, interval time.Duration) time.Time {
	return now.UTC().Truncate(interval).Add(interval)
}

// Run 不断执行周期直到 ctx 取消。
// 任何一轮的错误或 panic 都被隔离记录，循环本身永不终止。
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		l.runCycle(ctx)

		next := NextBoundary(time.Now(), l.interval)
		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Millisecond
		}

		l.logger.Info("等待下一根K线收盘",
			zap.Time("next", next),
			zap.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Loop) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("周期执行发生 panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := l.cycle(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		l.logger.Error("周期执行失败", zap.Error(err))
	}
}
