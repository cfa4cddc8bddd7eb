package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"volume-sentry/internal/exchange"
)

// BarSource 抽象K线数据来源。
type BarSource interface {
	FetchBars(ctx context.Context, start, end time.Time) ([]exchange.Bar, error)
}

// Window 为按开盘时间严格递增、无重复的K线序列。
// 构造后不再修改；时间上的缺口视为数据质量噪声，容忍但不修补。
type Window struct {
	bars []exchange.Bar
}

// NewWindow 规整输入K线并构造 Window：升序排序、按开盘时间去重。
func NewWindow(bars []exchange.Bar) Window {
	if len(bars) == 0 {
		return Window{}
	}

	sorted := make([]exchange.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OpenTime.Before(sorted[j].OpenTime)
	})

	deduped := sorted[:1]
	for _, bar := range sorted[1:] {
		if bar.OpenTime.Equal(deduped[len(deduped)-1].OpenTime) {
			// 同一开盘时间保留后到的数据。
			deduped[len(deduped)-1] = bar
			continue
		}
		deduped = append(deduped, bar)
	}

	return Window{bars: deduped}
}

// Bars 返回窗口内的全部K线。
func (w Window) Bars() []exchange.Bar {
	return w.bars
}

// Len 返回窗口内K线数量。
func (w Window) Len() int {
	return len(w.bars)
}

// Empty 判断窗口是否为空。
func (w Window) Empty() bool {
	return len(w.bars) == 0
}

// Last 返回最新一根K线。
func (w Window) Last() (exchange.Bar, bool) {
	if len(w.bars) == 0 {
		return exchange.Bar{}, false
	}
	return w.bars[len(w.bars)-1], true
}

// Service 负责每轮刷新行情窗口，轮次之间不做缓存。
type Service struct {
	source BarSource
	logger *zap.Logger
}

// NewService 创建行情窗口服务。
func NewService(source BarSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source: source,
		logger: logger,
	}
}

// Refresh 拉取 [now-lookback, now] 区间的K线并构造窗口。
// 传输失败返回空窗口与错误，由上层跳过本轮。
func (s *Service) Refresh(ctx context.Context, lookback time.Duration) (Window, error) {
	end := time.Now().UTC()
	start := end.Add(-lookback)

	bars, err := s.source.FetchBars(ctx, start, end)
	if err != nil {
		return Window{}, fmt.Errorf("market: 刷新行情窗口失败: %w", err)
	}

	window := NewWindow(bars)
	if window.Len() != len(bars) {
		s.logger.Warn("行情窗口存在乱序或重复K线，已规整",
			zap.Int("fetched", len(bars)),
			zap.Int("kept", window.Len()),
		)
	}

	s.logger.Debug("行情窗口刷新完成",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("bars", window.Len()),
	)

	return window, nil
}
