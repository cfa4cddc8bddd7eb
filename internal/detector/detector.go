package detector

import (
	talib "github.com/markcheno/go-talib"

	"volume-sentry/internal/config"
	"volume-sentry/internal/exchange"
	"volume-sentry/internal/market"
)

// 买卖比例分类阈值。
const (
	buyRatioBuyMin  = 0.6
	buyRatioSellMax = 0.4
)

// Detect 对行情窗口做滚动 z-score 成交量异常检测。
// 纯函数：不修改输入，窗口不足时返回空序列而非错误。
// 调用方只对结果中最后一个信号采取行动。
func Detect(window market.Window, cfg config.StrategyConfig) []Signal {
	bars := window.Bars()
	period := cfg.ZScoreWindow
	if period <= 1 {
		period = 20
	}

	// 每根K线的统计取其之前 period 根，故至少需要 period+1 根。
	if len(bars) < period+1 {
		return nil
	}

	stats := rollingStats(bars, period)

	var signals []Signal
	for i, bar := range bars {
		stat := stats[i]
		if !stat.Valid {
			continue
		}
		if stat.ZScore <= cfg.ZScoreThreshold || bar.Volume <= cfg.VolumeThreshold {
			continue
		}

		ratio := bar.TakerBuyVolume / bar.Volume
		signals = append(signals, Signal{
			BarTime:   bar.OpenTime,
			OrderType: classify(ratio),
			BuyRatio:  ratio,
			ZScore:    stat.ZScore,
			Volume:    bar.Volume,
		})
	}

	return signals
}

// rollingStats 计算每根K线相对其前 period 根成交量的均值、标准差与 z-score。
// 前 period 根K线没有完整窗口，标准差为0的K线同样标记为无效。
func rollingStats(bars []exchange.Bar, period int) []VolumeStat {
	volumes := make([]float64, len(bars))
	for i, bar := range bars {
		volumes[i] = bar.Volume
	}

	means := talib.Sma(volumes, period)
	stds := talib.StdDev(volumes, period, 1)

	stats := make([]VolumeStat, len(bars))
	for i := period; i < len(bars); i++ {
		mean := means[i-1]
		std := stds[i-1]
		if std == 0 {
			continue
		}
		stats[i] = VolumeStat{
			Mean:   mean,
			StdDev: std,
			ZScore: (volumes[i] - mean) / std,
			Valid:  true,
		}
	}

	return stats
}

func classify(buyRatio float64) OrderType {
	switch {
	case buyRatio > buyRatioBuyMin:
		return OrderTypeBuy
	case buyRatio < buyRatioSellMax:
		return OrderTypeSell
	default:
		return OrderTypeMixed
	}
}
