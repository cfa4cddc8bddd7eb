package detector

import (
	"testing"
	"time"

	"volume-sentry/internal/config"
	"volume-sentry/internal/exchange"
	"volume-sentry/internal/market"
)

func defaultStrategy() config.StrategyConfig {
	return config.StrategyConfig{
		ZScoreWindow:    20,
		ZScoreThreshold: 2.0,
		VolumeThreshold: 1.0,
	}
}

// makeBars 生成按15分钟递增的K线，买入量 = 成交量 × buyRatio。
func makeBars(volumes []float64, buyRatio float64) []exchange.Bar {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]exchange.Bar, len(volumes))
	for i, v := range volumes {
		bars[i] = exchange.Bar{
			OpenTime:       start.Add(time.Duration(i) * 15 * time.Minute),
			Open:           1,
			High:           1,
			Low:            1,
			Close:          1,
			Volume:         v,
			TakerBuyVolume: v * buyRatio,
		}
	}
	return bars
}

// alternatingVolumes 生成围绕100交替的成交量序列，保证标准差非零。
func alternatingVolumes(n int) []float64 {
	volumes := make([]float64, n)
	for i := range volumes {
		if i%2 == 0 {
			volumes[i] = 99
		} else {
			volumes[i] = 101
		}
	}
	return volumes
}

func TestDetect_ShortWindowYieldsNoSignals(t *testing.T) {
	for _, n := range []int{0, 1, 5, 19, 20} {
		window := market.NewWindow(makeBars(alternatingVolumes(n), 0.8))
		if signals := Detect(window, defaultStrategy()); len(signals) != 0 {
			t.Errorf("expected no signals for %d bars, got %d", n, len(signals))
		}
	}
}

func TestDetect_ClassifiesSpikeByBuyRatio(t *testing.T) {
	cases := []struct {
		name     string
		buyRatio float64
		want     OrderType
	}{
		{"buy pressure", 0.8, OrderTypeBuy},
		{"sell pressure", 0.2, OrderTypeSell},
		{"mixed", 0.5, OrderTypeMixed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			volumes := alternatingVolumes(25)
			volumes[24] = 1000

			window := market.NewWindow(makeBars(volumes, tc.buyRatio))
			signals := Detect(window, defaultStrategy())
			if len(signals) != 1 {
				t.Fatalf("expected single signal, got %d", len(signals))
			}

			signal := signals[0]
			if signal.OrderType != tc.want {
				t.Errorf("expected order type %s, got %s", tc.want, signal.OrderType)
			}
			if signal.ZScore <= 2 {
				t.Errorf("expected z-score above 2, got %f", signal.ZScore)
			}
			if diff := signal.BuyRatio - tc.buyRatio; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("unexpected buy ratio %f, want %f", signal.BuyRatio, tc.buyRatio)
			}
			if !signal.BarTime.Equal(window.Bars()[24].OpenTime) {
				t.Errorf("signal should point at the spiking bar, got %s", signal.BarTime)
			}
		})
	}
}

func TestDetect_ZeroVarianceExcluded(t *testing.T) {
	// 前24根成交量完全一致，滚动标准差为0，z-score 无定义。
	volumes := make([]float64, 25)
	for i := range volumes {
		volumes[i] = 100
	}
	volumes[24] = 1000

	window := market.NewWindow(makeBars(volumes, 0.8))
	if signals := Detect(window, defaultStrategy()); len(signals) != 0 {
		t.Errorf("expected no signals with zero rolling stddev, got %d", len(signals))
	}
}

func TestDetect_VolumeThresholdFilters(t *testing.T) {
	volumes := alternatingVolumes(25)
	volumes[24] = 1000

	cfg := defaultStrategy()
	cfg.VolumeThreshold = 2000

	window := market.NewWindow(makeBars(volumes, 0.8))
	if signals := Detect(window, cfg); len(signals) != 0 {
		t.Errorf("expected volume threshold to filter signal, got %d", len(signals))
	}
}

func TestDetect_StatsUsePrecedingBarsOnly(t *testing.T) {
	volumes := alternatingVolumes(25)
	volumes[24] = 1000

	window := market.NewWindow(makeBars(volumes, 0.8))
	signals := Detect(window, defaultStrategy())
	if len(signals) != 1 {
		t.Fatalf("expected single signal, got %d", len(signals))
	}

	// 前20根均值100、总体标准差1，尖峰1000的 z-score 应为900。
	if z := signals[0].ZScore; z < 899 || z > 901 {
		t.Errorf("expected z-score close to 900, got %f", z)
	}
}
