package trade

import (
	"testing"

	"volume-sentry/internal/config"
	"volume-sentry/internal/exchange"
)

func defaultTradeConfig() config.TradeConfig {
	return config.TradeConfig{
		Leverage:      11,
		StopLossPct:   3.41,
		TakeProfitPct: 3.5,
		BalanceBuffer: 0.98,
	}
}

func TestBuildIntent_BracketPrices(t *testing.T) {
	prec := exchange.Precision{Quantity: 1, Price: 2}

	buy, err := BuildIntent(exchange.OrderSideBuy, 1000, 100, prec, defaultTradeConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buy.StopLossPrice != 96.59 {
		t.Errorf("buy stop loss: got %f, want 96.59", buy.StopLossPrice)
	}
	if buy.TakeProfitPrice != 103.5 {
		t.Errorf("buy take profit: got %f, want 103.5", buy.TakeProfitPrice)
	}

	sell, err := BuildIntent(exchange.OrderSideSell, 1000, 100, prec, defaultTradeConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sell.StopLossPrice != 103.41 {
		t.Errorf("sell stop loss: got %f, want 103.41", sell.StopLossPrice)
	}
	if sell.TakeProfitPrice != 96.5 {
		t.Errorf("sell take profit: got %f, want 96.5", sell.TakeProfitPrice)
	}
}

func TestBuildIntent_QuantityFloorsToPrecision(t *testing.T) {
	cfg := config.TradeConfig{Leverage: 1, BalanceBuffer: 0.98, StopLossPct: 3.41, TakeProfitPct: 3.5}
	prec := exchange.Precision{Quantity: 2, Price: 2}

	// (100 × 1 × 0.98) / 3 = 32.666...，应向下取整而非四舍五入。
	intent, err := BuildIntent(exchange.OrderSideBuy, 100, 3, prec, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Quantity != 32.66 {
		t.Errorf("quantity: got %f, want 32.66", intent.Quantity)
	}
}

func TestBuildIntent_QuantityScaling(t *testing.T) {
	prec := exchange.Precision{Quantity: 4, Price: 2}
	cfg := defaultTradeConfig()

	base, err := BuildIntent(exchange.OrderSideBuy, 100, 100, prec, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doubleBalance, _ := BuildIntent(exchange.OrderSideBuy, 200, 100, prec, cfg)
	if doubleBalance.Quantity <= base.Quantity {
		t.Errorf("quantity should grow with balance: %f vs %f", doubleBalance.Quantity, base.Quantity)
	}

	higherLeverage := cfg
	higherLeverage.Leverage = 22
	doubleLeverage, _ := BuildIntent(exchange.OrderSideBuy, 100, 100, prec, higherLeverage)
	if doubleLeverage.Quantity <= base.Quantity {
		t.Errorf("quantity should grow with leverage: %f vs %f", doubleLeverage.Quantity, base.Quantity)
	}

	higherMark, _ := BuildIntent(exchange.OrderSideBuy, 100, 200, prec, cfg)
	if higherMark.Quantity >= base.Quantity {
		t.Errorf("quantity should shrink as mark price rises: %f vs %f", higherMark.Quantity, base.Quantity)
	}
}

func TestBuildIntent_RejectsInvalidInputs(t *testing.T) {
	prec := exchange.Precision{Quantity: 1, Price: 2}

	if _, err := BuildIntent(exchange.OrderSideBuy, 0, 100, prec, defaultTradeConfig()); err == nil {
		t.Error("expected error for zero balance")
	}
	if _, err := BuildIntent(exchange.OrderSideBuy, 1000, 0, prec, defaultTradeConfig()); err == nil {
		t.Error("expected error for zero mark price")
	}

	// 余额过小，数量向下取整后为0。
	cfg := config.TradeConfig{Leverage: 1, BalanceBuffer: 0.98, StopLossPct: 3.41, TakeProfitPct: 3.5}
	if _, err := BuildIntent(exchange.OrderSideBuy, 0.1, 100000, exchange.Precision{Quantity: 0, Price: 2}, cfg); err == nil {
		t.Error("expected error when quantity rounds to zero")
	}
}
