package trade

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"volume-sentry/internal/config"
	"volume-sentry/internal/exchange"
)

// TradeIntent 描述一次开仓意图：方向、数量与括号单价格。
// 三笔委托全部提交或尝试被放弃后即销毁，不做持久化。
type TradeIntent struct {
	Side            exchange.OrderSide
	Quantity        float64
	StopLossPrice   float64
	TakeProfitPrice float64
}

// BuildIntent 根据余额、标记价格与精度计算开仓意图。
// 数量 = 向下取整((余额 × 杠杆 × 缓冲系数) / 标记价格)，
// 缓冲系数为手续费与滑点预留保证金余量。
func BuildIntent(side exchange.OrderSide, balance, markPrice float64, prec exchange.Precision, cfg config.TradeConfig) (TradeIntent, error) {
	if balance <= 0 {
		return TradeIntent{}, errors.New("trade: 余额无效")
	}
	if markPrice <= 0 {
		return TradeIntent{}, errors.New("trade: 标记价格无效")
	}

	mark := decimal.NewFromFloat(markPrice)
	notional := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromInt(int64(cfg.Leverage))).
		Mul(decimal.NewFromFloat(cfg.BalanceBuffer))

	quantity := notional.Div(mark).RoundFloor(prec.Quantity)
	if !quantity.IsPositive() {
		return TradeIntent{}, fmt.Errorf("trade: 计算下单数量无效: %s", quantity)
	}

	hundred := decimal.NewFromInt(100)
	slOffset := mark.Mul(decimal.NewFromFloat(cfg.StopLossPct)).Div(hundred)
	tpOffset := mark.Mul(decimal.NewFromFloat(cfg.TakeProfitPct)).Div(hundred)

	var stopLoss, takeProfit decimal.Decimal
	if side == exchange.OrderSideBuy {
		stopLoss = mark.Sub(slOffset)
		takeProfit = mark.Add(tpOffset)
	} else {
		stopLoss = mark.Add(slOffset)
		takeProfit = mark.Sub(tpOffset)
	}

	return TradeIntent{
		Side:            side,
		Quantity:        quantity.InexactFloat64(),
		StopLossPrice:   stopLoss.Round(prec.Price).InexactFloat64(),
		TakeProfitPrice: takeProfit.Round(prec.Price).InexactFloat64(),
	}, nil
}
