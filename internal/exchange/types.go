package exchange

import "time"

// OrderSide 表示下单方向。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite 返回相反方向。
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// 合约订单类型，与交易所原生类型一致。
const (
	OrderTypeMarket           = "MARKET"
	OrderTypeStopMarket       = "STOP_MARKET"
	OrderTypeTakeProfitMarket = "TAKE_PROFIT_MARKET"
)

// Bar 代表单根K线，包含主动买入成交量。
type Bar struct {
	OpenTime       time.Time
	Open           float64
	High           float64
	Low            float64
	Close          float64
	Volume         float64
	TakerBuyVolume float64
}

// Precision 描述交易对的数量与价格小数位。
type Precision struct {
	Quantity int32
	Price    int32
}

// OrderSpec 抽象一笔待提交的委托。
// 市价入场单携带 Quantity；括号单携带 StopPrice 并以
// ClosePosition 方式全额平仓，不指定数量。
type OrderSpec struct {
	Side          OrderSide
	Type          string
	Quantity      float64
	StopPrice     float64
	ClosePosition bool
}
