package detector

import "time"

// OrderType 表示异常K线的方向分类。
type OrderType string

const (
	OrderTypeBuy   OrderType = "BUY"
	OrderTypeSell  OrderType = "SELL"
	OrderTypeMixed OrderType = "MIXED"
)

// Signal 描述一根成交量异常K线，仅在单个调度周期内有效。
type Signal struct {
	BarTime   time.Time `json:"bar_time"`
	OrderType OrderType `json:"order_type"`
	BuyRatio  float64   `json:"buy_ratio"`
	ZScore    float64   `json:"z_score"`
	Volume    float64   `json:"volume"`
}

// VolumeStat 为单根K线的滚动成交量统计，仅派生使用，不持久化。
type VolumeStat struct {
	Mean   float64
	StdDev float64
	ZScore float64
	Valid  bool
}
