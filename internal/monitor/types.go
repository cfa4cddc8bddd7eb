package monitor

import (
	"time"

	"volume-sentry/internal/detector"
	"volume-sentry/internal/trade"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventWindowRefresh EventType = "window_refresh"
	EventSignal        EventType = "signal"
	EventTrade         EventType = "trade"
	EventError         EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StoredEvent 为持久化后的监控事件，供查询接口返回。
type StoredEvent struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   string    `json:"payload"`
}

// WindowRefreshPayload 记录一次行情窗口刷新。
type WindowRefreshPayload struct {
	Bars     int       `json:"bars"`
	LastOpen time.Time `json:"last_open,omitempty"`
}

// SignalPayload 记录检测到的成交量异常信号。
type SignalPayload struct {
	Signal detector.Signal `json:"signal"`
	Acted  bool            `json:"acted"`
}

// TradePayload 记录一次交易生命周期的结果。
type TradePayload struct {
	Side     string        `json:"side"`
	State    trade.State   `json:"final_state"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
