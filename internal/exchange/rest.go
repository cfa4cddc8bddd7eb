package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultDataBaseURL = "https://fapi.binance.com"
	klinesLimit        = 1500
)

// RestClient 通过公共行情接口获取K线、标记价格与交易对精度。
// ccxt 的统一 OHLCV 不包含主动买入成交量，因此K线走原生接口。
type RestClient struct {
	baseURL    string
	symbol     string
	interval   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRestClient 创建公共行情客户端。
func NewRestClient(baseURL, symbol, interval string, logger *zap.Logger) *RestClient {
	if baseURL == "" {
		baseURL = defaultDataBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		symbol:     symbol,
		interval:   interval,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Symbol 返回交易对符号。
func (c *RestClient) Symbol() string {
	return c.symbol
}

// FetchBars 获取 [start, end] 区间的K线数据，按开盘时间升序返回。
func (c *RestClient) FetchBars(ctx context.Context, start, end time.Time) ([]Bar, error) {
	query := url.Values{}
	query.Set("symbol", c.symbol)
	query.Set("interval", c.interval)
	query.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	query.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	query.Set("limit", strconv.Itoa(klinesLimit))

	var rows [][]interface{}
	if err := c.getJSON(ctx, "/fapi/v1/klines", query, &rows); err != nil {
		return nil, fmt.Errorf("exchange: 获取K线失败: %w", err)
	}

	bars := make([]Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 10 {
			continue
		}
		bars = append(bars, Bar{
			OpenTime:       time.UnixMilli(int64(toFloat(row[0]))).UTC(),
			Open:           toFloat(row[1]),
			High:           toFloat(row[2]),
			Low:            toFloat(row[3]),
			Close:          toFloat(row[4]),
			Volume:         toFloat(row[5]),
			TakerBuyVolume: toFloat(row[9]),
		})
	}

	return bars, nil
}

// MarkPrice 获取当前标记价格。
func (c *RestClient) MarkPrice(ctx context.Context) (float64, error) {
	query := url.Values{}
	query.Set("symbol", c.symbol)

	var payload struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := c.getJSON(ctx, "/fapi/v1/premiumIndex", query, &payload); err != nil {
		return 0, fmt.Errorf("exchange: 获取标记价格失败: %w", err)
	}

	price, err := strconv.ParseFloat(payload.MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("exchange: 解析标记价格 %q 失败: %w", payload.MarkPrice, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("exchange: 标记价格无效: %f", price)
	}

	return price, nil
}

// SymbolPrecision 获取交易对的数量与价格小数位。
func (c *RestClient) SymbolPrecision(ctx context.Context) (Precision, error) {
	query := url.Values{}
	query.Set("symbol", c.symbol)

	var payload struct {
		Symbols []struct {
			Symbol            string `json:"symbol"`
			PricePrecision    int32  `json:"pricePrecision"`
			QuantityPrecision int32  `json:"quantityPrecision"`
		} `json:"symbols"`
	}
	if err := c.getJSON(ctx, "/fapi/v1/exchangeInfo", query, &payload); err != nil {
		return Precision{}, fmt.Errorf("exchange: 获取交易规则失败: %w", err)
	}

	for _, s := range payload.Symbols {
		if strings.EqualFold(s.Symbol, c.symbol) {
			return Precision{
				Quantity: s.QuantityPrecision,
				Price:    s.PricePrecision,
			}, nil
		}
	}

	return Precision{}, fmt.Errorf("exchange: %w: %s", ErrPrecisionUnavailable, c.symbol)
}

func (c *RestClient) getJSON(ctx context.Context, path string, query url.Values, dst interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Debug("行情接口调用完成",
		zap.String("path", path),
		zap.Duration("latency", time.Since(start)),
	)

	return json.Unmarshal(body, dst)
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}
