package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"volume-sentry/internal/config"
)

type createOrderCall struct {
	symbol string
	typ    string
	side   string
	amount float64
}

// mockFutures 记录交易所调用并返回预设结果。
type mockFutures struct {
	positions    []ccxt.Position
	positionsErr error

	balances   ccxt.Balances
	balanceErr error

	orderErr     error
	createCalls  []createOrderCall
	cancelCalls  int
	leverageSet  int64
	marketsCalls int
}

func (m *mockFutures) FetchBalance(params ...interface{}) (ccxt.Balances, error) {
	return m.balances, m.balanceErr
}

func (m *mockFutures) FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error) {
	return m.positions, m.positionsErr
}

func (m *mockFutures) CreateOrder(symbol string, typeVar string, side string, amount float64, options ...ccxt.CreateOrderOptions) (ccxt.Order, error) {
	m.createCalls = append(m.createCalls, createOrderCall{symbol: symbol, typ: typeVar, side: side, amount: amount})
	if m.orderErr != nil {
		return ccxt.Order{}, m.orderErr
	}
	id := "order-7"
	return ccxt.Order{Id: &id}, nil
}

func (m *mockFutures) CancelAllOrders(options ...ccxt.CancelAllOrdersOptions) ([]ccxt.Order, error) {
	m.cancelCalls++
	return nil, nil
}

func (m *mockFutures) SetLeverage(leverage int64, options ...ccxt.SetLeverageOptions) (map[string]interface{}, error) {
	m.leverageSet = leverage
	return nil, nil
}

func (m *mockFutures) LoadMarkets(params ...interface{}) (map[string]ccxt.MarketInterface, error) {
	m.marketsCalls++
	return nil, nil
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func newTestClient(mock *mockFutures) *Client {
	return &Client{
		logger: zap.NewNop(),
		cfg: config.ExchangeConfig{
			Market: "SUI/USDT:USDT",
			Retry: config.RetryConfig{
				MaxAttempts: 2,
				MinDelay:    time.Millisecond,
				MaxDelay:    5 * time.Millisecond,
			},
		},
		client: mock,
		market: "SUI/USDT:USDT",
	}
}

func TestHasOpenPosition_FiltersBySymbolAndSize(t *testing.T) {
	cases := []struct {
		name      string
		positions []ccxt.Position
		want      bool
	}{
		{
			name: "no positions",
			want: false,
		},
		{
			name: "other symbol ignored",
			positions: []ccxt.Position{
				{Symbol: strPtr("BTC/USDT:USDT"), Contracts: f64Ptr(1)},
			},
			want: false,
		},
		{
			name: "zero contracts ignored",
			positions: []ccxt.Position{
				{Symbol: strPtr("SUI/USDT:USDT"), Contracts: f64Ptr(0)},
			},
			want: false,
		},
		{
			name: "short position counts",
			positions: []ccxt.Position{
				{Symbol: strPtr("SUI/USDT:USDT"), Contracts: f64Ptr(-107.8)},
			},
			want: true,
		},
		{
			name: "long position counts",
			positions: []ccxt.Position{
				{Symbol: strPtr("BTC/USDT:USDT"), Contracts: f64Ptr(0)},
				{Symbol: strPtr("SUI/USDT:USDT"), Contracts: f64Ptr(107.8)},
			},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(&mockFutures{positions: tc.positions})
			open, err := client.HasOpenPosition(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if open != tc.want {
				t.Errorf("got %v, want %v", open, tc.want)
			}
		})
	}
}

func TestWalletBalance_PrefersUSDT(t *testing.T) {
	mock := &mockFutures{
		balances: ccxt.Balances{
			Total: map[string]*float64{
				"USDT": f64Ptr(1234.5),
				"USDC": f64Ptr(50),
			},
		},
	}

	client := newTestClient(mock)
	balance, err := client.WalletBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 1234.5 {
		t.Errorf("balance: got %f, want 1234.5", balance)
	}
}

func TestWalletBalance_RejectsEmptyAccount(t *testing.T) {
	client := newTestClient(&mockFutures{balances: ccxt.Balances{}})
	if _, err := client.WalletBalance(context.Background()); err == nil {
		t.Fatal("expected error for empty account")
	}
}

func TestPlaceOrder_MarketEntry(t *testing.T) {
	mock := &mockFutures{}
	client := newTestClient(mock)

	orderID, err := client.PlaceOrder(context.Background(), OrderSpec{
		Side:     OrderSideBuy,
		Type:     OrderTypeMarket,
		Quantity: 107.8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != "order-7" {
		t.Errorf("order id: got %q, want order-7", orderID)
	}

	if len(mock.createCalls) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(mock.createCalls))
	}
	call := mock.createCalls[0]
	if call.symbol != "SUI/USDT:USDT" || call.typ != OrderTypeMarket {
		t.Errorf("unexpected call: %+v", call)
	}
	if call.side != "buy" {
		t.Errorf("side should be lowercased, got %q", call.side)
	}
	if call.amount != 107.8 {
		t.Errorf("amount: got %f, want 107.8", call.amount)
	}
}

func TestPlaceOrder_ClosePositionSendsZeroAmount(t *testing.T) {
	mock := &mockFutures{}
	client := newTestClient(mock)

	_, err := client.PlaceOrder(context.Background(), OrderSpec{
		Side:          OrderSideSell,
		Type:          OrderTypeStopMarket,
		StopPrice:     96.59,
		ClosePosition: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.createCalls) != 1 {
		t.Fatalf("expected 1 create call, got %d", len(mock.createCalls))
	}
	call := mock.createCalls[0]
	if call.typ != OrderTypeStopMarket || call.side != "sell" {
		t.Errorf("unexpected call: %+v", call)
	}
	// closePosition 委托数量由交易所按持仓决定。
	if call.amount != 0 {
		t.Errorf("closePosition order must send zero amount, got %f", call.amount)
	}
}

func TestPlaceOrder_NoRetryOnFailure(t *testing.T) {
	mock := &mockFutures{orderErr: errors.New("rejected")}
	client := newTestClient(mock)

	if _, err := client.PlaceOrder(context.Background(), OrderSpec{
		Side:     OrderSideBuy,
		Type:     OrderTypeMarket,
		Quantity: 1,
	}); err == nil {
		t.Fatal("expected error from rejected order")
	}
	if len(mock.createCalls) != 1 {
		t.Errorf("PlaceOrder must not retry internally, got %d calls", len(mock.createCalls))
	}
}

func TestSetLeverage_PassesThrough(t *testing.T) {
	mock := &mockFutures{}
	client := newTestClient(mock)

	if err := client.SetLeverage(context.Background(), 11); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.leverageSet != 11 {
		t.Errorf("leverage: got %d, want 11", mock.leverageSet)
	}
}

func TestMarketsLoadedOnce(t *testing.T) {
	mock := &mockFutures{}
	client := newTestClient(mock)

	for i := 0; i < 3; i++ {
		if _, err := client.HasOpenPosition(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if mock.marketsCalls != 1 {
		t.Errorf("markets should load once, got %d calls", mock.marketsCalls)
	}
}
