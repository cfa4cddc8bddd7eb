package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"volume-sentry/internal/exchange"
)

func barAt(minute int, volume float64) exchange.Bar {
	return exchange.Bar{
		OpenTime: time.Date(2025, 6, 1, 10, minute, 0, 0, time.UTC),
		Volume:   volume,
	}
}

func TestNewWindow_SortsByOpenTime(t *testing.T) {
	window := NewWindow([]exchange.Bar{
		barAt(30, 3),
		barAt(0, 1),
		barAt(15, 2),
	})

	bars := window.Bars()
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].OpenTime.Before(bars[i].OpenTime) {
			t.Errorf("bars not strictly increasing at index %d", i)
		}
	}
}

func TestNewWindow_DedupesKeepingLatest(t *testing.T) {
	window := NewWindow([]exchange.Bar{
		barAt(0, 1),
		barAt(15, 2),
		barAt(15, 99),
	})

	if window.Len() != 2 {
		t.Fatalf("expected 2 bars after dedupe, got %d", window.Len())
	}
	last, ok := window.Last()
	if !ok {
		t.Fatal("expected non-empty window")
	}
	if last.Volume != 99 {
		t.Errorf("duplicate open time should keep the later bar, got volume %f", last.Volume)
	}
}

func TestNewWindow_Empty(t *testing.T) {
	window := NewWindow(nil)
	if !window.Empty() {
		t.Error("expected empty window")
	}
	if _, ok := window.Last(); ok {
		t.Error("Last should report no bars")
	}
}

type fakeSource struct {
	bars  []exchange.Bar
	err   error
	start time.Time
	end   time.Time
}

func (f *fakeSource) FetchBars(ctx context.Context, start, end time.Time) ([]exchange.Bar, error) {
	f.start = start
	f.end = end
	return f.bars, f.err
}

func TestRefresh_BuildsWindowFromSource(t *testing.T) {
	source := &fakeSource{bars: []exchange.Bar{barAt(15, 2), barAt(0, 1)}}
	service := NewService(source, nil)

	window, err := service.Refresh(context.Background(), 6*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if window.Len() != 2 {
		t.Errorf("expected 2 bars, got %d", window.Len())
	}

	if span := source.end.Sub(source.start); span != 6*time.Hour {
		t.Errorf("expected 6h lookback span, got %s", span)
	}
}

func TestRefresh_PropagatesFetchError(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream down")}
	service := NewService(source, nil)

	window, err := service.Refresh(context.Background(), time.Hour)
	if err == nil {
		t.Fatal("expected error from failing source")
	}
	if !window.Empty() {
		t.Error("expected empty window on fetch error")
	}
}
