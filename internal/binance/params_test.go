package binance

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParamsEncodeSortsAndEscapes(t *testing.T) {
	p := Params{"symbol": "BTCUSDT", "batchOrders": `[{"a":"b"}]`, "empty": ""}
	got := p.Compact().encode()
	want := "batchOrders=%5B%7B%22a%22%3A%22b%22%7D%5D&symbol=BTCUSDT"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestParamsClone(t *testing.T) {
	p := Params{"a": "1"}
	c := p.Clone()
	c["a"] = "2"
	if p["a"] != "1" {
		t.Error("Clone must not share storage")
	}

	var nilParams Params
	if nilParams.Has("a") || nilParams.Get("a") != "" {
		t.Error("nil Params must read as empty")
	}
}

func TestOrderParams(t *testing.T) {
	tests := []struct {
		name  string
		order OrderParams
		want  Params
	}{
		{
			name: "limit defaults to GTC",
			order: OrderParams{
				Symbol:   "BTCUSDT",
				Side:     SideBuy,
				Type:     OrderTypeLimit,
				Quantity: decimal.RequireFromString("0.010"),
				Price:    decimal.RequireFromString("50000.5"),
			},
			want: Params{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT", "quantity": "0.01", "price": "50000.5", "timeInForce": "GTC"},
		},
		{
			name: "stop market with flags",
			order: OrderParams{
				Symbol:        "ETHUSDT",
				Side:          SideSell,
				PositionSide:  PositionSideLong,
				Type:          OrderTypeStopMarket,
				StopPrice:     decimal.NewFromInt(3000),
				ClosePosition: true,
				WorkingType:   WorkingTypeMarkPrice,
			},
			want: Params{
				"symbol": "ETHUSDT", "side": "SELL", "type": "STOP_MARKET", "positionSide": "LONG",
				"stopPrice": "3000", "closePosition": "true", "workingType": "MARK_PRICE",
			},
		},
		{
			name:  "zero decimals are omitted",
			order: OrderParams{Symbol: "X", Side: SideBuy, Type: OrderTypeMarket, Price: decimal.Zero},
			want:  Params{"symbol": "X", "side": "BUY", "type": "MARKET"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.order.Params()
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Expected %s=%s, got %q", k, v, got[k])
				}
			}
		})
	}
}
