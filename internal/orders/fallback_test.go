package orders

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"binance-futures-client/internal/binance"
)

func TestQueryOrderFallback(t *testing.T) {
	notFound := apiError(400, binance.ErrCodeNoSuchOrder, "Order does not exist.")

	tests := []struct {
		name          string
		params        binance.Params
		allow         bool
		attemptAlways bool
		script        func(*fakeExecutor)
		wantEndpoint  Endpoint
		wantErr       bool
		wantCalls     int
		wantSecond    binance.Params
	}{
		{
			name:   "legacy hit",
			params: binance.Params{"symbol": "BTCUSDT", "orderId": "11"},
			script: func(f *fakeExecutor) {
				f.on(get, binance.PathOrder, `{"orderId":11,"status":"FILLED"}`, nil)
			},
			wantEndpoint: EndpointLegacy,
			wantCalls:    1,
		},
		{
			name:   "not found without fallback",
			params: binance.Params{"symbol": "BTCUSDT", "orderId": "11"},
			script: func(f *fakeExecutor) {
				f.on(get, binance.PathOrder, "", notFound)
			},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:   "not found falls back to algo",
			params: binance.Params{"symbol": "BTCUSDT", "orderId": "11"},
			allow:  true,
			script: func(f *fakeExecutor) {
				f.on(get, binance.PathOrder, "", notFound)
				f.on(get, binance.PathAlgoOrder, `{"algoId":11,"algoStatus":"NEW"}`, nil)
			},
			wantEndpoint: EndpointAlgo,
			wantCalls:    2,
			wantSecond:   binance.Params{"symbol": "BTCUSDT", "algoId": "11"},
		},
		{
			name:          "router config enables fallback",
			params:        binance.Params{"symbol": "BTCUSDT", "origClientOrderId": "cid"},
			attemptAlways: true,
			script: func(f *fakeExecutor) {
				f.on(get, binance.PathOrder, "", apiError(404, 0, "not found"))
				f.on(get, binance.PathAlgoOrder, `{"algoId":1,"clientAlgoId":"cid"}`, nil)
			},
			wantEndpoint: EndpointAlgo,
			wantCalls:    2,
			wantSecond:   binance.Params{"symbol": "BTCUSDT", "clientAlgoId": "cid"},
		},
		{
			name:   "algo identifier goes to algo first",
			params: binance.Params{"symbol": "BTCUSDT", "clientAlgoId": "cid", "recvWindow": "3000"},
			allow:  true,
			script: func(f *fakeExecutor) {
				f.on(get, binance.PathAlgoOrder, "", notFound)
				f.on(get, binance.PathOrder, `{"orderId":5}`, nil)
			},
			wantEndpoint: EndpointLegacy,
			wantCalls:    2,
			wantSecond:   binance.Params{"symbol": "BTCUSDT", "origClientOrderId": "cid", "recvWindow": "3000"},
		},
		{
			name:   "other errors do not fall back",
			params: binance.Params{"symbol": "BTCUSDT", "orderId": "11"},
			allow:  true,
			script: func(f *fakeExecutor) {
				f.on(get, binance.PathOrder, "", apiError(400, -1102, "bad param"))
			},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:   "fallback miss is returned",
			params: binance.Params{"symbol": "BTCUSDT", "orderId": "11"},
			allow:  true,
			script: func(f *fakeExecutor) {
				f.on(get, binance.PathOrder, "", notFound)
				f.on(get, binance.PathAlgoOrder, "", notFound)
			},
			wantErr:    true,
			wantCalls:  2,
			wantSecond: binance.Params{"symbol": "BTCUSDT", "algoId": "11"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			tt.script(exec)
			router := newTestRouter(exec, func(c *Config) { c.AttemptAlgoOnNotFound = tt.attemptAlways })

			res, err := router.QueryOrder(context.Background(), tt.params, tt.allow)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
			} else {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if res.Endpoint != tt.wantEndpoint {
					t.Errorf("Expected endpoint %s, got %s", tt.wantEndpoint, res.Endpoint)
				}
			}

			if exec.callCount() != tt.wantCalls {
				t.Fatalf("Expected %d calls, got %d", tt.wantCalls, exec.callCount())
			}
			if tt.wantSecond != nil {
				second := exec.calls[1].params
				if !reflect.DeepEqual(second, tt.wantSecond) {
					t.Errorf("Expected fallback params %v, got %v", tt.wantSecond, second)
				}
			}
		})
	}
}

func TestCancelOrderFallbackUsesDelete(t *testing.T) {
	exec := newFakeExecutor().
		on(del, binance.PathOrder, "", apiError(400, binance.ErrCodeUnknownOrder, "Unknown order sent.")).
		on(del, binance.PathAlgoOrder, `{"algoId":21,"algoStatus":"CANCELED"}`, nil)
	router := newTestRouter(exec, nil)

	res, err := router.CancelOrder(context.Background(), binance.Params{"symbol": "BTCUSDT", "orderId": "21"}, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.AlgoID != 21 || res.Status != "CANCELED" {
		t.Errorf("Unexpected result: %+v", res)
	}
	for _, c := range exec.calls {
		if c.method != del {
			t.Errorf("Expected DELETE, got %s", c.method)
		}
	}
}

func TestResolveRequiresSymbol(t *testing.T) {
	exec := newFakeExecutor()
	router := newTestRouter(exec, nil)

	_, err := router.QueryOrder(context.Background(), binance.Params{"orderId": "1"}, true)
	var valErr *LocalValidationError
	if !errors.As(err, &valErr) || valErr.Field != "symbol" {
		t.Errorf("Expected symbol validation error, got %v", err)
	}
	if exec.callCount() != 0 {
		t.Errorf("Expected no calls, got %d", exec.callCount())
	}
}

func TestRenameIdentifiersNeverInvents(t *testing.T) {
	got := renameIdentifiers(binance.Params{"symbol": "X", "orderId": "1"}, EndpointAlgo)
	if got.Has("clientAlgoId") || got.Has("orderId") || got.Get("algoId") != "1" {
		t.Errorf("Unexpected rename: %v", got)
	}

	got = renameIdentifiers(binance.Params{"symbol": "X"}, EndpointLegacy)
	if !reflect.DeepEqual(got, binance.Params{"symbol": "X"}) {
		t.Errorf("Expected no identifiers, got %v", got)
	}
}

func TestQueryOrderAcceptsClientOrderID(t *testing.T) {
	exec := newFakeExecutor().
		on(get, binance.PathOrder, "", apiError(400, binance.ErrCodeNoSuchOrder, "Order does not exist.")).
		on(get, binance.PathAlgoOrder, `{"algoId":3,"clientAlgoId":"tp-1"}`, nil)
	router := newTestRouter(exec, nil)

	res, err := router.QueryOrder(context.Background(), binance.Params{"symbol": "BTCUSDT", "clientOrderId": "tp-1"}, true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.AlgoID != 3 || res.ClientOrderID != "tp-1" {
		t.Errorf("Unexpected result: %+v", res)
	}

	if exec.callCount() != 2 {
		t.Fatalf("Expected 2 calls, got %d", exec.callCount())
	}
	wantFirst := binance.Params{"symbol": "BTCUSDT", "origClientOrderId": "tp-1"}
	if !reflect.DeepEqual(exec.calls[0].params, wantFirst) {
		t.Errorf("Expected legacy params %v, got %v", wantFirst, exec.calls[0].params)
	}
	wantSecond := binance.Params{"symbol": "BTCUSDT", "clientAlgoId": "tp-1"}
	if !reflect.DeepEqual(exec.calls[1].params, wantSecond) {
		t.Errorf("Expected fallback params %v, got %v", wantSecond, exec.calls[1].params)
	}
}

func TestNormalizeIdentifiersKeepsExplicitOrigID(t *testing.T) {
	got := normalizeIdentifiers(binance.Params{"symbol": "X", "clientOrderId": "a", "origClientOrderId": "b"})
	want := binance.Params{"symbol": "X", "origClientOrderId": "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
