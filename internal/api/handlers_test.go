package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"binance-futures-client/internal/auth"
	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/orders"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeOrderService records the last request and returns canned answers
type fakeOrderService struct {
	lastParams   binance.Params
	lastTest     bool
	lastFallback bool
	lastBatch    []binance.Params
	lastTrailing orders.TrailingStopParams

	result  *orders.OrderResult
	batch   []orders.BatchResult
	listing []binance.AlgoOrder
	err     error
}

func (f *fakeOrderService) NewOrder(_ context.Context, req binance.Params, testOnly bool) (*orders.OrderResult, error) {
	f.lastParams, f.lastTest = req, testOnly
	return f.result, f.err
}

func (f *fakeOrderService) NewBatchOrders(_ context.Context, reqs []binance.Params) ([]orders.BatchResult, error) {
	f.lastBatch = reqs
	return f.batch, f.err
}

func (f *fakeOrderService) NewTrailingStopOrder(_ context.Context, p orders.TrailingStopParams) (*orders.OrderResult, error) {
	f.lastTrailing = p
	return f.result, f.err
}

func (f *fakeOrderService) QueryOrder(_ context.Context, params binance.Params, allow bool) (*orders.OrderResult, error) {
	f.lastParams, f.lastFallback = params, allow
	return f.result, f.err
}

func (f *fakeOrderService) CancelOrder(_ context.Context, params binance.Params, allow bool) (*orders.OrderResult, error) {
	f.lastParams, f.lastFallback = params, allow
	return f.result, f.err
}

func (f *fakeOrderService) NewAlgoOrder(_ context.Context, req binance.Params) (*orders.OrderResult, error) {
	f.lastParams = req
	return f.result, f.err
}

func (f *fakeOrderService) QueryAlgoOrder(_ context.Context, params binance.Params) (*orders.OrderResult, error) {
	f.lastParams = params
	return f.result, f.err
}

func (f *fakeOrderService) CancelAlgoOrder(_ context.Context, params binance.Params) (*orders.OrderResult, error) {
	f.lastParams = params
	return f.result, f.err
}

func (f *fakeOrderService) CancelOpenAlgoOrders(_ context.Context, symbol string) error {
	f.lastParams = binance.Params{"symbol": symbol}
	return f.err
}

func (f *fakeOrderService) OpenAlgoOrders(_ context.Context, params binance.Params) ([]binance.AlgoOrder, error) {
	f.lastParams = params
	return f.listing, f.err
}

func (f *fakeOrderService) AllAlgoOrders(_ context.Context, params binance.Params) ([]binance.AlgoOrder, error) {
	f.lastParams = params
	return f.listing, f.err
}

type fakeLimiter struct{ status binance.Status }

func (f fakeLimiter) GetStatus() binance.Status { return f.status }

func newTestServer(svc OrderService, jwtManager *auth.JWTManager) *Server {
	return NewServer(ServerConfig{Port: 0, AllowedOrigins: []string{"*"}}, svc, fakeLimiter{}, jwtManager, zerolog.Nop())
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v (%s)", err, w.Body.String())
	}
	return response
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeOrderService{}, nil)
	w := doRequest(s, http.MethodGet, "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	response := decodeBody(t, w)
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%v'", response["status"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(&fakeOrderService{}, nil)

	w := doRequest(s, http.MethodGet, "/health", "", map[string]string{requestIDHeader: "req-123"})
	if got := w.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("Expected propagated request id, got %q", got)
	}

	w = doRequest(s, http.MethodGet, "/health", "", nil)
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("Expected generated request id")
	}
}

func TestNewOrderHandler(t *testing.T) {
	svc := &fakeOrderService{result: &orders.OrderResult{Endpoint: orders.EndpointAlgo, AlgoID: 9, Rerouted: true}}
	s := newTestServer(svc, nil)

	body := `{"order":{"symbol":"BTCUSDT","side":"BUY","type":"LIMIT","quantity":0.001,"price":"65000","reduceOnly":true,"positionSide":null},"test":true}`
	w := doRequest(s, http.MethodPost, "/api/v1/orders", body, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !svc.lastTest {
		t.Error("Expected test flag to be forwarded")
	}
	want := binance.Params{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT", "quantity": "0.001", "price": "65000", "reduceOnly": "true"}
	for k, v := range want {
		if svc.lastParams[k] != v {
			t.Errorf("Expected %s=%s, got %q", k, v, svc.lastParams[k])
		}
	}
	if svc.lastParams.Has("positionSide") {
		t.Error("Expected null fields to be dropped")
	}

	data := decodeBody(t, w)["data"].(map[string]interface{})
	if data["ref"] != "algo:9" {
		t.Errorf("Expected ref algo:9, got %v", data["ref"])
	}
	result := data["result"].(map[string]interface{})
	if result["endpoint"] != "algo" || result["rerouted"] != true {
		t.Errorf("Unexpected result body: %v", result)
	}
}

func TestNewOrderRejectsNestedValues(t *testing.T) {
	s := newTestServer(&fakeOrderService{}, nil)
	w := doRequest(s, http.MethodPost, "/api/v1/orders", `{"order":{"symbol":["BTCUSDT"]}}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	refusal := &binance.APIError{StatusCode: 400, Code: binance.ErrCodeStopOrderSwitchAlgo, Message: "use algo"}

	tests := []struct {
		name      string
		err       error
		status    int
		errorCode string
		check     func(*testing.T, map[string]interface{})
	}{
		{"validation", &orders.LocalValidationError{Field: "symbol", Reason: "is required"}, 400, "INVALID_REQUEST", nil},
		{"migrated", &orders.ConditionalOrderMigratedError{Request: binance.Params{"type": "STOP_MARKET"}, Err: refusal}, 409, "CONDITIONAL_ORDER_MIGRATED",
			func(t *testing.T, body map[string]interface{}) {
				order, ok := body["order"].(map[string]interface{})
				if !ok || order["type"] != "STOP_MARKET" {
					t.Errorf("Expected payload echoed, got %v", body["order"])
				}
			}},
		{"exchange error keeps status", &binance.APIError{StatusCode: 401, Code: -2015, Message: "Invalid API-key"}, 401, "EXCHANGE_ERROR",
			func(t *testing.T, body map[string]interface{}) {
				if body["code"] != float64(-2015) || body["msg"] != "Invalid API-key" {
					t.Errorf("Expected code and msg, got %v", body)
				}
			}},
		{"hint", &orders.StopOrderTriggeringError{Hint: "move the stop", Err: &binance.APIError{StatusCode: 400, Code: -4117}}, 400, "EXCHANGE_ERROR",
			func(t *testing.T, body map[string]interface{}) {
				if body["hint"] != "move the stop" {
					t.Errorf("Expected hint, got %v", body["hint"])
				}
			}},
		{"transport", &binance.TransportError{Attempts: 4, Err: &binance.APIError{StatusCode: 503}}, 502, "UPSTREAM_UNAVAILABLE", nil},
		{"circuit open", binance.ErrCircuitOpen, 503, "RATE_LIMITED", nil},
		{"timeout", context.DeadlineExceeded, 504, "TIMEOUT", nil},
		{"unknown", errors.New("boom"), 500, "INTERNAL_ERROR", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeOrderService{err: tt.err}, nil)
			w := doRequest(s, http.MethodPost, "/api/v1/orders", `{"order":{"symbol":"BTCUSDT"}}`, nil)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			body := decodeBody(t, w)
			if body["error"] != tt.errorCode {
				t.Errorf("Expected error %s, got %v", tt.errorCode, body["error"])
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestBatchHandler(t *testing.T) {
	svc := &fakeOrderService{batch: []orders.BatchResult{
		{Index: 0, Result: &orders.OrderResult{Endpoint: orders.EndpointLegacy, OrderID: 1}},
		{Index: 1, Err: &binance.APIError{StatusCode: 400, Code: -2019, Message: "Margin is insufficient."}},
	}}
	s := newTestServer(svc, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/orders/batch",
		`{"orders":[{"symbol":"BTCUSDT","side":"BUY","type":"MARKET"},{"symbol":"BTCUSDT","side":"SELL","type":"STOP_MARKET","stopPrice":60000}]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(svc.lastBatch) != 2 || svc.lastBatch[1]["stopPrice"] != "60000" {
		t.Errorf("Unexpected forwarded batch: %v", svc.lastBatch)
	}

	entries := decodeBody(t, w)["data"].([]interface{})
	first := entries[0].(map[string]interface{})
	if first["ref"] != "order:1" || first["error"] != nil {
		t.Errorf("Unexpected first entry: %v", first)
	}
	second := entries[1].(map[string]interface{})
	entryErr := second["error"].(map[string]interface{})
	if entryErr["code"] != float64(-2019) || entryErr["status"] != float64(400) {
		t.Errorf("Unexpected second entry error: %v", entryErr)
	}
}

func TestQueryAndCancelForwardFallbackFlag(t *testing.T) {
	svc := &fakeOrderService{result: &orders.OrderResult{Endpoint: orders.EndpointLegacy, OrderID: 5}}
	s := newTestServer(svc, nil)

	w := doRequest(s, http.MethodGet, "/api/v1/orders?symbol=BTCUSDT&orderId=5&algoFallback=true", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !svc.lastFallback {
		t.Error("Expected algoFallback forwarded")
	}
	if svc.lastParams.Has("algoFallback") || svc.lastParams["orderId"] != "5" {
		t.Errorf("Unexpected params: %v", svc.lastParams)
	}

	w = doRequest(s, http.MethodDelete, "/api/v1/orders?symbol=BTCUSDT&orderId=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if svc.lastFallback {
		t.Error("Expected fallback off by default")
	}
}

func TestTrailingStopHandler(t *testing.T) {
	svc := &fakeOrderService{result: &orders.OrderResult{Endpoint: orders.EndpointAlgo, AlgoID: 2}}
	s := newTestServer(svc, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/orders/trailing-stop",
		`{"symbol":"BTCUSDT","side":"SELL","quantity":"0.01","callbackRate":1.2,"reduceOnly":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastTrailing.CallbackRate.String() != "1.2" || svc.lastTrailing.Quantity.String() != "0.01" {
		t.Errorf("Unexpected trailing params: %+v", svc.lastTrailing)
	}
	if svc.lastTrailing.Side != binance.SideSell || !svc.lastTrailing.ReduceOnly {
		t.Errorf("Unexpected trailing params: %+v", svc.lastTrailing)
	}
}

func TestAlgoRoutes(t *testing.T) {
	svc := &fakeOrderService{
		result:  &orders.OrderResult{Endpoint: orders.EndpointAlgo, AlgoID: 3},
		listing: []binance.AlgoOrder{{AlgoID: 3, Symbol: "BTCUSDT"}},
	}
	s := newTestServer(svc, nil)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/v1/algo/orders", `{"symbol":"BTCUSDT","side":"SELL","type":"STOP_MARKET","triggerPrice":"1"}`},
		{http.MethodGet, "/api/v1/algo/orders?symbol=BTCUSDT&algoId=3", ""},
		{http.MethodDelete, "/api/v1/algo/orders?symbol=BTCUSDT&algoId=3", ""},
		{http.MethodGet, "/api/v1/algo/orders/open?symbol=BTCUSDT", ""},
		{http.MethodDelete, "/api/v1/algo/orders/open?symbol=BTCUSDT", ""},
		{http.MethodGet, "/api/v1/algo/orders/all?symbol=BTCUSDT", ""},
		{http.MethodGet, "/api/v1/ratelimit", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(s, tt.method, tt.path, tt.body, nil)
			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAuthScopes(t *testing.T) {
	manager := auth.NewJWTManager("0123456789abcdef0123456789abcdef", "test-issuer", time.Hour)
	readToken, err := manager.GenerateToken(auth.ServiceClaims{Service: "dashboard", Scopes: []string{auth.ScopeRead}})
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}
	tradeToken, err := manager.GenerateToken(auth.ServiceClaims{Service: "desk", Scopes: []string{auth.ScopeTrade}})
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}

	svc := &fakeOrderService{result: &orders.OrderResult{Endpoint: orders.EndpointLegacy, OrderID: 1}}
	s := newTestServer(svc, manager)
	order := `{"order":{"symbol":"BTCUSDT","side":"BUY","type":"MARKET"}}`

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"no token", http.MethodGet, "/api/v1/orders?symbol=BTCUSDT&orderId=1", "", http.StatusUnauthorized},
		{"read can query", http.MethodGet, "/api/v1/orders?symbol=BTCUSDT&orderId=1", readToken.AccessToken, http.StatusOK},
		{"read cannot trade", http.MethodPost, "/api/v1/orders", readToken.AccessToken, http.StatusForbidden},
		{"trade can trade", http.MethodPost, "/api/v1/orders", tradeToken.AccessToken, http.StatusOK},
		{"trade can query", http.MethodGet, "/api/v1/orders?symbol=BTCUSDT&orderId=1", tradeToken.AccessToken, http.StatusOK},
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.token != "" {
				headers["Authorization"] = "Bearer " + tt.token
			}
			body := ""
			if tt.method == http.MethodPost {
				body = order
			}
			w := doRequest(s, tt.method, tt.path, body, headers)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestSplitOrigins(t *testing.T) {
	got := SplitOrigins(" http://a.example, ,http://b.example ")
	if len(got) != 2 || got[0] != "http://a.example" || got[1] != "http://b.example" {
		t.Errorf("Unexpected origins: %v", got)
	}
}
