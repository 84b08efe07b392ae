package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"binance-futures-client/internal/binance"
)

func decodeBatchPayload(t *testing.T, call recordedCall) []map[string]string {
	t.Helper()
	var orders []map[string]string
	if err := json.Unmarshal([]byte(call.params.Get("batchOrders")), &orders); err != nil {
		t.Fatalf("batchOrders is not a JSON array: %v", err)
	}
	return orders
}

func TestNewBatchOrdersEmpty(t *testing.T) {
	exec := newFakeExecutor()
	router := newTestRouter(exec, nil)

	_, err := router.NewBatchOrders(context.Background(), nil)
	var valErr *LocalValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected LocalValidationError, got %v", err)
	}
	if exec.callCount() != 0 {
		t.Errorf("Expected no calls, got %d", exec.callCount())
	}
}

func TestNewBatchOrdersSplits(t *testing.T) {
	exec := newFakeExecutor().
		on(post, binance.PathBatchOrders, `[{"orderId":1,"type":"LIMIT"},{"orderId":2,"type":"MARKET"}]`, nil).
		always(post, binance.PathAlgoOrder, `{"algoId":50}`, nil)
	router := newTestRouter(exec, nil)

	reqs := []binance.Params{
		{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT", "price": "1", "quantity": "1"},
		{"symbol": "BTCUSDT", "side": "SELL", "type": "STOP_MARKET", "stopPrice": "1"},
		{"symbol": "BTCUSDT", "side": "BUY", "type": "MARKET", "quantity": "1"},
		{"symbol": "BTCUSDT", "type": "MARKET"},
		{"symbol": "BTCUSDT", "side": "SELL", "type": "TAKE_PROFIT_MARKET", "stopPrice": "2"},
	}

	results, err := router.NewBatchOrders(context.Background(), reqs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("Expected %d results, got %d", len(reqs), len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("Expected index %d, got %d", i, r.Index)
		}
	}

	batchCalls := exec.callsTo(binance.PathBatchOrders)
	if len(batchCalls) != 1 {
		t.Fatalf("Expected one batch call, got %d", len(batchCalls))
	}
	sent := decodeBatchPayload(t, batchCalls[0])
	if len(sent) != 2 || sent[0]["type"] != "LIMIT" || sent[1]["type"] != "MARKET" {
		t.Errorf("Unexpected legacy sub-batch: %v", sent)
	}
	if n := len(exec.callsTo(binance.PathAlgoOrder)); n != 2 {
		t.Errorf("Expected 2 algo calls, got %d", n)
	}

	if results[0].Result.OrderID != 1 || results[2].Result.OrderID != 2 {
		t.Errorf("Legacy results misaligned: %+v %+v", results[0].Result, results[2].Result)
	}
	if !results[1].Result.ViaAlgo() || !results[4].Result.ViaAlgo() {
		t.Error("Expected conditional entries on algo endpoint")
	}
	var valErr *LocalValidationError
	if !errors.As(results[3].Err, &valErr) || valErr.Field != "side" {
		t.Errorf("Expected validation error for entry 3, got %v", results[3].Err)
	}
}

func TestNewBatchOrdersPerEntryErrors(t *testing.T) {
	exec := newFakeExecutor().
		on(post, binance.PathBatchOrders,
			`[{"code":-4120,"msg":"use algo"},{"code":-2019,"msg":"Margin is insufficient."},{"code":-4116,"msg":"duplicate"},{"orderId":4}]`, nil).
		on(post, binance.PathAlgoOrder, `{"algoId":77}`, nil)
	router := newTestRouter(exec, nil)

	reqs := []binance.Params{
		{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT"},
		{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT"},
		{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT"},
		{"symbol": "BTCUSDT", "side": "BUY", "type": "MARKET"},
	}

	results, err := router.NewBatchOrders(context.Background(), reqs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if results[0].Err != nil || !results[0].Result.Rerouted || results[0].Result.AlgoID != 77 {
		t.Errorf("Expected entry 0 rerouted to algo, got %+v %v", results[0].Result, results[0].Err)
	}
	if binance.ErrorCode(results[1].Err) != -2019 {
		t.Errorf("Expected code -2019, got %v", results[1].Err)
	}
	var dup *DuplicateClientOrderIDError
	if !errors.As(results[2].Err, &dup) {
		t.Errorf("Expected DuplicateClientOrderIDError, got %v", results[2].Err)
	}
	if results[3].Err != nil || results[3].Result.OrderID != 4 {
		t.Errorf("Expected entry 3 placed, got %+v %v", results[3].Result, results[3].Err)
	}
	if n := len(exec.callsTo(binance.PathAlgoOrder)); n != 1 {
		t.Errorf("Expected exactly one reroute, got %d", n)
	}
}

func TestNewBatchOrdersWholeLegacyFailure(t *testing.T) {
	transportErr := &binance.TransportError{Attempts: 4, Err: errors.New("connection reset")}
	exec := newFakeExecutor().
		on(post, binance.PathBatchOrders, "", transportErr).
		on(post, binance.PathAlgoOrder, `{"algoId":1}`, nil)
	router := newTestRouter(exec, nil)

	results, err := router.NewBatchOrders(context.Background(), []binance.Params{
		{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT"},
		{"symbol": "BTCUSDT", "side": "SELL", "type": "STOP_MARKET"},
		{"symbol": "BTCUSDT", "side": "BUY", "type": "MARKET"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, i := range []int{0, 2} {
		var te *binance.TransportError
		if !errors.As(results[i].Err, &te) {
			t.Errorf("Expected transport error on entry %d, got %v", i, results[i].Err)
		}
	}
	if results[1].Err != nil || results[1].Result.AlgoID != 1 {
		t.Errorf("Expected conditional entry unaffected, got %+v %v", results[1].Result, results[1].Err)
	}
}

func TestNewBatchOrdersWithoutAutoSwitch(t *testing.T) {
	exec := newFakeExecutor().
		on(post, binance.PathBatchOrders, `[{"orderId":1},{"code":-4120,"msg":"use algo"}]`, nil)
	router := newTestRouter(exec, func(c *Config) { c.AutoSwitchConditionalToAlgo = false })

	results, err := router.NewBatchOrders(context.Background(), []binance.Params{
		{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT"},
		{"symbol": "BTCUSDT", "side": "SELL", "type": "STOP_MARKET", "stopPrice": "9"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var migrated *ConditionalOrderMigratedError
	if !errors.As(results[1].Err, &migrated) {
		t.Fatalf("Expected migrated error, got %v", results[1].Err)
	}
	if migrated.Request.Get("stopPrice") != "9" {
		t.Errorf("Expected original payload, got %v", migrated.Request)
	}
	if exec.callCount() != 1 {
		t.Errorf("Expected only the batch call, got %d", exec.callCount())
	}
}

func TestNewBatchOrdersBoundsAlgoConcurrency(t *testing.T) {
	exec := newFakeExecutor().always(post, binance.PathAlgoOrder, `{"algoId":1}`, nil)
	exec.delay = 20 * time.Millisecond
	router := newTestRouter(exec, func(c *Config) { c.BatchConcurrency = 2 })

	reqs := make([]binance.Params, 6)
	for i := range reqs {
		reqs[i] = binance.Params{"symbol": "BTCUSDT", "side": "SELL", "type": "STOP_MARKET"}
	}

	results, err := router.NewBatchOrders(context.Background(), reqs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected entry error: %v", r.Err)
		}
	}

	exec.mu.Lock()
	peak := exec.maxInFlight[callKey(post, binance.PathAlgoOrder)]
	exec.mu.Unlock()
	if peak > 2 {
		t.Errorf("Expected at most 2 concurrent algo calls, got %d", peak)
	}
}

func TestNewBatchOrdersAlgoFailureIsolated(t *testing.T) {
	exec := newFakeExecutor().
		on(post, binance.PathBatchOrders, `[{"orderId":1,"type":"LIMIT"}]`, nil).
		always(post, binance.PathAlgoOrder, `{"algoId":9}`, nil)
	exec.respond = func(method, path string, params binance.Params) (scriptedResponse, bool) {
		if path == binance.PathAlgoOrder && params.Get("type") == "STOP_MARKET" {
			return scriptedResponse{err: apiError(400, -2021, "Order would immediately trigger.")}, true
		}
		return scriptedResponse{}, false
	}
	router := newTestRouter(exec, func(c *Config) { c.BatchConcurrency = 1 })

	reqs := []binance.Params{
		{"symbol": "BTCUSDT", "side": "SELL", "type": "STOP_MARKET", "stopPrice": "1"},
		{"symbol": "BTCUSDT", "side": "BUY", "type": "LIMIT", "price": "1", "quantity": "1"},
		{"symbol": "BTCUSDT", "side": "SELL", "type": "TAKE_PROFIT_MARKET", "stopPrice": "2"},
	}

	results, err := router.NewBatchOrders(context.Background(), reqs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if code := binance.ErrorCode(results[0].Err); code != -2021 {
		t.Errorf("Expected -2021 on entry 0, got %v", results[0].Err)
	}
	if results[0].Result != nil {
		t.Errorf("Expected no result on failed entry, got %+v", results[0].Result)
	}
	if results[1].Err != nil || results[1].Result == nil || results[1].Result.OrderID != 1 {
		t.Errorf("Expected legacy entry 1 to succeed with orderId 1, got %+v / %v", results[1].Result, results[1].Err)
	}
	if results[2].Err != nil || results[2].Result == nil || results[2].Result.AlgoID != 9 {
		t.Errorf("Expected algo entry 2 to succeed with algoId 9, got %+v / %v", results[2].Result, results[2].Err)
	}
	if n := len(exec.callsTo(binance.PathAlgoOrder)); n != 2 {
		t.Errorf("Expected both algo entries sent, got %d calls", n)
	}
}

func TestNewBatchOrdersDropsEmptyValues(t *testing.T) {
	exec := newFakeExecutor().
		on(post, binance.PathBatchOrders, `[{"orderId":1,"type":"MARKET"}]`, nil)
	router := newTestRouter(exec, nil)

	reqs := []binance.Params{
		{"symbol": "BTCUSDT", "side": "BUY", "type": "MARKET", "quantity": "1", "price": "", "timeInForce": ""},
	}
	if _, err := router.NewBatchOrders(context.Background(), reqs); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sent := decodeBatchPayload(t, exec.callsTo(binance.PathBatchOrders)[0])
	if len(sent) != 1 {
		t.Fatalf("Expected one order in batch, got %d", len(sent))
	}
	for _, key := range []string{"price", "timeInForce"} {
		if _, ok := sent[0][key]; ok {
			t.Errorf("Expected empty %s to be dropped, got %v", key, sent[0])
		}
	}
	if sent[0]["quantity"] != "1" {
		t.Errorf("Expected quantity 1, got %v", sent[0])
	}
}
