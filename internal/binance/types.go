package binance

import (
	"encoding/json"
	"fmt"
)

// ==================== ENUMS ====================

// OrderType is the declared type of a futures order
type OrderType string

const (
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeStop             OrderType = "STOP"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfit       OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
	OrderTypeTrailingStop     OrderType = "TRAILING_STOP_MARKET"
)

// Side is the order direction
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide represents the position side for futures trading
type PositionSide string

const (
	PositionSideBoth  PositionSide = "BOTH"  // One-way mode
	PositionSideLong  PositionSide = "LONG"  // Hedge mode long
	PositionSideShort PositionSide = "SHORT" // Hedge mode short
)

// TimeInForce represents order time-in-force options
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceGTX TimeInForce = "GTX" // Post only
)

// WorkingType selects the price a stop is evaluated against
type WorkingType string

const (
	WorkingTypeContractPrice WorkingType = "CONTRACT_PRICE"
	WorkingTypeMarkPrice     WorkingType = "MARK_PRICE"
)

// AlgoType for algo orders. Only conditional algo orders exist on futures.
type AlgoType string

const (
	AlgoTypeConditional AlgoType = "CONDITIONAL"
)

// ==================== ALGO ORDERS ====================

// AlgoOrder represents an open or historical algo order
type AlgoOrder struct {
	AlgoID        int64  `json:"algoId"`
	ClientAlgoID  string `json:"clientAlgoId"`
	AlgoType      string `json:"algoType"`
	OrderType     string `json:"orderType"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	PositionSide  string `json:"positionSide"`
	AlgoStatus    string `json:"algoStatus"`
	TriggerPrice  string `json:"triggerPrice"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	WorkingType   string `json:"workingType"`
	ClosePosition bool   `json:"closePosition"`
	ReduceOnly    bool   `json:"reduceOnly"`
	PriceProtect  bool   `json:"priceProtect"`
	ActivatePrice string `json:"activatePrice"`
	CallbackRate  string `json:"callbackRate"`
	CreateTime    int64  `json:"createTime"`
	UpdateTime    int64  `json:"updateTime"`
	TriggerTime   int64  `json:"triggerTime"`
}

// algoOrderPage is the paginated envelope some algo list endpoints use
type algoOrderPage struct {
	Total int         `json:"total"`
	Data  []AlgoOrder `json:"data"`
}

// DecodeAlgoOrders parses an algo order listing. Both a bare JSON array and the
// {"total": n, "data": [...]} envelope are accepted.
func DecodeAlgoOrders(raw json.RawMessage) ([]AlgoOrder, error) {
	var orders []AlgoOrder
	if err := json.Unmarshal(raw, &orders); err == nil {
		return orders, nil
	}

	var page algoOrderPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("error parsing algo orders: %w", err)
	}
	return page.Data, nil
}

// ==================== MISC ====================

// ServerTime is the response of /fapi/v1/time
type ServerTime struct {
	ServerTime int64 `json:"serverTime"`
}

// ListenKeyResponse represents response from listen key endpoints
type ListenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}
