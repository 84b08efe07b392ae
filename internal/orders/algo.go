package orders

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/logging"
)

// NewAlgoOrder places an order directly on the algo endpoint
func (r *Router) NewAlgoOrder(ctx context.Context, req binance.Params) (*OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}
	log := logging.OrderContext(logging.FromContext(ctx, r.logger), req.Get("symbol"), req.Get("side"), req.Get("type"))
	return r.placeAlgo(ctx, r.prepare(req), false, log)
}

// QueryAlgoOrder fetches one algo order by algoId or clientAlgoId
func (r *Router) QueryAlgoOrder(ctx context.Context, params binance.Params) (*OrderResult, error) {
	raw, err := r.exec.Call(ctx, http.MethodGet, binance.PathAlgoOrder, params.Clone(), true)
	if err != nil {
		return nil, err
	}
	return decodeResult(raw, EndpointAlgo), nil
}

// CancelAlgoOrder cancels one algo order by algoId or clientAlgoId
func (r *Router) CancelAlgoOrder(ctx context.Context, params binance.Params) (*OrderResult, error) {
	raw, err := r.exec.Call(ctx, http.MethodDelete, binance.PathAlgoOrder, params.Clone(), true)
	if err != nil {
		return nil, err
	}
	return decodeResult(raw, EndpointAlgo), nil
}

// CancelOpenAlgoOrders cancels every open algo order on symbol
func (r *Router) CancelOpenAlgoOrders(ctx context.Context, symbol string) error {
	if symbol == "" {
		return &LocalValidationError{Field: "symbol", Reason: "is required"}
	}
	_, err := r.exec.Call(ctx, http.MethodDelete, binance.PathAlgoOpenOrders, binance.Params{"symbol": symbol}, true)
	return err
}

// OpenAlgoOrders lists open algo orders. params may carry symbol, algoType or
// algoId filters.
func (r *Router) OpenAlgoOrders(ctx context.Context, params binance.Params) ([]binance.AlgoOrder, error) {
	raw, err := r.exec.Call(ctx, http.MethodGet, binance.PathOpenAlgoOrders, params.Clone(), true)
	if err != nil {
		return nil, err
	}
	return binance.DecodeAlgoOrders(raw)
}

// AllAlgoOrders lists historical algo orders for a symbol
func (r *Router) AllAlgoOrders(ctx context.Context, params binance.Params) ([]binance.AlgoOrder, error) {
	if !params.Has("symbol") {
		return nil, &LocalValidationError{Field: "symbol", Reason: "is required"}
	}
	raw, err := r.exec.Call(ctx, http.MethodGet, binance.PathAllAlgoOrders, params.Clone(), true)
	if err != nil {
		return nil, err
	}
	return binance.DecodeAlgoOrders(raw)
}

// TrailingStopParams describes a TRAILING_STOP_MARKET order
type TrailingStopParams struct {
	Symbol           string
	Side             binance.Side
	PositionSide     binance.PositionSide
	Quantity         decimal.Decimal
	CallbackRate     decimal.Decimal // percent, 0.1 to 10
	ActivationPrice  decimal.Decimal // optional
	WorkingType      binance.WorkingType
	ReduceOnly       bool
	NewClientOrderID string
}

var (
	minCallbackRate = decimal.RequireFromString("0.1")
	maxCallbackRate = decimal.NewFromInt(10)
)

// NewTrailingStopOrder places a trailing stop through NewOrder
func (r *Router) NewTrailingStopOrder(ctx context.Context, p TrailingStopParams) (*OrderResult, error) {
	if !p.Quantity.IsPositive() {
		return nil, &LocalValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if p.CallbackRate.LessThan(minCallbackRate) || p.CallbackRate.GreaterThan(maxCallbackRate) {
		return nil, &LocalValidationError{Field: "callbackRate", Reason: "must be between 0.1 and 10"}
	}

	order := binance.OrderParams{
		Symbol:           p.Symbol,
		Side:             p.Side,
		PositionSide:     p.PositionSide,
		Type:             binance.OrderTypeTrailingStop,
		Quantity:         p.Quantity,
		CallbackRate:     p.CallbackRate,
		ActivationPrice:  p.ActivationPrice,
		WorkingType:      p.WorkingType,
		ReduceOnly:       p.ReduceOnly,
		NewClientOrderID: p.NewClientOrderID,
	}
	return r.NewOrder(ctx, order.Params(), false)
}

// StopParams describes a stop-loss or take-profit market order. Either Quantity
// or ClosePosition must be set.
type StopParams struct {
	Symbol           string
	Side             binance.Side
	PositionSide     binance.PositionSide
	StopPrice        decimal.Decimal
	Quantity         decimal.Decimal
	ClosePosition    bool
	ReduceOnly       bool
	PriceProtect     bool
	WorkingType      binance.WorkingType
	NewClientOrderID string
}

// NewStopLossOrder places a STOP_MARKET order through NewOrder
func (r *Router) NewStopLossOrder(ctx context.Context, p StopParams) (*OrderResult, error) {
	return r.newStopOrder(ctx, binance.OrderTypeStopMarket, p)
}

// NewTakeProfitOrder places a TAKE_PROFIT_MARKET order through NewOrder
func (r *Router) NewTakeProfitOrder(ctx context.Context, p StopParams) (*OrderResult, error) {
	return r.newStopOrder(ctx, binance.OrderTypeTakeProfitMarket, p)
}

func (r *Router) newStopOrder(ctx context.Context, orderType binance.OrderType, p StopParams) (*OrderResult, error) {
	if !p.StopPrice.IsPositive() {
		return nil, &LocalValidationError{Field: "stopPrice", Reason: "must be positive"}
	}
	if !p.ClosePosition && !p.Quantity.IsPositive() {
		return nil, &LocalValidationError{Field: "quantity", Reason: "must be positive unless closePosition is set"}
	}

	order := binance.OrderParams{
		Symbol:           p.Symbol,
		Side:             p.Side,
		PositionSide:     p.PositionSide,
		Type:             orderType,
		StopPrice:        p.StopPrice,
		ClosePosition:    p.ClosePosition,
		ReduceOnly:       p.ReduceOnly,
		PriceProtect:     p.PriceProtect,
		WorkingType:      p.WorkingType,
		NewClientOrderID: p.NewClientOrderID,
	}
	if !p.ClosePosition {
		order.Quantity = p.Quantity
	}
	return r.NewOrder(ctx, order.Params(), false)
}
