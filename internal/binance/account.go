package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Account and position pass-throughs. All are signed unless noted.

// Account returns account information
func (c *Client) Account(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathAccount, nil, true)
}

// Balance returns per-asset balances
func (c *Client) Balance(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathBalance, nil, true)
}

// PositionRisk returns positions; an empty symbol returns all
func (c *Client) PositionRisk(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathPositionRisk, Params{"symbol": symbol}, true)
}

// SetLeverage changes initial leverage for a symbol
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, PathLeverage, Params{
		"symbol":   symbol,
		"leverage": strconv.Itoa(leverage),
	}, true)
}

// SetMarginType switches between ISOLATED and CROSSED
func (c *Client) SetMarginType(ctx context.Context, symbol, marginType string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, PathMarginType, Params{
		"symbol":     symbol,
		"marginType": strings.ToUpper(marginType),
	}, true)
}

// ModifyPositionMargin adds (type 1) or reduces (type 2) isolated margin
func (c *Client) ModifyPositionMargin(ctx context.Context, params Params) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, PathPositionMargin, params, true)
}

// PositionMode returns whether hedge mode is enabled
func (c *Client) PositionMode(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathPositionMode, nil, true)
}

// SetPositionMode enables (hedge) or disables (one-way) dual side positions
func (c *Client) SetPositionMode(ctx context.Context, dualSide bool) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, PathPositionMode, Params{
		"dualSidePosition": strconv.FormatBool(dualSide),
	}, true)
}

// SetMultiAssetsMode toggles multi-assets margin
func (c *Client) SetMultiAssetsMode(ctx context.Context, enabled bool) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, PathMultiAssetsMode, Params{
		"multiAssetsMargin": strconv.FormatBool(enabled),
	}, true)
}

// Income returns income history
func (c *Client) Income(ctx context.Context, params Params) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathIncome, params, true)
}

// CommissionRate returns the user's commission rate for a symbol
func (c *Client) CommissionRate(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathCommissionRate, Params{"symbol": symbol}, true)
}

// LeverageBrackets returns notional brackets; an empty symbol returns all
func (c *Client) LeverageBrackets(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathLeverageBracket, Params{"symbol": symbol}, true)
}

// UserTrades returns account trades for a symbol
func (c *Client) UserTrades(ctx context.Context, params Params) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathUserTrades, params, true)
}

// OpenOrders returns open legacy orders; an empty symbol returns all
func (c *Client) OpenOrders(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathOpenOrders, Params{"symbol": symbol}, true)
}

// AllOrders returns legacy order history
func (c *Client) AllOrders(ctx context.Context, params Params) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, PathAllOrders, params, true)
}

// CancelAllOpenOrders cancels every open legacy order on a symbol
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodDelete, PathAllOpenOrders, Params{"symbol": symbol}, true)
}

// CancelBatchOrders cancels up to 10 legacy orders by id or client id
func (c *Client) CancelBatchOrders(ctx context.Context, symbol string, orderIDs []int64, clientOrderIDs []string) (json.RawMessage, error) {
	params := Params{"symbol": symbol}
	if len(orderIDs) > 0 {
		encoded, err := json.Marshal(orderIDs)
		if err != nil {
			return nil, fmt.Errorf("error encoding order ids: %w", err)
		}
		params["orderIdList"] = string(encoded)
	}
	if len(clientOrderIDs) > 0 {
		encoded, err := json.Marshal(clientOrderIDs)
		if err != nil {
			return nil, fmt.Errorf("error encoding client order ids: %w", err)
		}
		params["origClientOrderIdList"] = string(encoded)
	}
	return c.Call(ctx, http.MethodDelete, PathBatchOrders, params, true)
}

// ==================== LISTEN KEY ====================
// Listen keys need the API key header but no signature.

// NewListenKey starts a user data stream
func (c *Client) NewListenKey(ctx context.Context) (string, error) {
	raw, err := c.Do(ctx, http.MethodPost, PathListenKey, nil, SecurityAPIKey)
	if err != nil {
		return "", err
	}

	var resp ListenKeyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("error parsing listen key: %w", err)
	}
	return resp.ListenKey, nil
}

// KeepAliveListenKey extends a listen key by 60 minutes
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	_, err := c.Do(ctx, http.MethodPut, PathListenKey, Params{"listenKey": listenKey}, SecurityAPIKey)
	return err
}

// CloseListenKey closes a user data stream
func (c *Client) CloseListenKey(ctx context.Context, listenKey string) error {
	_, err := c.Do(ctx, http.MethodDelete, PathListenKey, Params{"listenKey": listenKey}, SecurityAPIKey)
	return err
}
