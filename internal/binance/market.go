package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Market data pass-throughs. These are public and return the raw payload.

// Ping tests connectivity
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodGet, PathPing, nil, SecurityNone)
	return err
}

// ServerTime returns the exchange clock
func (c *Client) ServerTime(ctx context.Context) (*ServerTime, error) {
	raw, err := c.Do(ctx, http.MethodGet, PathTime, nil, SecurityNone)
	if err != nil {
		return nil, err
	}

	var st ServerTime
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("error parsing server time: %w", err)
	}
	return &st, nil
}

// ExchangeInfo returns trading rules and symbol information
func (c *Client) ExchangeInfo(ctx context.Context) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathExchangeInfo, nil, SecurityNone)
}

// OrderBook returns depth for a symbol; limit <= 0 uses the server default
func (c *Client) OrderBook(ctx context.Context, symbol string, limit int) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathDepth, withLimit(Params{"symbol": symbol}, limit), SecurityNone)
}

// RecentTrades returns recent public trades
func (c *Client) RecentTrades(ctx context.Context, symbol string, limit int) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathTrades, withLimit(Params{"symbol": symbol}, limit), SecurityNone)
}

// AggTrades returns compressed trades
func (c *Client) AggTrades(ctx context.Context, params Params) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathAggTrades, params, SecurityNone)
}

// Klines returns candlesticks
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	params := withLimit(Params{"symbol": symbol, "interval": interval}, limit)
	return c.Do(ctx, http.MethodGet, PathKlines, params, SecurityNone)
}

// MarkPriceKlines returns mark price candlesticks
func (c *Client) MarkPriceKlines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	params := withLimit(Params{"symbol": symbol, "interval": interval}, limit)
	return c.Do(ctx, http.MethodGet, PathMarkPriceKlines, params, SecurityNone)
}

// PremiumIndex returns mark price and funding; an empty symbol returns all
func (c *Client) PremiumIndex(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathPremiumIndex, Params{"symbol": symbol}, SecurityNone)
}

// FundingRateHistory returns historical funding rates
func (c *Client) FundingRateHistory(ctx context.Context, symbol string, limit int) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathFundingRate, withLimit(Params{"symbol": symbol}, limit), SecurityNone)
}

// Ticker24h returns 24h statistics; an empty symbol returns all
func (c *Client) Ticker24h(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathTicker24h, Params{"symbol": symbol}, SecurityNone)
}

// TickerPrice returns the latest price; an empty symbol returns all
func (c *Client) TickerPrice(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathTickerPrice, Params{"symbol": symbol}, SecurityNone)
}

// BookTicker returns best bid/ask; an empty symbol returns all
func (c *Client) BookTicker(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathBookTicker, Params{"symbol": symbol}, SecurityNone)
}

// OpenInterest returns current open interest
func (c *Client) OpenInterest(ctx context.Context, symbol string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, PathOpenInterest, Params{"symbol": symbol}, SecurityNone)
}

// FuturesData queries one of the /futures/data statistics endpoints
// (open interest history, long/short ratios, taker volume).
func (c *Client) FuturesData(ctx context.Context, path, symbol, period string, limit int) (json.RawMessage, error) {
	params := withLimit(Params{"symbol": symbol, "period": period}, limit)
	return c.Do(ctx, http.MethodGet, path, params, SecurityNone)
}

func withLimit(p Params, limit int) Params {
	if limit > 0 {
		p["limit"] = strconv.Itoa(limit)
	}
	return p
}
