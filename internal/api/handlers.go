package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/orders"
)

// NewOrderRequest is the body of POST /api/v1/orders
type NewOrderRequest struct {
	Order map[string]interface{} `json:"order"`
	Test  bool                   `json:"test"`
}

// BatchOrderRequest is the body of POST /api/v1/orders/batch
type BatchOrderRequest struct {
	Orders []map[string]interface{} `json:"orders"`
}

// TrailingStopRequest is the body of POST /api/v1/orders/trailing-stop
type TrailingStopRequest struct {
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	PositionSide     string          `json:"positionSide"`
	Quantity         decimal.Decimal `json:"quantity"`
	CallbackRate     decimal.Decimal `json:"callbackRate"`
	ActivationPrice  decimal.Decimal `json:"activationPrice"`
	WorkingType      string          `json:"workingType"`
	ReduceOnly       bool            `json:"reduceOnly"`
	NewClientOrderID string          `json:"newClientOrderId"`
}

type orderResponse struct {
	Ref    string              `json:"ref"`
	Result *orders.OrderResult `json:"result"`
}

type batchEntryResponse struct {
	Index int                 `json:"index"`
	Ref   string              `json:"ref,omitempty"`
	Order *orders.OrderResult `json:"result,omitempty"`
	Error gin.H               `json:"error,omitempty"`
}

func newOrderResponse(res *orders.OrderResult) orderResponse {
	return orderResponse{Ref: res.Ref(), Result: res}
}

func (s *Server) handleNewOrder(c *gin.Context) {
	var req NewOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}
	params, err := toParams(req.Order)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	res, err := s.orders.NewOrder(c.Request.Context(), params, req.Test)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, newOrderResponse(res))
}

func (s *Server) handleBatchOrders(c *gin.Context) {
	var req BatchOrderRequest
	if err := decodeJSON(c, &req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}

	reqs := make([]binance.Params, len(req.Orders))
	for i, o := range req.Orders {
		p, err := toParams(o)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("order %d: %v", i, err))
			return
		}
		reqs[i] = p
	}

	results, err := s.orders.NewBatchOrders(c.Request.Context(), reqs)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]batchEntryResponse, len(results))
	for i, r := range results {
		out[i] = batchEntryResponse{Index: r.Index, Order: r.Result}
		if r.Result != nil {
			out[i].Ref = r.Result.Ref()
		}
		if r.Err != nil {
			status, body := errorBody(r.Err)
			body["status"] = status
			out[i].Error = body
		}
	}
	successResponse(c, out)
}

func (s *Server) handleTrailingStop(c *gin.Context) {
	var req TrailingStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}

	res, err := s.orders.NewTrailingStopOrder(c.Request.Context(), orders.TrailingStopParams{
		Symbol:           req.Symbol,
		Side:             binance.Side(req.Side),
		PositionSide:     binance.PositionSide(req.PositionSide),
		Quantity:         req.Quantity,
		CallbackRate:     req.CallbackRate,
		ActivationPrice:  req.ActivationPrice,
		WorkingType:      binance.WorkingType(req.WorkingType),
		ReduceOnly:       req.ReduceOnly,
		NewClientOrderID: req.NewClientOrderID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, newOrderResponse(res))
}

func (s *Server) handleQueryOrder(c *gin.Context) {
	params, fallback := queryParams(c)
	res, err := s.orders.QueryOrder(c.Request.Context(), params, fallback)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, newOrderResponse(res))
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	params, fallback := queryParams(c)
	res, err := s.orders.CancelOrder(c.Request.Context(), params, fallback)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, newOrderResponse(res))
}

func (s *Server) handleNewAlgoOrder(c *gin.Context) {
	var body map[string]interface{}
	if err := decodeJSON(c, &body); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error())
		return
	}
	params, err := toParams(body)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	res, err := s.orders.NewAlgoOrder(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, newOrderResponse(res))
}

func (s *Server) handleQueryAlgoOrder(c *gin.Context) {
	params, _ := queryParams(c)
	res, err := s.orders.QueryAlgoOrder(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, newOrderResponse(res))
}

func (s *Server) handleCancelAlgoOrder(c *gin.Context) {
	params, _ := queryParams(c)
	res, err := s.orders.CancelAlgoOrder(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, newOrderResponse(res))
}

func (s *Server) handleOpenAlgoOrders(c *gin.Context) {
	params, _ := queryParams(c)
	list, err := s.orders.OpenAlgoOrders(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, list)
}

func (s *Server) handleCancelOpenAlgoOrders(c *gin.Context) {
	symbol := c.Query("symbol")
	if err := s.orders.CancelOpenAlgoOrders(c.Request.Context(), symbol); err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, gin.H{"symbol": symbol})
}

func (s *Server) handleAllAlgoOrders(c *gin.Context) {
	params, _ := queryParams(c)
	list, err := s.orders.AllAlgoOrders(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	successResponse(c, list)
}

// queryParams copies the URL query into Params. The algoFallback flag is
// consumed and not forwarded.
func queryParams(c *gin.Context) (binance.Params, bool) {
	params := binance.Params{}
	fallback := false
	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "algoFallback" {
			fallback, _ = strconv.ParseBool(values[0])
			continue
		}
		params[key] = values[0]
	}
	return params, fallback
}

// toParams converts a decoded JSON object into wire parameters. Strings, numbers
// and booleans are accepted; nulls are dropped.
func toParams(m map[string]interface{}) (binance.Params, error) {
	params := make(binance.Params, len(m))
	for key, value := range m {
		switch v := value.(type) {
		case nil:
		case string:
			params[key] = v
		case json.Number:
			params[key] = v.String()
		case bool:
			params[key] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("field %s must be a string, number or boolean", key)
		}
	}
	return params, nil
}
