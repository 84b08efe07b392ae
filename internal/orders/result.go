package orders

import (
	"encoding/json"
	"strconv"

	"binance-futures-client/internal/binance"
)

// OrderResult is the outcome of a placement, query or cancel
type OrderResult struct {
	Endpoint      Endpoint        `json:"endpoint"`
	Rerouted      bool            `json:"rerouted"`
	Test          bool            `json:"test,omitempty"`
	OrderID       int64           `json:"orderId,omitempty"`
	AlgoID        int64           `json:"algoId,omitempty"`
	ClientOrderID string          `json:"clientOrderId,omitempty"`
	Symbol        string          `json:"symbol,omitempty"`
	Status        string          `json:"status,omitempty"`
	Type          string          `json:"type,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// ViaAlgo reports whether the order lives on the algo endpoint
func (r *OrderResult) ViaAlgo() bool {
	return r.Endpoint == EndpointAlgo
}

// Ref returns "algo:<id>" or "order:<id>"
func (r *OrderResult) Ref() string {
	if r.ViaAlgo() {
		return "algo:" + strconv.FormatInt(r.AlgoID, 10)
	}
	return "order:" + strconv.FormatInt(r.OrderID, 10)
}

// BatchResult is one entry of a batch placement, aligned with the input index
type BatchResult struct {
	Index  int
	Result *OrderResult
	Err    error
}

// orderFields covers both the legacy order and algo order response shapes
type orderFields struct {
	Code          *int   `json:"code"`
	Msg           string `json:"msg"`
	OrderID       int64  `json:"orderId"`
	AlgoID        int64  `json:"algoId"`
	ClientOrderID string `json:"clientOrderId"`
	ClientAlgoID  string `json:"clientAlgoId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	AlgoStatus    string `json:"algoStatus"`
	Type          string `json:"type"`
	OrderType     string `json:"orderType"`
}

func decodeResult(raw json.RawMessage, endpoint Endpoint) *OrderResult {
	res := &OrderResult{Endpoint: endpoint, Raw: raw}

	var f orderFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return res
	}

	res.OrderID = f.OrderID
	res.AlgoID = f.AlgoID
	res.Symbol = f.Symbol
	res.ClientOrderID = firstNonEmpty(f.ClientOrderID, f.ClientAlgoID)
	res.Status = firstNonEmpty(f.Status, f.AlgoStatus)
	res.Type = firstNonEmpty(f.Type, f.OrderType)
	return res
}

// entryError returns the per-entry error carried by a batch response element
func entryError(raw json.RawMessage) *binance.APIError {
	var f orderFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	if f.Code == nil || *f.Code == 0 {
		return nil
	}
	msg := f.Msg
	if msg == "" {
		msg = string(raw)
	}
	return &binance.APIError{StatusCode: 400, Code: *f.Code, Message: msg, Body: string(raw)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
