package binance

import (
	"net/url"

	"github.com/shopspring/decimal"
)

// Params holds request parameters exactly as they go on the wire.
// An order request is a Params value; the fields required depend on its type.
type Params map[string]string

// Clone returns an independent copy
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns the value for key, or "" when absent
func (p Params) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Has reports whether key is present with a non-empty value
func (p Params) Has(key string) bool {
	return p.Get(key) != ""
}

// Compact returns a copy without empty values so they are neither signed nor sent
func (p Params) Compact() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// encode returns the canonical query string (keys sorted)
func (p Params) encode() string {
	values := url.Values{}
	for k, v := range p {
		values.Set(k, v)
	}
	return values.Encode()
}

// OrderParams is a typed builder for order requests
type OrderParams struct {
	Symbol           string
	Side             Side
	PositionSide     PositionSide
	Type             OrderType
	Quantity         decimal.Decimal
	Price            decimal.Decimal
	StopPrice        decimal.Decimal
	ActivationPrice  decimal.Decimal
	CallbackRate     decimal.Decimal
	TimeInForce      TimeInForce
	WorkingType      WorkingType
	ReduceOnly       bool
	ClosePosition    bool
	PriceProtect     bool
	NewClientOrderID string
}

// Params converts the builder into wire parameters
func (o OrderParams) Params() Params {
	p := Params{
		"symbol": o.Symbol,
		"side":   string(o.Side),
		"type":   string(o.Type),
	}

	setDecimal(p, "quantity", o.Quantity)
	setDecimal(p, "price", o.Price)
	setDecimal(p, "stopPrice", o.StopPrice)
	setDecimal(p, "activationPrice", o.ActivationPrice)
	setDecimal(p, "callbackRate", o.CallbackRate)

	if o.PositionSide != "" {
		p["positionSide"] = string(o.PositionSide)
	}
	if o.TimeInForce != "" {
		p["timeInForce"] = string(o.TimeInForce)
	} else if o.Type == OrderTypeLimit {
		p["timeInForce"] = string(TimeInForceGTC)
	}
	if o.WorkingType != "" {
		p["workingType"] = string(o.WorkingType)
	}
	if o.ReduceOnly {
		p["reduceOnly"] = "true"
	}
	if o.ClosePosition {
		p["closePosition"] = "true"
	}
	if o.PriceProtect {
		p["priceProtect"] = "true"
	}
	if o.NewClientOrderID != "" {
		p["newClientOrderId"] = o.NewClientOrderID
	}
	return p.Compact()
}

func setDecimal(p Params, key string, d decimal.Decimal) {
	if d.IsPositive() {
		p[key] = d.String()
	}
}
