// Package orders routes futures orders between the legacy order endpoint and the
// algo order endpoint, and resolves queries and cancels across both.
package orders

import (
	"strings"

	"binance-futures-client/internal/binance"
)

// Category is the routing class of an order type
type Category int

const (
	CategoryLegacy Category = iota
	CategoryConditional
)

func (c Category) String() string {
	if c == CategoryConditional {
		return "CONDITIONAL"
	}
	return "LEGACY"
}

var conditionalTypes = map[binance.OrderType]struct{}{
	binance.OrderTypeStop:             {},
	binance.OrderTypeStopMarket:       {},
	binance.OrderTypeTakeProfit:       {},
	binance.OrderTypeTakeProfitMarket: {},
	binance.OrderTypeTrailingStop:     {},
}

// Classify maps an order type to its category. Unknown and empty types are legacy.
func Classify(orderType string) Category {
	if _, ok := conditionalTypes[normalizeType(orderType)]; ok {
		return CategoryConditional
	}
	return CategoryLegacy
}

func normalizeType(orderType string) binance.OrderType {
	return binance.OrderType(strings.ToUpper(strings.TrimSpace(orderType)))
}

// Endpoint is one of the two order subsystems
type Endpoint int

const (
	EndpointLegacy Endpoint = iota
	EndpointAlgo
)

func (e Endpoint) String() string {
	if e == EndpointAlgo {
		return "algo"
	}
	return "legacy"
}

// MarshalText renders the endpoint as "legacy" or "algo"
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Config controls routing. It is copied into the Router and never mutated.
type Config struct {
	// AutoSwitchConditionalToAlgo sends conditional types straight to the algo
	// endpoint and reroutes legacy types refused with -4120.
	AutoSwitchConditionalToAlgo bool
	// AttemptAlgoOnNotFound makes every query/cancel try the other endpoint once
	// after a not-found response.
	AttemptAlgoOnNotFound bool
	// BatchConcurrency bounds concurrent algo sends within one batch.
	BatchConcurrency int
	// ClientOrderIDPrefix, when set, assigns a generated newClientOrderId to
	// orders that carry none.
	ClientOrderIDPrefix string
}

// DefaultConfig returns the default routing configuration
func DefaultConfig() Config {
	return Config{
		AutoSwitchConditionalToAlgo: true,
		AttemptAlgoOnNotFound:       false,
		BatchConcurrency:            4,
	}
}

// RoutingDecision is where an order goes first and whether a -4120 refusal may be
// rerouted to the algo endpoint
type RoutingDecision struct {
	Target              Endpoint
	AllowFallbackToAlgo bool
}

// Decide derives the routing decision for a category
func Decide(category Category, cfg Config) RoutingDecision {
	switch {
	case category == CategoryConditional && cfg.AutoSwitchConditionalToAlgo:
		return RoutingDecision{Target: EndpointAlgo}
	case category == CategoryConditional:
		return RoutingDecision{Target: EndpointLegacy}
	default:
		return RoutingDecision{Target: EndpointLegacy, AllowFallbackToAlgo: cfg.AutoSwitchConditionalToAlgo}
	}
}
