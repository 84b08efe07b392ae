package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/logging"
	"binance-futures-client/internal/metrics"
)

// Executor performs one logical signed or unsigned API call. *binance.Client
// implements it.
type Executor interface {
	Call(ctx context.Context, method, path string, params binance.Params, signed bool) (json.RawMessage, error)
}

// Router places, queries and cancels orders across the legacy and algo endpoints
type Router struct {
	exec   Executor
	cfg    Config
	logger zerolog.Logger
}

// NewRouter creates a Router. cfg is copied and never changes afterwards.
func NewRouter(exec Executor, cfg Config, logger zerolog.Logger) *Router {
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = DefaultConfig().BatchConcurrency
	}
	return &Router{
		exec:   exec,
		cfg:    cfg,
		logger: logger.With().Str("component", "order-router").Logger(),
	}
}

// Config returns the routing configuration
func (r *Router) Config() Config {
	return r.cfg
}

// NewOrder places an order. Conditional types go to the algo endpoint when
// auto-switching is on; legacy types refused with -4120 are retried once there.
// With testOnly the order is validated by the exchange but not placed.
func (r *Router) NewOrder(ctx context.Context, req binance.Params, testOnly bool) (*OrderResult, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}

	category := Classify(req.Get("type"))
	log := logging.OrderContext(logging.FromContext(ctx, r.logger), req.Get("symbol"), req.Get("side"), req.Get("type"))

	if testOnly {
		return r.testOrder(ctx, req, category)
	}

	payload := r.prepare(req)
	decision := Decide(category, r.cfg)

	if decision.Target == EndpointAlgo {
		log.Debug().Msg("Routing conditional order to algo endpoint")
		return r.placeAlgo(ctx, payload, false, log)
	}

	raw, err := r.exec.Call(ctx, http.MethodPost, binance.PathOrder, payload, true)
	if err != nil {
		return r.resolveLegacyError(ctx, payload, category, decision, err, log)
	}

	metrics.RecordOrderRouted(EndpointLegacy.String(), "success")
	res := decodeResult(raw, EndpointLegacy)
	log.Info().Int64("order_id", res.OrderID).Msg("Order placed")
	return res, nil
}

func (r *Router) testOrder(ctx context.Context, req binance.Params, category Category) (*OrderResult, error) {
	if category == CategoryConditional {
		return nil, &LocalValidationError{
			Field:  "type",
			Reason: fmt.Sprintf("%s cannot be sent as a test order", req.Get("type")),
			Err:    ErrNoTestEndpoint,
		}
	}

	raw, err := r.exec.Call(ctx, http.MethodPost, binance.PathTestOrder, req.Clone(), true)
	if err != nil {
		metrics.RecordOrderRouted(EndpointLegacy.String(), "test_error")
		return nil, mapOrderError(err)
	}
	metrics.RecordOrderRouted(EndpointLegacy.String(), "test")

	res := decodeResult(raw, EndpointLegacy)
	res.Test = true
	return res, nil
}

// resolveLegacyError decides what a legacy endpoint failure turns into. It is
// shared by single and batch placement.
func (r *Router) resolveLegacyError(ctx context.Context, payload binance.Params, category Category,
	decision RoutingDecision, err error, log zerolog.Logger) (*OrderResult, error) {

	apiErr, switchToAlgo := isSwitchToAlgo(err)
	switch {
	case switchToAlgo && decision.AllowFallbackToAlgo:
		log.Info().Int("code", apiErr.Code).Msg("Legacy endpoint refused order, rerouting to algo endpoint")
		metrics.RecordOrderRouted(EndpointLegacy.String(), "rerouted")
		return r.placeAlgo(ctx, payload, true, log)

	case switchToAlgo && category == CategoryConditional:
		log.Warn().Msg("Conditional order refused by legacy endpoint and auto-switch is disabled")
		metrics.RecordOrderRouted(EndpointLegacy.String(), "migrated")
		return nil, &ConditionalOrderMigratedError{Request: payload.Clone(), Err: apiErr}

	case switchToAlgo:
		metrics.RecordOrderRouted(EndpointLegacy.String(), "error")
		return nil, apiErr
	}

	metrics.RecordOrderRouted(EndpointLegacy.String(), "error")
	log.Warn().Err(err).Msg("Order rejected")
	return nil, mapOrderError(err)
}

func (r *Router) placeAlgo(ctx context.Context, payload binance.Params, rerouted bool, log zerolog.Logger) (*OrderResult, error) {
	raw, err := r.exec.Call(ctx, http.MethodPost, binance.PathAlgoOrder, algoPayload(payload), true)
	if err != nil {
		metrics.RecordOrderRouted(EndpointAlgo.String(), "error")
		log.Warn().Err(err).Bool("rerouted", rerouted).Msg("Algo order rejected")
		return nil, mapOrderError(err)
	}

	metrics.RecordOrderRouted(EndpointAlgo.String(), "success")
	res := decodeResult(raw, EndpointAlgo)
	res.Rerouted = rerouted
	log.Info().Int64("algo_id", res.AlgoID).Bool("rerouted", rerouted).Msg("Algo order placed")
	return res, nil
}

// prepare copies the request and assigns a client order id when configured
func (r *Router) prepare(req binance.Params) binance.Params {
	payload := req.Clone()
	if r.cfg.ClientOrderIDPrefix != "" && !payload.Has("newClientOrderId") && !payload.Has("clientAlgoId") {
		payload["newClientOrderId"] = GenerateClientOrderID(r.cfg.ClientOrderIDPrefix)
	}
	return payload
}

var requiredOrderFields = []string{"symbol", "side", "type"}

func validateOrder(req binance.Params) error {
	for _, field := range requiredOrderFields {
		if !req.Has(field) {
			return &LocalValidationError{Field: field, Reason: "is required"}
		}
	}
	if id := firstNonEmpty(req.Get("newClientOrderId"), req.Get("clientAlgoId")); id != "" {
		if err := ValidateClientOrderID(id); err != nil {
			return &LocalValidationError{Field: "newClientOrderId", Reason: "is not a valid client order id", Err: err}
		}
	}
	return nil
}

// algoRenames maps legacy order field names to their algo order equivalents
var algoRenames = []struct{ from, to string }{
	{"stopPrice", "triggerPrice"},
	{"newClientOrderId", "clientAlgoId"},
	{"activationPrice", "activatePrice"},
}

// algoPayload converts an order request into an algo order request. A rename only
// happens when the algo name is not already set. Everything else passes through.
func algoPayload(p binance.Params) binance.Params {
	out := p.Clone()
	for _, rn := range algoRenames {
		if v, ok := out[rn.from]; ok && !out.Has(rn.to) {
			out[rn.to] = v
			delete(out, rn.from)
		}
	}
	if !out.Has("algoType") {
		out["algoType"] = string(binance.AlgoTypeConditional)
	}
	return out
}
