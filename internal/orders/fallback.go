package orders

import (
	"context"
	"net/http"

	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/logging"
	"binance-futures-client/internal/metrics"
)

// identifierPairs maps legacy identifier fields to their algo equivalents
var identifierPairs = []struct{ legacy, algo string }{
	{"orderId", "algoId"},
	{"origClientOrderId", "clientAlgoId"},
}

// QueryOrder fetches an order. The algo endpoint is used first when the params
// carry an algo identifier. A not-found answer is retried once on the other
// endpoint when allowAlgoFallback or AttemptAlgoOnNotFound is set.
func (r *Router) QueryOrder(ctx context.Context, params binance.Params, allowAlgoFallback bool) (*OrderResult, error) {
	return r.resolve(ctx, "query", http.MethodGet, params, allowAlgoFallback)
}

// CancelOrder cancels an order with the same endpoint selection and fallback as
// QueryOrder
func (r *Router) CancelOrder(ctx context.Context, params binance.Params, allowAlgoFallback bool) (*OrderResult, error) {
	return r.resolve(ctx, "cancel", http.MethodDelete, params, allowAlgoFallback)
}

func (r *Router) resolve(ctx context.Context, operation, method string, params binance.Params, allowAlgoFallback bool) (*OrderResult, error) {
	if !params.Has("symbol") {
		return nil, &LocalValidationError{Field: "symbol", Reason: "is required"}
	}

	params = normalizeIdentifiers(params)
	primary := primaryEndpoint(params)
	raw, err := r.exec.Call(ctx, method, endpointPath(primary), params.Clone(), true)
	if err == nil {
		return decodeResult(raw, primary), nil
	}
	if !binance.IsNotFound(err) || !(allowAlgoFallback || r.cfg.AttemptAlgoOnNotFound) {
		return nil, err
	}

	other := EndpointLegacy
	if primary == EndpointLegacy {
		other = EndpointAlgo
	}
	log := logging.FromContext(ctx, r.logger).With().
		Str("operation", operation).
		Str("symbol", params.Get("symbol")).
		Str("from", primary.String()).
		Str("to", other.String()).
		Logger()
	log.Info().Err(err).Msg("Order not found, trying other endpoint")

	raw, err = r.exec.Call(ctx, method, endpointPath(other), renameIdentifiers(params, other), true)
	metrics.RecordFallback(operation, other.String(), err == nil)
	if err != nil {
		log.Warn().Err(err).Msg("Fallback lookup failed")
		return nil, err
	}
	return decodeResult(raw, other), nil
}

// normalizeIdentifiers returns a copy with clientOrderId moved to origClientOrderId,
// the name the order endpoint looks up by. An explicit origClientOrderId wins.
func normalizeIdentifiers(params binance.Params) binance.Params {
	out := params.Clone()
	if v, ok := out["clientOrderId"]; ok {
		delete(out, "clientOrderId")
		if !out.Has("origClientOrderId") {
			out["origClientOrderId"] = v
		}
	}
	return out
}

func primaryEndpoint(params binance.Params) Endpoint {
	if params.Has("algoId") || params.Has("clientAlgoId") {
		return EndpointAlgo
	}
	return EndpointLegacy
}

func endpointPath(e Endpoint) string {
	if e == EndpointAlgo {
		return binance.PathAlgoOrder
	}
	return binance.PathOrder
}

// renameIdentifiers moves identifier fields to the names used by target. Fields
// the caller did not supply are never added.
func renameIdentifiers(params binance.Params, target Endpoint) binance.Params {
	out := params.Clone()
	for _, pair := range identifierPairs {
		from, to := pair.legacy, pair.algo
		if target == EndpointLegacy {
			from, to = pair.algo, pair.legacy
		}
		if v, ok := out[from]; ok {
			delete(out, from)
			if !out.Has(to) {
				out[to] = v
			}
		}
	}
	return out
}
