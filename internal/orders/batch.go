package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/logging"
	"binance-futures-client/internal/metrics"
)

type batchEntry struct {
	index    int
	payload  binance.Params
	category Category
	decision RoutingDecision
}

// NewBatchOrders places several orders at once. Legacy-routed entries share one
// batchOrders call; algo-routed entries are sent one by one alongside it. The
// result slice has one entry per request, in request order. Per-entry failures are
// reported in BatchResult.Err; the returned error is only set for an empty batch.
func (r *Router) NewBatchOrders(ctx context.Context, reqs []binance.Params) ([]BatchResult, error) {
	if len(reqs) == 0 {
		return nil, &LocalValidationError{Field: "batchOrders", Reason: "must contain at least one order"}
	}

	results := make([]BatchResult, len(reqs))
	var legacy, algo []batchEntry

	for i, req := range reqs {
		results[i].Index = i
		if err := validateOrder(req); err != nil {
			results[i].Err = err
			continue
		}

		category := Classify(req.Get("type"))
		entry := batchEntry{
			index:    i,
			payload:  r.prepare(req),
			category: category,
			decision: Decide(category, r.cfg),
		}
		if entry.decision.Target == EndpointAlgo {
			algo = append(algo, entry)
		} else {
			legacy = append(legacy, entry)
		}
	}

	metrics.RecordBatch(len(legacy), len(algo))
	log := logging.FromContext(ctx, r.logger)
	log.Debug().
		Int("orders", len(reqs)).
		Int("legacy", len(legacy)).
		Int("algo", len(algo)).
		Msg("Splitting batch")

	// Each goroutine writes only its own result slots.
	var g errgroup.Group
	limit := r.cfg.BatchConcurrency
	if len(legacy) > 0 {
		limit++
	}
	g.SetLimit(limit)

	if len(legacy) > 0 {
		g.Go(func() error {
			r.placeLegacyBatch(ctx, legacy, results)
			return nil
		})
	}

	for _, entry := range algo {
		entry := entry
		g.Go(func() error {
			entryLog := logging.OrderContext(log, entry.payload.Get("symbol"), entry.payload.Get("side"), entry.payload.Get("type"))
			res, err := r.placeAlgo(ctx, entry.payload, false, entryLog)
			results[entry.index].Result = res
			results[entry.index].Err = err
			return nil
		})
	}

	_ = g.Wait()
	return results, nil
}

func (r *Router) placeLegacyBatch(ctx context.Context, entries []batchEntry, results []BatchResult) {
	log := logging.FromContext(ctx, r.logger)

	orders := make([]binance.Params, len(entries))
	for i, e := range entries {
		orders[i] = e.payload.Compact()
	}

	fail := func(err error) {
		metrics.RecordOrderRouted(EndpointLegacy.String(), "error")
		for _, e := range entries {
			results[e.index].Err = err
		}
	}

	encoded, err := json.Marshal(orders)
	if err != nil {
		fail(fmt.Errorf("error encoding batch orders: %w", err))
		return
	}

	raw, err := r.exec.Call(ctx, http.MethodPost, binance.PathBatchOrders, binance.Params{"batchOrders": string(encoded)}, true)
	if err != nil {
		log.Warn().Err(err).Int("orders", len(entries)).Msg("Batch order call failed")
		fail(err)
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		fail(fmt.Errorf("error parsing batch response: %w", err))
		return
	}

	for i, e := range entries {
		if i >= len(items) {
			results[e.index].Err = fmt.Errorf("batch response has no entry for order %d", e.index)
			continue
		}

		if apiErr := entryError(items[i]); apiErr != nil {
			entryLog := logging.OrderContext(log, e.payload.Get("symbol"), e.payload.Get("side"), e.payload.Get("type"))
			res, err := r.resolveLegacyError(ctx, e.payload, e.category, e.decision, apiErr, entryLog)
			results[e.index].Result = res
			results[e.index].Err = err
			continue
		}

		metrics.RecordOrderRouted(EndpointLegacy.String(), "success")
		results[e.index].Result = decodeResult(items[i], EndpointLegacy)
	}
}
