package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"binance-futures-client/internal/binance"
)

type recordedCall struct {
	method string
	path   string
	params binance.Params
	signed bool
}

type scriptedResponse struct {
	raw string
	err error
}

// fakeExecutor replays scripted responses per method and path and records every
// call it receives
type fakeExecutor struct {
	mu       sync.Mutex
	calls    []recordedCall
	queued   map[string][]scriptedResponse
	defaults map[string]scriptedResponse
	delay    time.Duration

	// respond, when set, answers calls it recognises before the scripts are consulted
	respond func(method, path string, params binance.Params) (scriptedResponse, bool)

	inFlight    map[string]int
	maxInFlight map[string]int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		queued:      make(map[string][]scriptedResponse),
		defaults:    make(map[string]scriptedResponse),
		inFlight:    make(map[string]int),
		maxInFlight: make(map[string]int),
	}
}

func callKey(method, path string) string { return method + " " + path }

// on queues one response for the next call to method and path
func (f *fakeExecutor) on(method, path, raw string, err error) *fakeExecutor {
	key := callKey(method, path)
	f.queued[key] = append(f.queued[key], scriptedResponse{raw: raw, err: err})
	return f
}

// always answers every unscripted call to method and path with the same response
func (f *fakeExecutor) always(method, path, raw string, err error) *fakeExecutor {
	f.defaults[callKey(method, path)] = scriptedResponse{raw: raw, err: err}
	return f
}

func (f *fakeExecutor) Call(_ context.Context, method, path string, params binance.Params, signed bool) (json.RawMessage, error) {
	key := callKey(method, path)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: method, path: path, params: params.Clone(), signed: signed})
	f.inFlight[key]++
	if f.inFlight[key] > f.maxInFlight[key] {
		f.maxInFlight[key] = f.inFlight[key]
	}
	var resp scriptedResponse
	var ok bool
	if f.respond != nil {
		resp, ok = f.respond(method, path, params)
	}
	if !ok {
		if q := f.queued[key]; len(q) > 0 {
			resp, ok = q[0], true
			f.queued[key] = q[1:]
		} else {
			resp, ok = f.defaults[key]
		}
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight[key]--
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unexpected call %s", key)
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return json.RawMessage(resp.raw), nil
}

func (f *fakeExecutor) callsTo(path string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func apiError(status, code int, msg string) *binance.APIError {
	return &binance.APIError{StatusCode: status, Code: code, Message: msg}
}

func newTestRouter(exec Executor, mutate func(*Config)) *Router {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(exec, cfg, zerolog.Nop())
}

const (
	post = http.MethodPost
	get  = http.MethodGet
	del  = http.MethodDelete
)
