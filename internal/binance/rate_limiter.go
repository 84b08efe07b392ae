package binance

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RequestPriority defines priority levels for API requests.
// Higher priority requests get a larger share of the weight budget.
type RequestPriority int

const (
	// PriorityCritical - order placement, cancellation, algo orders (95% of budget)
	PriorityCritical RequestPriority = iota
	// PriorityHigh - account and position reads (80%)
	PriorityHigh
	// PriorityNormal - market data (60%)
	PriorityNormal
)

func (p RequestPriority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	default:
		return "UNKNOWN"
	}
}

func (p RequestPriority) threshold() float64 {
	switch p {
	case PriorityCritical:
		return 0.95
	case PriorityHigh:
		return 0.80
	default:
		return 0.60
	}
}

// BanStore shares the exchange-imposed ban deadline between processes using the
// same API key or IP. A zero time means no ban is recorded.
type BanStore interface {
	LoadBan(ctx context.Context) (time.Time, error)
	SaveBan(ctx context.Context, until time.Time) error
}

// Endpoint weights for the futures API
var endpointWeights = map[string]int{
	PathAccount:        5,
	PathPositionRisk:   5,
	PathPositionMode:   30,
	PathOrder:          1,
	PathBatchOrders:    5,
	PathOpenOrders:     1,
	PathAllOpenOrders:  1,
	PathAllOrders:      5,
	PathUserTrades:     5,
	PathAlgoOrder:      1,
	PathOpenAlgoOrders: 1,
	PathAllAlgoOrders:  5,
	PathAlgoOpenOrders: 1,
	PathKlines:         5,
	PathDepth:          5,
	PathTicker24h:      1,
	PathIncome:         30,
	PathExchangeInfo:   1,
}

var endpointPriorities = map[string]RequestPriority{
	PathOrder:          PriorityCritical,
	PathTestOrder:      PriorityCritical,
	PathBatchOrders:    PriorityCritical,
	PathAllOpenOrders:  PriorityCritical,
	PathAlgoOrder:      PriorityCritical,
	PathAlgoOpenOrders: PriorityCritical,
	PathAccount:        PriorityHigh,
	PathBalance:        PriorityHigh,
	PathPositionRisk:   PriorityHigh,
	PathOpenOrders:     PriorityHigh,
	PathOpenAlgoOrders: PriorityHigh,
}

func getEndpointWeight(endpoint string) int {
	if weight, ok := endpointWeights[endpoint]; ok {
		return weight
	}
	return 1
}

func getEndpointPriority(endpoint string) RequestPriority {
	if p, ok := endpointPriorities[endpoint]; ok {
		return p
	}
	return PriorityNormal
}

// RateLimiter implements proactive weight-based rate limiting with a circuit
// breaker that opens when the exchange answers 429/418.
type RateLimiter struct {
	mu sync.Mutex

	circuitOpen    bool
	banUntil       time.Time
	throttledUntil time.Time

	currentWeight int
	maxWeight     int
	weightResetAt time.Time

	requestCount   int
	maxRequests    int
	requestResetAt time.Time

	consecutiveErrors int

	maxWait      time.Duration
	store        BanStore
	lastSync     time.Time
	syncInterval time.Duration

	logger zerolog.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter with the futures default budgets
func NewRateLimiter(logger zerolog.Logger) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		maxWeight:      2400,
		maxRequests:    1200,
		weightResetAt:  now.Add(time.Minute),
		requestResetAt: now.Add(time.Minute),
		maxWait:        30 * time.Second,
		syncInterval:   time.Second,
		logger:         logger.With().Str("component", "rate-limiter").Logger(),
		now:            time.Now,
	}
}

// SetBanStore attaches a shared ban store
func (r *RateLimiter) SetBanStore(store BanStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
}

// SetMaxWait bounds how long Wait blocks for a slot
func (r *RateLimiter) SetMaxWait(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxWait = d
}

// Wait blocks until a request to endpoint fits the budget for its priority.
// It fails fast with ErrCircuitOpen when a ban outlasts the wait bound.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	r.syncBan(ctx)

	deadline := r.now().Add(r.maxWait)
	priority := getEndpointPriority(endpoint)

	for {
		wait, err := r.tryAcquire(endpoint, priority, deadline)
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire records the request weight when it fits, otherwise it returns how
// long to wait before the next attempt
func (r *RateLimiter) tryAcquire(endpoint string, priority RequestPriority, deadline time.Time) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.resetWindows(now)

	if r.circuitOpen {
		if now.Before(r.banUntil) {
			if r.banUntil.After(deadline) {
				return 0, ErrCircuitOpen
			}
			return capWait(r.banUntil.Sub(now)), nil
		}
		r.circuitOpen = false
		r.logger.Info().Msg("Circuit breaker closed (ban expired)")
	}

	if now.Before(r.throttledUntil) {
		if r.throttledUntil.After(deadline) {
			return 0, ErrCircuitOpen
		}
		return capWait(r.throttledUntil.Sub(now)), nil
	}

	weight := getEndpointWeight(endpoint)
	threshold := int(float64(r.maxWeight) * priority.threshold())
	requestThreshold := int(float64(r.maxRequests) * priority.threshold())

	if r.currentWeight+weight > threshold || r.requestCount >= requestThreshold {
		if now.After(deadline) {
			return 0, fmt.Errorf("rate limit: %s budget exhausted for %s", priority, endpoint)
		}
		return capWait(r.weightResetAt.Sub(now)), nil
	}

	r.currentWeight += weight
	r.requestCount++
	return 0, nil
}

func (r *RateLimiter) resetWindows(now time.Time) {
	if now.After(r.weightResetAt) {
		r.currentWeight = 0
		r.weightResetAt = now.Add(time.Minute)
	}
	if now.After(r.requestResetAt) {
		r.requestCount = 0
		r.requestResetAt = now.Add(time.Minute)
	}
}

func capWait(d time.Duration) time.Duration {
	if d <= 0 {
		return 100 * time.Millisecond
	}
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}

// RecordSuccess resets the consecutive error counter
func (r *RateLimiter) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveErrors = 0
}

// RecordRateLimitError opens the circuit breaker. banUntilMs is the ban deadline
// reported by the exchange; zero selects exponential backoff on consecutive errors.
func (r *RateLimiter) RecordRateLimitError(ctx context.Context, banUntilMs int64) {
	r.mu.Lock()
	r.consecutiveErrors++

	var banUntil time.Time
	if banUntilMs > 0 {
		banUntil = time.UnixMilli(banUntilMs)
	} else {
		backoff := time.Duration(1<<uint(r.consecutiveErrors)) * time.Minute
		if backoff > 30*time.Minute {
			backoff = 30 * time.Minute
		}
		banUntil = r.now().Add(backoff)
	}
	errorsSeen := r.consecutiveErrors
	r.mu.Unlock()

	r.openCircuit(ctx, banUntil, errorsSeen)
}

// RecordThrottle pauses requests after a 429 that carries no ban deadline.
// retryAfter is the server's Retry-After; zero selects a pause of 1s doubling per
// consecutive error, bounded by the wait limit. A Retry-After longer than the
// wait limit opens the circuit instead.
func (r *RateLimiter) RecordThrottle(ctx context.Context, retryAfter time.Duration) {
	r.mu.Lock()
	r.consecutiveErrors++
	errorsSeen := r.consecutiveErrors
	now := r.now()

	if retryAfter > 0 && retryAfter > r.maxWait {
		r.mu.Unlock()
		r.openCircuit(ctx, now.Add(retryAfter), errorsSeen)
		return
	}

	pause := retryAfter
	if pause <= 0 {
		shift := errorsSeen - 1
		if shift > 4 {
			shift = 4
		}
		pause = time.Duration(1<<uint(shift)) * time.Second
		if r.maxWait > 0 && pause > r.maxWait {
			pause = r.maxWait
		}
	}
	if until := now.Add(pause); until.After(r.throttledUntil) {
		r.throttledUntil = until
	}
	r.mu.Unlock()

	r.logger.Warn().
		Dur("pause", pause).
		Int("consecutive_errors", errorsSeen).
		Msg("Request rate throttled")
}

func (r *RateLimiter) openCircuit(ctx context.Context, banUntil time.Time, errorsSeen int) {
	r.mu.Lock()
	r.circuitOpen = true
	r.banUntil = banUntil
	store := r.store
	r.mu.Unlock()

	r.logger.Warn().
		Time("ban_until", banUntil).
		Int("consecutive_errors", errorsSeen).
		Msg("Circuit breaker open")

	if store != nil {
		if err := store.SaveBan(ctx, banUntil); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to publish ban to shared store")
		}
	}
}

// UpdateFromHeaders adopts the exchange-reported used weight when it is higher
func (r *RateLimiter) UpdateFromHeaders(usedWeight1m int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if usedWeight1m > r.currentWeight {
		r.currentWeight = usedWeight1m
	}

	usagePct := float64(r.currentWeight) / float64(r.maxWeight) * 100
	if usagePct > 60 {
		r.logger.Debug().
			Int("weight", r.currentWeight).
			Int("max_weight", r.maxWeight).
			Float64("usage_pct", usagePct).
			Msg("Weight usage high")
	}
}

// IsCircuitOpen returns true while a ban is in force
func (r *RateLimiter) IsCircuitOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.circuitOpen && r.now().Before(r.banUntil)
}

// syncBan pulls a ban recorded by another process, at most once per syncInterval
func (r *RateLimiter) syncBan(ctx context.Context) {
	r.mu.Lock()
	store := r.store
	if store == nil || r.now().Sub(r.lastSync) < r.syncInterval {
		r.mu.Unlock()
		return
	}
	r.lastSync = r.now()
	r.mu.Unlock()

	until, err := store.LoadBan(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Shared ban lookup failed")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if until.After(r.now()) && until.After(r.banUntil) {
		r.circuitOpen = true
		r.banUntil = until
		r.logger.Warn().Time("ban_until", until).Msg("Adopted ban from shared store")
	}
}

// Status is a snapshot of limiter state
type Status struct {
	CircuitOpen       bool      `json:"circuit_open"`
	BanUntil          time.Time `json:"ban_until,omitempty"`
	ThrottledUntil    time.Time `json:"throttled_until,omitempty"`
	CurrentWeight     int       `json:"current_weight"`
	MaxWeight         int       `json:"max_weight"`
	WeightUsagePct    float64   `json:"weight_usage_pct"`
	RequestCount      int       `json:"request_count"`
	MaxRequests       int       `json:"max_requests"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	ResetInSeconds    int       `json:"reset_in_seconds"`
}

// GetStatus returns the current limiter state
func (r *RateLimiter) GetStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset := r.weightResetAt.Sub(r.now())
	if reset < 0 {
		reset = 0
	}
	s := Status{
		CircuitOpen:       r.circuitOpen && r.now().Before(r.banUntil),
		CurrentWeight:     r.currentWeight,
		MaxWeight:         r.maxWeight,
		WeightUsagePct:    float64(r.currentWeight) / float64(r.maxWeight) * 100,
		RequestCount:      r.requestCount,
		MaxRequests:       r.maxRequests,
		ConsecutiveErrors: r.consecutiveErrors,
		ResetInSeconds:    int(reset.Seconds()),
	}
	if s.CircuitOpen {
		s.BanUntil = r.banUntil
	}
	if r.now().Before(r.throttledUntil) {
		s.ThrottledUntil = r.throttledUntil
	}
	return s
}

var banUntilPattern = regexp.MustCompile(`banned until (\d+)`)

// ParseBanUntilFromError extracts the ban deadline from an error message such as
// "Way too many requests; IP banned until 1766824120342."
func ParseBanUntilFromError(errMsg string) int64 {
	m := banUntilPattern.FindStringSubmatch(errMsg)
	if m == nil {
		return 0
	}
	banUntil, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}

	now := time.Now()
	if banUntil > now.UnixMilli() && banUntil < now.Add(24*time.Hour).UnixMilli() {
		return banUntil
	}
	return 0
}
