// Package cache provides Redis-backed shared state for gateway replicas.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"binance-futures-client/config"
)

// ErrUnavailable is returned while Redis is marked unhealthy
var ErrUnavailable = errors.New("redis unavailable")

// DefaultBanKey is the key holding the ban deadline in unix milliseconds
const DefaultBanKey = "futures:ratelimit:ban_until"

// saveLaterBan writes the deadline only when it is later than the stored one.
// KEYS[1] ban key, ARGV[1] deadline in unix ms, ARGV[2] ttl in ms.
var saveLaterBan = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current ~= nil and current >= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// BanStore shares the exchange ban deadline through Redis with graceful
// degradation. When Redis is down, calls fail fast and each replica falls back to
// its own limiter state.
type BanStore struct {
	client       *redis.Client
	key          string
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewBanStore connects to Redis. A failed initial ping returns the store in
// degraded mode rather than an error.
func NewBanStore(cfg config.RedisConfig, logger zerolog.Logger) (*BanStore, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	key := cfg.BanKey
	if key == "" {
		key = DefaultBanKey
	}

	s := &BanStore{
		client:        client,
		key:           key,
		logger:        logger.With().Str("component", "ban-store").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Str("addr", cfg.Address).Msg("Initial Redis connection failed, running degraded")
		s.lastCheck = time.Now()
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.logger.Info().Str("addr", cfg.Address).Msg("Redis connected")
	return s, nil
}

// IsHealthy returns whether Redis is currently available
func (s *BanStore) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// LoadBan returns the shared ban deadline, or the zero time when none is set
func (s *BanStore) LoadBan(ctx context.Context) (time.Time, error) {
	if !s.available(ctx) {
		return time.Time{}, ErrUnavailable
	}

	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		s.recordSuccess()
		return time.Time{}, nil
	}
	if err != nil {
		s.recordFailure(err)
		return time.Time{}, fmt.Errorf("error reading ban deadline: %w", err)
	}
	s.recordSuccess()

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ban deadline %q: %w", val, err)
	}
	return time.UnixMilli(ms), nil
}

// SaveBan publishes a ban deadline. A later deadline already stored by another
// replica is kept. The key expires with the ban.
func (s *BanStore) SaveBan(ctx context.Context, until time.Time) error {
	ttl := time.Until(until)
	if ttl < time.Millisecond {
		return nil
	}
	if !s.available(ctx) {
		return ErrUnavailable
	}

	written, err := saveLaterBan.Run(ctx, s.client, []string{s.key},
		strconv.FormatInt(until.UnixMilli(), 10), ttl.Milliseconds()).Int()
	if err != nil {
		s.recordFailure(err)
		return fmt.Errorf("error writing ban deadline: %w", err)
	}
	s.recordSuccess()
	if written == 0 {
		s.logger.Debug().Time("ban_until", until).Msg("Longer ban already shared, keeping it")
	}
	return nil
}

// Close releases the Redis connection pool
func (s *BanStore) Close() error {
	return s.client.Close()
}

// available reports whether a call should be attempted, re-probing an unhealthy
// connection at most once per checkInterval
func (s *BanStore) available(ctx context.Context) bool {
	s.mu.RLock()
	healthy := s.healthy
	shouldCheck := !healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()

	if healthy {
		return true
	}
	if !shouldCheck {
		return false
	}

	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return false
	}
	s.recordSuccess()
	return true
}

func (s *BanStore) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures && s.healthy {
		s.logger.Warn().Err(err).Int("failures", s.failureCount).Msg("Redis marked unhealthy")
		s.healthy = false
		s.lastCheck = time.Now()
	}
}

func (s *BanStore) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.logger.Info().Msg("Redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}
