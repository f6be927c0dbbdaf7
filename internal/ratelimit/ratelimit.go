package ratelimit

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

// ErrTooManyRequests is passed to the error handler when a client is over its limit
var ErrTooManyRequests = goerrors.New("too many requests, please try again later", goerrors.CategoryRateLimit).
	WithTextCode("TOO_MANY_REQUESTS").
	WithCode(http.StatusTooManyRequests)

const (
	// DefaultEvery is the refill interval for one request
	DefaultEvery = 20 * time.Second
	// DefaultBurst is how many requests a client can make at once
	DefaultBurst = 5
	// DefaultIdleTTL drops limiters for clients not seen in this window
	DefaultIdleTTL = 30 * time.Minute
)

// Config defines the configuration for the rate limit middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// Every is the interval in which one request token is refilled
	Every time.Duration

	// Burst is the bucket size
	Burst int

	// KeyFunc identifies the client, defaults to the remote IP
	KeyFunc func(router.Context) string

	// Methods lists the HTTP methods that are limited, others pass through
	Methods []string

	// IdleTTL is how long an unused limiter is kept in memory
	IdleTTL time.Duration

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// Now is the clock used by the limiters
	Now func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	clients map[string]*client
	swept   time.Time
}

// NewLimiter creates a Limiter, zero config values take the defaults
func NewLimiter(config ...Config) *Limiter {
	cfg := configDefault(config...)
	return &Limiter{
		cfg:     cfg,
		clients: make(map[string]*client),
		swept:   cfg.Now(),
	}
}

// Allow reports whether the client identified by key may proceed
func (l *Limiter) Allow(key string) bool {
	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Every(l.cfg.Every), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.cfg.IdleTTL {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.cfg.IdleTTL {
			delete(l.clients, key)
		}
	}
	l.swept = now
}

// Middleware returns a router middleware backed by this limiter
func (l *Limiter) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if l.cfg.Skip != nil && l.cfg.Skip(ctx) {
				return hf(ctx)
			}

			method := strings.ToUpper(ctx.Method())
			if !slices.Contains(l.cfg.Methods, method) {
				return hf(ctx)
			}

			if !l.Allow(l.cfg.KeyFunc(ctx)) {
				return l.cfg.ErrorHandler(ctx, ErrTooManyRequests)
			}

			return hf(ctx)
		}
	}
}

// New creates a rate limit middleware with its own limiter
func New(config ...Config) router.MiddlewareFunc {
	return NewLimiter(config...).Middleware()
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Every <= 0 {
		cfg.Every = DefaultEvery
	}

	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}

	if cfg.Methods == nil {
		cfg.Methods = []string{"POST", "PUT", "PATCH", "DELETE"}
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(ctx router.Context) string {
			return ctx.IP()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	return ctx.Status(http.StatusTooManyRequests).SendString(err.Error())
}
