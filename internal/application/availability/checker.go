// Package availability implements the debounced "is this value already
// registered?" checks used by the registration wizard.
//
// A Checker owns one field. Every Update starts a new generation: the
// pending quiet-period timer is stopped, the in-flight lookup's context is
// cancelled, and a lookup result is only ever applied when its generation
// is still the current one. A stale lookup can therefore never overwrite a
// result produced for later input.
package availability

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MinLength is the shortest value worth checking.
const MinLength = 3

// Defaults
const (
	DefaultQuiet   = 500 * time.Millisecond
	DefaultTimeout = 5 * time.Second
)

// ErrSuperseded is returned by Wait when a newer Update replaced the
// awaited ticket.
var ErrSuperseded = errors.New("superseded by a newer value")

// Outcome of a check.
type Outcome string

const (
	Neutral      Outcome = "neutral"
	InvalidShape Outcome = "invalid"
	Available    Outcome = "available"
	Taken        Outcome = "taken"
	LookupError  Outcome = "error"
)

// Result is the observable state of a Checker.
type Result struct {
	Outcome    Outcome `json:"outcome"`
	Message    string  `json:"message,omitempty"`
	Validating bool    `json:"validating"`
}

// IsValid is true only for a value that passed the shape check and was
// not found in the store.
func (r Result) IsValid() bool { return r.Outcome == Available }

// Lookup reports whether value already exists in the store.
type Lookup interface {
	Exists(ctx context.Context, value string) (bool, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, value string) (bool, error)

// Exists calls f.
func (f LookupFunc) Exists(ctx context.Context, value string) (bool, error) {
	return f(ctx, value)
}

// Config configures a Checker. Lookup and Shape are required.
type Config struct {
	Field   string
	Lookup  Lookup
	Shape   func(string) bool
	Quiet   time.Duration
	Timeout time.Duration

	InvalidMessage string
	TakenMessage   string
	ErrorMessage   string

	// Observe, when set, is called once for every applied result.
	Observe func(field string, outcome Outcome)
}

// Ticket identifies one Update.
type Ticket uint64

type generation struct {
	id         Ticket
	result     Result
	done       chan struct{}
	superseded chan struct{}
}

// Checker is safe for concurrent use.
type Checker struct {
	cfg Config

	mu     sync.Mutex
	cur    *generation
	last   Result
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

// New returns a neutral Checker.
func New(cfg Config) *Checker {
	if cfg.Quiet <= 0 {
		cfg.Quiet = DefaultQuiet
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InvalidMessage == "" {
		cfg.InvalidMessage = "formato inválido"
	}
	if cfg.TakenMessage == "" {
		cfg.TakenMessage = "ya está registrado"
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = "no se pudo verificar, intenta de nuevo"
	}
	c := &Checker{cfg: cfg, last: Result{Outcome: Neutral}}
	c.cur = &generation{done: make(chan struct{}), superseded: make(chan struct{})}
	c.settle(c.cur, Result{Outcome: Neutral})
	return c
}

// Field returns the configured field name.
func (c *Checker) Field() string { return c.cfg.Field }

// Result returns the most recently applied result.
func (c *Checker) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Update records a new value and returns its ticket. Short or empty
// values, and enabled=false, reset the checker to neutral; a value with
// the wrong shape settles immediately as invalid; anything else is looked
// up once the quiet period passes without another Update.
func (c *Checker) Update(value string, enabled bool) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.advance()
	value = strings.TrimSpace(value)

	switch {
	case c.closed, !enabled, value == "", utf8.RuneCountInString(value) < MinLength:
		c.apply(g, Result{Outcome: Neutral})
	case !c.cfg.Shape(value):
		c.apply(g, Result{Outcome: InvalidShape, Message: c.cfg.InvalidMessage})
	default:
		c.last = Result{Outcome: Neutral, Validating: true}
		c.timer = time.AfterFunc(c.cfg.Quiet, func() { c.run(g, value) })
	}
	return g.id
}

// Wait blocks until the ticket's result settles and returns it. It returns
// ErrSuperseded once a newer Update replaces the ticket, and ctx.Err() if
// ctx ends first.
func (c *Checker) Wait(ctx context.Context, t Ticket) (Result, error) {
	c.mu.Lock()
	g := c.cur
	c.mu.Unlock()
	if g.id != t {
		return Result{}, ErrSuperseded
	}
	select {
	case <-g.done:
		return g.result, nil
	case <-g.superseded:
		return Result{}, ErrSuperseded
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Check is Update followed by Wait.
func (c *Checker) Check(ctx context.Context, value string, enabled bool) (Result, error) {
	return c.Wait(ctx, c.Update(value, enabled))
}

// Close stops any pending work. Later updates settle as neutral.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.advance()
	c.closed = true
	c.apply(g, Result{Outcome: Neutral})
}

// advance starts a new generation, invalidating the current one.
// PRE: c.mu held
func (c *Checker) advance() *generation {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	prev := c.cur
	close(prev.superseded)
	c.cur = &generation{
		id:         prev.id + 1,
		done:       make(chan struct{}),
		superseded: make(chan struct{}),
	}
	return c.cur
}

// run performs the lookup for generation g.
func (c *Checker) run(g *generation, value string) {
	c.mu.Lock()
	if c.cur != g {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	exists, err := c.cfg.Lookup.Exists(ctx, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != g {
		return
	}
	c.cancel = nil
	switch {
	case err != nil:
		c.apply(g, Result{Outcome: LookupError, Message: c.cfg.ErrorMessage})
	case exists:
		c.apply(g, Result{Outcome: Taken, Message: c.cfg.TakenMessage})
	default:
		c.apply(g, Result{Outcome: Available})
	}
}

// apply settles g with r and publishes it.
// PRE: c.mu held, g is current
func (c *Checker) apply(g *generation, r Result) {
	c.last = r
	c.settle(g, r)
	if c.cfg.Observe != nil && r.Outcome != Neutral {
		c.cfg.Observe(c.cfg.Field, r.Outcome)
	}
}

func (c *Checker) settle(g *generation, r Result) {
	g.result = r
	close(g.done)
}
