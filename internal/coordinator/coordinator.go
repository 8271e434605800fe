package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/infrastructure/logging"
)

// consecutiveFailureThreshold is how many refreshes in a row must fail
// before entities backed by this coordinator are marked unavailable.
// Transient blips (a single dropped poll) do not flap availability.
const consecutiveFailureThreshold = 3

// refreshDebounce collapses bursts of RequestRefresh calls, so a command
// fan-out touching ten zones triggers one poll, not ten.
const refreshDebounce = 250 * time.Millisecond

// FetchFunc retrieves fresh data from the vendor device or service.
// Returning an error wrapping configentry.ErrAuthFailed stops the
// coordinator permanently and reports the auth failure.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Listener receives the fetched data after every successful refresh.
type Listener[T any] func(data T)

// Options configures a Coordinator.
type Options[T any] struct {
	// Name identifies the coordinator in logs, e.g. "airtouch".
	Name string

	// Fetch retrieves fresh data. Required.
	Fetch FetchFunc[T]

	// Interval is the polling period. Required.
	Interval time.Duration

	// Timeout bounds a single fetch. Defaults to 10 seconds.
	Timeout time.Duration

	// OnAvailabilityChange is invoked when the coordinator crosses the
	// consecutive failure threshold (false) or recovers (true). Optional.
	OnAvailabilityChange func(available bool)

	// OnAuthFailed is invoked once when a fetch reports invalid
	// credentials, after the update loop has stopped. Optional.
	OnAuthFailed func()

	Logger *logging.Logger
}

// defaultFetchTimeout bounds fetches when Options.Timeout is zero.
const defaultFetchTimeout = 10 * time.Second

// Coordinator polls a vendor API at a fixed interval and fans fresh
// data out to listeners. One coordinator serves all entities of a
// config entry, so ten sensors cost one poll.
//
// Availability: after three consecutive failed refreshes the
// availability callback fires with false; the first success after that
// fires it with true. An auth failure stops the loop for good.
type Coordinator[T any] struct {
	opts   Options[T]
	logger *logging.Logger

	mu                sync.Mutex
	data              T
	lastUpdateSuccess bool
	lastUpdateTime    time.Time
	consecutiveFails  int
	unavailable       bool
	stopped           bool
	listeners         map[int]Listener[T]
	nextListenerID    int

	refreshCh chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a coordinator. Call Start to begin polling.
func New[T any](opts Options[T]) *Coordinator[T] {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator[T]{
		opts:      opts,
		logger:    logger.With("component", "coordinator", "name", opts.Name),
		listeners: make(map[int]Listener[T]),
		refreshCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start performs the first refresh synchronously and launches the
// update loop. The first refresh result is returned so setup can fail
// fast: an unreachable device surfaces as a setup error instead of an
// entity that never updates.
func (c *Coordinator[T]) Start(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(loopCtx)
	return nil
}

// Stop terminates the update loop and waits for it to exit.
// Safe to call more than once.
func (c *Coordinator[T]) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-c.done
	}
}

// Data returns the most recently fetched data.
func (c *Coordinator[T]) Data() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdateSuccess
}

// LastUpdateTime returns when the last successful refresh completed.
func (c *Coordinator[T]) LastUpdateTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdateTime
}

// AddListener registers a listener for refreshed data.
// Returns a function that removes the listener.
func (c *Coordinator[T]) AddListener(l Listener[T]) func() {
	c.mu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// RequestRefresh asks for an out-of-band refresh, typically after a
// command so the new device state lands faster than the next poll.
// Calls are debounced; the refresh happens asynchronously.
func (c *Coordinator[T]) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// run is the update loop: a steady ticker plus debounced on-demand
// refreshes, until the context is cancelled or auth fails.
func (c *Coordinator[T]) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refresh(ctx); errors.Is(err, configentry.ErrAuthFailed) {
				c.handleAuthFailure()
				return
			}
		case <-c.refreshCh:
			// Debounce: absorb the burst, then refresh once.
			timer := time.NewTimer(refreshDebounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if err := c.refresh(ctx); errors.Is(err, configentry.ErrAuthFailed) {
				c.handleAuthFailure()
				return
			}
			ticker.Reset(c.opts.Interval)
		}
	}
}

// refresh performs one fetch and updates state, availability tracking
// and listeners.
func (c *Coordinator[T]) refresh(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	data, err := c.opts.Fetch(fetchCtx)
	cancel()

	if err != nil {
		c.recordFailure(err)
		return err
	}

	c.mu.Lock()
	c.data = data
	c.lastUpdateSuccess = true
	c.lastUpdateTime = time.Now()
	c.consecutiveFails = 0
	recovered := c.unavailable
	c.unavailable = false
	listeners := make([]Listener[T], 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	if recovered && c.opts.OnAvailabilityChange != nil {
		c.logger.Info("device recovered")
		c.opts.OnAvailabilityChange(true)
	}
	for _, l := range listeners {
		l(data)
	}
	return nil
}

func (c *Coordinator[T]) recordFailure(err error) {
	c.mu.Lock()
	c.lastUpdateSuccess = false
	c.consecutiveFails++
	fails := c.consecutiveFails
	crossed := fails == consecutiveFailureThreshold && !c.unavailable
	if crossed {
		c.unavailable = true
	}
	c.mu.Unlock()

	if errors.Is(err, configentry.ErrAuthFailed) {
		c.logger.Error("refresh failed: credentials rejected", "error", err)
		return
	}

	c.logger.Warn("refresh failed", "error", err, "consecutive_failures", fails)
	if crossed && c.opts.OnAvailabilityChange != nil {
		c.opts.OnAvailabilityChange(false)
	}
}

func (c *Coordinator[T]) handleAuthFailure() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	if c.opts.OnAuthFailed != nil {
		c.opts.OnAuthFailed()
	}
}
