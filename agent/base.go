package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/dispatch"
	"github.com/hupe1980/agentwire/logging"
)

// BaseAgent bundles what every agent variant shares: identity, the handler
// dispatcher and the lifecycle of its single background worker. Embed it in
// concrete agents and implement Start/Stop around begin/end. All exported
// methods are goroutine-safe.
type BaseAgent struct {
	name        string
	description string
	dispatcher  *dispatch.Dispatcher
	logger      logging.Logger
	observer    core.Observer
	now         func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBaseAgent constructs a BaseAgent with a generated description (customizable via SetDescription).
func NewBaseAgent(name string, logger logging.Logger, observer core.Observer, now func() time.Time) BaseAgent {
	if now == nil {
		now = time.Now
	}
	logger = core.LoggerOrNoOp(logger)
	observer = core.ObserverOrNoOp(observer)

	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
		logger:      logger,
		observer:    observer,
		now:         now,
		dispatcher: dispatch.New(func(o *dispatch.Options) {
			o.Name = name
			o.Logger = logger
			o.Observer = observer
		}),
	}
}

// Name returns the agent name used in logs and metrics.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a human-readable description of this agent.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// OnMessage registers h for every inbound message. Handlers run in
// registration order on the agent's worker.
func (b *BaseAgent) OnMessage(h core.Handler) core.Registration {
	return b.dispatcher.Register(h)
}

// HandleMessage routes msg to all registered handlers. Handler failures are
// isolated by the dispatcher and returned joined for direct callers.
func (b *BaseAgent) HandleMessage(ctx context.Context, msg core.Message) error {
	return b.dispatcher.Dispatch(ctx, msg)
}

// Running reports whether the worker has been started and not yet stopped.
func (b *BaseAgent) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.running
}

// begin marks the agent running and returns the worker context plus the
// channel the worker must close on exit. The worker context keeps ctx's
// values but not its cancellation; only end cancels it.
func (b *BaseAgent) begin(ctx context.Context) (context.Context, chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil, nil, core.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true

	return runCtx, b.done, nil
}

// abort reverts a begin whose startup failed before the worker launched.
func (b *BaseAgent) abort() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
	b.running = false
	b.cancel = nil
	b.done = nil
}

// end cancels the worker context and waits for the worker to exit or ctx
// to expire. A handler in flight is not interrupted. It reports false when
// the agent was not running.
func (b *BaseAgent) end(ctx context.Context, stopTransport func()) (bool, error) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return false, nil
	}
	b.running = false
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	if stopTransport != nil {
		stopTransport()
	}

	select {
	case <-done:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// sleep waits d or until ctx is done, reporting whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
