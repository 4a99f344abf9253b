// Package dispatch fans inbound messages out to registered handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/internal/util"
	"github.com/hupe1980/agentwire/logging"
)

// Options configures a Dispatcher.
type Options struct {
	// Name identifies the owning agent in logs and observations.
	Name     string
	Logger   logging.Logger
	Observer core.Observer
}

type entry struct {
	id string
	h  core.Handler
}

// Dispatcher holds an ordered set of handlers and invokes them sequentially
// for each message. A failing or panicking handler is isolated: it is
// logged, reported and never prevents the handlers after it from running.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []entry
	name     string
	logger   logging.Logger
	observer core.Observer
}

// New creates an empty Dispatcher.
func New(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{
		name:     opts.Name,
		logger:   core.WithComponent(opts.Logger, "dispatch"),
		observer: core.ObserverOrNoOp(opts.Observer),
	}
}

// Register appends h to the handler list. The returned registration removes
// exactly this handler; unregistering more than once is a no-op.
func (d *Dispatcher) Register(h core.Handler) core.Registration {
	id := util.NewID()

	d.mu.Lock()
	d.handlers = append(d.handlers, entry{id: id, h: h})
	d.mu.Unlock()

	return &registration{id: id, d: d}
}

// Len returns the number of registered handlers.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.handlers)
}

// Dispatch invokes every handler registered at call time, in registration
// order, awaiting each before the next. Handler failures are joined into the
// returned error as *core.HandlerError values.
func (d *Dispatcher) Dispatch(ctx context.Context, msg core.Message) error {
	d.mu.RLock()
	snapshot := make([]entry, len(d.handlers))
	copy(snapshot, d.handlers)
	d.mu.RUnlock()

	logger := core.WithPeer(d.logger, msg.FromPeerID)

	var errs []error
	for _, e := range snapshot {
		if err := d.invoke(ctx, logger, e, msg); err != nil {
			herr := &core.HandlerError{HandlerID: e.id, PeerID: msg.FromPeerID, Err: err}
			logger.Error("Handler failed", "handler_id", e.id, "error", err)
			d.observer.HandlerFailed(d.name)
			errs = append(errs, herr)
		}
	}
	d.observer.MessageDispatched(d.name)

	return errors.Join(errs...)
}

func (d *Dispatcher) invoke(ctx context.Context, logger logging.Logger, e entry, msg core.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if sl, ok := logger.(interface {
				ErrorWithStack(err error, msg string, args ...any)
			}); ok {
				sl.ErrorWithStack(err, "Handler panicked", "handler_id", e.id)
				return
			}
			logger.Error("Handler panicked", "handler_id", e.id, "error", err)
		}
	}()

	return e.h.HandleMessage(ctx, msg)
}

func (d *Dispatcher) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range d.handlers {
		if e.id == id {
			d.handlers = append(d.handlers[:i:i], d.handlers[i+1:]...)
			return
		}
	}
}

type registration struct {
	id   string
	d    *Dispatcher
	once sync.Once
}

// ID returns the registration id.
func (r *registration) ID() string { return r.id }

// Unregister removes the handler. Subsequent calls do nothing.
func (r *registration) Unregister() {
	r.once.Do(func() { r.d.remove(r.id) })
}
