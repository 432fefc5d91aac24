package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("go-element-manager/internal/events")

type registration struct {
	plugin   string
	priority int
	seq      int
	listener Listener
}

// Dispatcher runs registered listeners synchronously, ordered by ascending
// priority and then registration order.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[Name][]registration
	seq       int
	logger    *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		listeners: make(map[Name][]registration),
		logger:    logger,
	}
}

// Register adds a listener with priority 0.
func (d *Dispatcher) Register(name Name, plugin string, l Listener) {
	d.RegisterPriority(name, plugin, 0, l)
}

// RegisterPriority adds a listener. Lower priorities run first.
func (d *Dispatcher) RegisterPriority(name Name, plugin string, priority int, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	// Copy on write: Dispatch iterates old slices without holding the lock.
	current := d.listeners[name]
	regs := make([]registration, len(current), len(current)+1)
	copy(regs, current)
	regs = append(regs, registration{
		plugin:   plugin,
		priority: priority,
		seq:      d.seq,
		listener: l,
	})
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	d.listeners[name] = regs
	d.logger.Debug("Registered event listener", "event", name, "plugin", plugin, "priority", priority)
}

// Listeners returns the plugin names registered for name, in dispatch order.
func (d *Dispatcher) Listeners(name Name) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.listeners[name]))
	for _, r := range d.listeners[name] {
		out = append(out, r.plugin)
	}
	return out
}

// Dispatch invokes every listener for name and collects their outputs in
// order. A failing or panicking listener is logged and skipped. Dispatch only
// returns an error when ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, name Name, p Payload) ([]string, error) {
	d.mu.RLock()
	regs := d.listeners[name]
	d.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "events.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.name", string(name)),
		attribute.Int("event.listeners", len(regs)),
	)

	var out []string
	for _, r := range regs {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}
		// Each listener gets its own copy so one plugin cannot alter what
		// the next one sees.
		lp := p
		lp.Chunk = p.Chunk.Clone()
		lp.Elements = append([]string(nil), p.Elements...)

		res, err := d.invoke(ctx, r, lp)
		if err != nil {
			d.logger.Warn("Event listener failed", "event", name, "plugin", r.plugin, "error", err)
			continue
		}
		out = append(out, res...)
	}
	return out, nil
}

func (d *Dispatcher) invoke(ctx context.Context, r registration, p Payload) (res []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("listener panicked: %v", rec)
		}
	}()
	return r.listener.Handle(ctx, p)
}

// Join concatenates listener outputs with no separator.
func Join(parts []string) string {
	return strings.Join(parts, "")
}
