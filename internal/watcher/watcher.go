// Package watcher ties discovery, matching, streaming and delivery together.
//
// Run subscribes to hotplug notifications, opens every configured device
// that is already present, and then runs two loops until the context ends:
// one handling hotplug notifications and one draining the stream registry
// into the sink. Failures of a single device or delivery are logged and
// never stop the loops.
package watcher

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/internal/registry"
	"github.com/agentstation/hasskey/internal/sink"
	"github.com/agentstation/hasskey/internal/udev"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
	"github.com/agentstation/hasskey/pkg/logging"
)

// Enumerator lists the input devices present now.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]udev.Device, error)
}

// Monitor streams hotplug notifications until ctx is done.
type Monitor interface {
	Monitor(ctx context.Context) (<-chan udev.Notification, error)
}

// Options holds the collaborators of a Watcher.
type Options struct {
	Table      []matcher.DeviceConfig
	Enumerator Enumerator
	Monitor    Monitor
	Opener     input.Opener
	Sink       sink.Sink
}

// Watcher forwards key events of configured devices to a sink.
type Watcher struct {
	table      []matcher.DeviceConfig
	enumerator Enumerator
	monitor    Monitor
	opener     input.Opener
	sink       sink.Sink

	registry *registry.Registry
	logger   *zerolog.Logger
}

// New creates a Watcher. The match table is fixed for its lifetime.
func New(opts Options, logger *zerolog.Logger) *Watcher {
	if logger == nil {
		logger = logging.Default()
	}
	table := make([]matcher.DeviceConfig, len(opts.Table))
	copy(table, opts.Table)

	return &Watcher{
		table:      table,
		enumerator: opts.Enumerator,
		monitor:    opts.Monitor,
		opener:     opts.Opener,
		sink:       opts.Sink,
		registry:   registry.New(logger),
		logger:     logger,
	}
}

// Active returns the devices currently being read.
func (w *Watcher) Active() []input.Identity {
	return w.registry.Active()
}

// Run watches until ctx is cancelled. It returns an error only when the
// hotplug subscription or the initial enumeration cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logging.WithComponent(logging.WithLogger(ctx, w.logger), "watcher")

	// subscribe before enumerating so a device plugged in between is not missed
	notifications, err := w.monitor.Monitor(ctx)
	if err != nil {
		return err
	}

	devices, err := w.enumerator.Enumerate(ctx)
	if err != nil {
		return err
	}

	for _, dev := range devices {
		w.consider(ctx, dev)
	}

	if n := w.registry.Len(); n == 0 {
		w.logger.Warn().
			Int("configured", len(w.table)).
			Msg("No configured device present, waiting for hotplug")
	} else {
		w.logger.Info().
			Int("watching", n).
			Int("configured", len(w.table)).
			Msg("Initial enumeration complete")
	}

	dispatcher := sink.NewDispatcher(ctx, w.sink, w.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.hotplugLoop(gctx, notifications)
		return nil
	})
	g.Go(func() error {
		return w.dispatchLoop(gctx, dispatcher)
	})

	err = g.Wait()

	_ = w.registry.Close()
	waitCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	if werr := w.registry.Wait(waitCtx); werr != nil {
		w.logger.Warn().Err(werr).Msg("Device reads still pending at shutdown")
	}
	cancel()
	dispatcher.Close()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (w *Watcher) hotplugLoop(ctx context.Context, notifications <-chan udev.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				if ctx.Err() == nil {
					w.logger.Warn().Msg("Hotplug monitor stopped, new devices will not be picked up")
				}
				return
			}
			w.handle(ctx, n)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, n udev.Notification) {
	switch n.Action {
	case udev.ActionAdd:
		w.consider(ctx, n.Device)
	case udev.ActionRemove:
		// the stream is pruned by its own read failure
		w.logger.Debug().
			Str("node", n.Device.Node()).
			Bool("active", w.registry.Claimed(n.Device.Node())).
			Msg("Device removed")
	default:
		w.logger.Trace().
			Str("action", n.Action.String()).
			Str("node", n.Device.Node()).
			Msg("Ignored hotplug notification")
	}
}

func (w *Watcher) dispatchLoop(ctx context.Context, dispatcher *sink.Dispatcher) error {
	for {
		ev, err := w.registry.Next(ctx)
		if err != nil {
			return err
		}
		w.logger.Debug().
			Str("device", ev.Device).
			Str("key", ev.KeyName()).
			Str("value", string(ev.State)).
			Msg("Key event")
		_ = dispatcher.Dispatch(ev)
	}
}

// consider matches dev against the table and, on a match, opens and
// registers its stream unless the node is already being read.
func (w *Watcher) consider(ctx context.Context, dev udev.Device) {
	node := dev.Node()
	if !udev.IsEventNode(node) {
		return
	}

	name, ok := matcher.Match(dev, w.table)
	if !ok {
		if traceEnabled(w.logger) {
			for _, v := range matcher.Explain(dev, w.table) {
				w.logger.Trace().
					Str("node", node).
					Str("config", v.Name).
					Str("key", v.Key).
					Str("reason", string(v.Reason)).
					Msg("Filter did not match")
			}
		}
		w.logger.Debug().Str("node", node).Msg("No matching device config")
		return
	}

	if w.registry.Claimed(node) {
		w.logger.Debug().Str("device", name).Str("node", node).Msg("Device already open")
		return
	}

	id := input.Identity{Name: name, Node: node}
	stream, err := w.opener.Open(ctx, id)
	if err != nil {
		w.logger.Error().Err(err).Str("device", name).Str("node", node).Msg("Failed to open device")
		return
	}

	if err := w.registry.Register(stream); err != nil {
		_ = stream.Close()
		w.logger.Debug().Err(err).Str("device", name).Str("node", node).Msg("Stream not registered")
		return
	}
}

func traceEnabled(l *zerolog.Logger) bool {
	return l.GetLevel() <= zerolog.TraceLevel && zerolog.GlobalLevel() <= zerolog.TraceLevel
}
