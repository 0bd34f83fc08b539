package sink

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
)

// Dispatcher hands events to a Sink without blocking the caller. Each device
// gets its own FIFO queue and worker, so a slow delivery delays only later
// events of the same device. Failed deliveries are logged and dropped.
type Dispatcher struct {
	sink      Sink
	logger    *zerolog.Logger
	queueSize int

	ctx    context.Context
	queues map[string]chan input.KeyEvent
	closed bool
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher delivering to sink. Deliveries run
// under ctx.
func NewDispatcher(ctx context.Context, sink Sink, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:      sink,
		logger:    logger,
		queueSize: constants.DeliveryQueueSize,
		ctx:       ctx,
		queues:    make(map[string]chan input.KeyEvent),
	}
}

// Dispatch queues ev for delivery. It never blocks; when the device's queue
// is full the event is dropped and ErrQueueFull returned.
func (d *Dispatcher) Dispatch(ev input.KeyEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.ErrCanceled
	}

	q, ok := d.queues[ev.Device]
	if !ok {
		q = make(chan input.KeyEvent, d.queueSize)
		d.queues[ev.Device] = q
		d.wg.Add(1)
		go d.worker(ev.Device, q)
	}

	select {
	case q <- ev:
		return nil
	default:
		d.logger.Warn().
			Str("device", ev.Device).
			Str("key", ev.KeyName()).
			Str("value", string(ev.State)).
			Msg("Delivery queue full, event dropped")
		return errors.ErrQueueFull
	}
}

// Close stops accepting events and waits for queued deliveries to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker(device string, q <-chan input.KeyEvent) {
	defer d.wg.Done()

	for ev := range q {
		if d.ctx.Err() != nil {
			continue
		}

		err := d.sink.Deliver(d.ctx, ev)
		if err == nil {
			d.logger.Debug().
				Str("device", device).
				Str("key", ev.KeyName()).
				Str("value", string(ev.State)).
				Msg("Event delivered")
			continue
		}

		logEvent := d.logger.Error().Err(err)
		if errors.IsUnauthorized(err) {
			logEvent = logEvent.Str("hint", "check the Home Assistant token")
		}
		logEvent.
			Str("device", device).
			Str("key", ev.KeyName()).
			Str("value", string(ev.State)).
			Msg("Failed to deliver event")
	}
}
