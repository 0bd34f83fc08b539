// Package registry multiplexes the key events of every open input stream
// into one channel. Each stream is pumped by its own goroutine, so streams
// can be added at any time while a consumer is blocked in Next.
package registry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/pkg/constants"
	"github.com/agentstation/hasskey/pkg/errors"
)

// Registry holds the active streams, keyed by device node.
type Registry struct {
	streams map[string]*input.Stream
	events  chan input.KeyEvent
	done    chan struct{}
	closed  bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
	logger  *zerolog.Logger
}

// New creates an empty registry.
func New(logger *zerolog.Logger) *Registry {
	return &Registry{
		streams: make(map[string]*input.Stream),
		events:  make(chan input.KeyEvent, constants.EventBufferSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Register adds a stream and starts pumping it. If the stream's node already
// has an active stream, ErrAlreadyExists is returned and the caller keeps
// ownership of stream.
func (r *Registry) Register(stream *input.Stream) error {
	id := stream.Identity()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("register %s: registry closed: %w", id.Node, errors.ErrCanceled)
	}
	if existing, ok := r.streams[id.Node]; ok {
		r.mu.Unlock()
		return fmt.Errorf("stream for %s (held by %s): %w", id.Node, existing.Identity().Name, errors.ErrAlreadyExists)
	}
	r.streams[id.Node] = stream
	total := len(r.streams)
	r.wg.Add(1)
	r.mu.Unlock()

	go r.pump(stream)

	r.logger.Info().
		Str("device", id.Name).
		Str("node", id.Node).
		Int("active_streams", total).
		Msg("Stream registered")
	return nil
}

// Claimed reports whether node has an active stream.
func (r *Registry) Claimed(node string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.streams[node]
	return ok
}

// Next blocks until any active stream yields a key event or ctx is done.
func (r *Registry) Next(ctx context.Context) (input.KeyEvent, error) {
	select {
	case <-ctx.Done():
		return input.KeyEvent{}, ctx.Err()
	case ev := <-r.events:
		return ev, nil
	}
}

// Active returns the identities of the active streams, sorted by node.
func (r *Registry) Active() []input.Identity {
	r.mu.RLock()
	ids := make([]input.Identity, 0, len(r.streams))
	for _, s := range r.streams {
		ids = append(ids, s.Identity())
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].Node < ids[j].Node })
	return ids
}

// Len returns the number of active streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

// Close stops accepting streams and closes every active one. Pumps blocked
// in a device read return once the device is closed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	streams := make([]*input.Stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.streams = make(map[string]*input.Stream)
	r.mu.Unlock()

	for _, s := range streams {
		_ = s.Close()
	}
	r.logger.Info().Int("closed_streams", len(streams)).Msg("Stream registry shut down")
	return nil
}

// Wait blocks until every pump goroutine has returned or ctx is done.
// Call it after Close.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) pump(stream *input.Stream) {
	defer r.wg.Done()

	for {
		ev, err := stream.Next()
		if err != nil {
			r.prune(stream, err)
			return
		}

		select {
		case r.events <- ev:
		case <-r.done:
			_ = stream.Close()
			return
		}
	}
}

// prune drops a failed stream so its node can be opened again.
func (r *Registry) prune(stream *input.Stream, cause error) {
	id := stream.Identity()

	r.mu.Lock()
	shuttingDown := r.closed
	if current, ok := r.streams[id.Node]; ok && current == stream {
		delete(r.streams, id.Node)
	}
	remaining := len(r.streams)
	r.mu.Unlock()

	_ = stream.Close()

	if shuttingDown {
		return
	}

	var event *zerolog.Event
	switch {
	case errors.Is(cause, io.EOF):
		event = r.logger.Info()
	case errors.IsDeviceGone(cause):
		event = r.logger.Info()
	default:
		event = r.logger.Error()
	}
	event.Err(cause).
		Str("device", id.Name).
		Str("node", id.Node).
		Int("active_streams", remaining).
		Msg("Stream removed")
}
