package input

import (
	"context"
	"io"
	"sync"

	"github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"

	"github.com/agentstation/hasskey/pkg/errors"
	"github.com/agentstation/hasskey/pkg/logging"
)

// Source is a raw event source. *evdev.InputDevice satisfies it.
type Source interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Stream is an opened device producing normalized key events.
// Next must be called from a single goroutine; Close may be called from any.
type Stream struct {
	id     Identity
	src    Source
	logger zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps src as the event stream of id.
func NewStream(ctx context.Context, id Identity, src Source) *Stream {
	ctx = logging.WithNode(logging.WithDevice(ctx, id.Name), id.Node)
	return &Stream{
		id:     id,
		src:    src,
		logger: *logging.FromContext(ctx),
	}
}

// Identity returns the identity the stream was opened with.
func (s *Stream) Identity() Identity {
	return s.id
}

// Next blocks until the device reports a key press or release. Non-key
// events and auto-repeats are skipped. Read failures are returned wrapped
// in a DeviceError; a clean end of stream returns io.EOF.
func (s *Stream) Next() (KeyEvent, error) {
	for {
		raw, err := s.src.ReadOne()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return KeyEvent{}, io.EOF
			}
			return KeyEvent{}, errors.WrapDevice("read", s.id.Node, s.id.Name, err)
		}

		ev, disposition := Normalize(s.id.Name, raw)
		switch disposition {
		case DispositionKey:
			return ev, nil
		case DispositionRepeat:
			s.logger.Trace().Uint16("code", uint16(raw.Code)).Msg("Dropped key repeat")
		case DispositionUnknown:
			s.logger.Warn().
				Uint16("code", uint16(raw.Code)).
				Int32("value", raw.Value).
				Msg("Dropped key event with unexpected value")
		}
	}
}

// Close releases the device. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.src.Close()
	})
	return s.closeErr
}

// Opener opens the device node of a matched identity.
type Opener interface {
	Open(ctx context.Context, id Identity) (*Stream, error)
}

// EvdevOpener opens evdev nodes. With Grab set the device is grabbed
// exclusively so its keystrokes do not reach other readers.
type EvdevOpener struct {
	Grab bool
}

// Open implements Opener.
func (o EvdevOpener) Open(ctx context.Context, id Identity) (*Stream, error) {
	dev, err := evdev.Open(id.Node)
	if err != nil {
		return nil, errors.WrapDevice("open", id.Node, id.Name, err)
	}

	if o.Grab {
		if err := dev.Grab(); err != nil {
			_ = dev.Close()
			return nil, errors.WrapDevice("grab", id.Node, id.Name, err)
		}
	}

	stream := NewStream(ctx, id, dev)
	if name, err := dev.Name(); err == nil {
		stream.logger.Debug().Str("input_name", name).Msg("Opened input device")
	}
	return stream, nil
}
