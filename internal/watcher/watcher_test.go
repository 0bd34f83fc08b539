package watcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/hasskey/internal/input"
	"github.com/agentstation/hasskey/internal/matcher"
	"github.com/agentstation/hasskey/internal/sink"
	"github.com/agentstation/hasskey/internal/transport"
	"github.com/agentstation/hasskey/internal/udev"
	"github.com/agentstation/hasskey/pkg/errors"
	"github.com/agentstation/hasskey/pkg/logging"
)

// fakeDevice is a udev.Device backed by static properties.
type fakeDevice struct {
	*matcher.Static
	node string
}

func (d fakeDevice) Node() string    { return d.node }
func (d fakeDevice) Syspath() string { return "/sys/devices/virtual/input" + d.node[len("/dev/input"):] }

func device(node string, levels ...map[string]string) udev.Device {
	first := map[string]string{"DEVNAME": node}
	if len(levels) > 0 {
		for k, v := range levels[0] {
			first[k] = v
		}
		levels = levels[1:]
	}
	return fakeDevice{Static: matcher.Chain(append([]map[string]string{first}, levels...)...), node: node}
}

// fakeSubsystem serves a fixed enumeration and a test-driven notification channel.
type fakeSubsystem struct {
	devices []udev.Device
	enumErr error
	monErr  error
	notes   chan udev.Notification
}

func newFakeSubsystem(devices ...udev.Device) *fakeSubsystem {
	return &fakeSubsystem{devices: devices, notes: make(chan udev.Notification, 8)}
}

func (f *fakeSubsystem) Enumerate(context.Context) ([]udev.Device, error) {
	return f.devices, f.enumErr
}

func (f *fakeSubsystem) Monitor(context.Context) (<-chan udev.Notification, error) {
	if f.monErr != nil {
		return nil, f.monErr
	}
	return f.notes, nil
}

// chanSource is a raw event source driven by the test.
type chanSource struct {
	feed   chan *evdev.InputEvent
	errc   chan error
	closed chan struct{}
	once   sync.Once
}

func newChanSource() *chanSource {
	return &chanSource{
		feed:   make(chan *evdev.InputEvent, 16),
		errc:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *chanSource) ReadOne() (*evdev.InputEvent, error) {
	select {
	case ev := <-c.feed:
		return ev, nil
	case err := <-c.errc:
		return nil, err
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *chanSource) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *chanSource) key(code evdev.EvCode, value int32) {
	c.feed <- &evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}
	c.feed <- &evdev.InputEvent{Type: evdev.EV_SYN}
}

// fakeOpener hands out chanSources and counts opens per node.
type fakeOpener struct {
	mu      sync.Mutex
	sources map[string]*chanSource
	opens   map[string]int
	fail    map[string]error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		sources: map[string]*chanSource{},
		opens:   map[string]int{},
		fail:    map[string]error{},
	}
}

func (o *fakeOpener) Open(ctx context.Context, id input.Identity) (*input.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens[id.Node]++
	if err := o.fail[id.Node]; err != nil {
		return nil, errors.WrapDevice("open", id.Node, id.Name, err)
	}
	src := newChanSource()
	o.sources[id.Node] = src
	return input.NewStream(ctx, id, src), nil
}

func (o *fakeOpener) source(node string) *chanSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sources[node]
}

func (o *fakeOpener) openCount(node string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[node]
}

// chanSink forwards deliveries to a channel.
type chanSink chan input.KeyEvent

func (s chanSink) Deliver(_ context.Context, ev input.KeyEvent) error {
	s <- ev
	return nil
}

func (s chanSink) next(t *testing.T) input.KeyEvent {
	t.Helper()
	select {
	case ev := <-s:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return input.KeyEvent{}
	}
}

func keyboardTable() []matcher.DeviceConfig {
	return []matcher.DeviceConfig{{
		Name: "kbd",
		Rule: matcher.Rule{{Key: "ID_INPUT_KEYBOARD", Pattern: matcher.MustCompile("^1$")}},
	}}
}

// start runs w in the background and returns a stop function that cancels
// it and returns Run's error.
func start(t *testing.T, w *Watcher) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var once sync.Once
	var result error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case result = <-done:
			case <-time.After(2 * time.Second):
				t.Error("watcher did not stop")
			}
		})
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestScenarioEnumerationOpensOnlyMatchingDevice(t *testing.T) {
	subsystem := newFakeSubsystem(
		device("/dev/input/event3", map[string]string{"ID_INPUT_KEYBOARD": "1"}, map[string]string{"NAME": `"USB Keyboard"`}),
		device("/dev/input/event4", map[string]string{"ID_INPUT_MOUSE": "1"}, map[string]string{"NAME": `"USB Mouse"`}),
	)
	opener := newFakeOpener()
	out := make(chanSink, 8)
	logger := zerolog.Nop()

	w := New(Options{
		Table:      keyboardTable(),
		Enumerator: subsystem,
		Monitor:    subsystem,
		Opener:     opener,
		Sink:       out,
	}, &logger)
	stop := start(t, w)

	require.Eventually(t, func() bool { return len(w.Active()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []input.Identity{{Name: "kbd", Node: "/dev/input/event3"}}, w.Active())
	assert.Equal(t, 1, opener.openCount("/dev/input/event3"))
	assert.Equal(t, 0, opener.openCount("/dev/input/event4"))

	src := opener.source("/dev/input/event3")
	src.key(evdev.KEY_A, 1)
	src.key(evdev.KEY_A, 2)
	src.key(evdev.KEY_A, 0)

	down := out.next(t)
	assert.Equal(t, input.KeyEvent{Device: "kbd", Key: evdev.KEY_A, State: input.StateDown}, withoutTime(down))
	up := out.next(t)
	assert.Equal(t, input.KeyEvent{Device: "kbd", Key: evdev.KEY_A, State: input.StateUp}, withoutTime(up))

	assert.NoError(t, stop())
}

func withoutTime(ev input.KeyEvent) input.KeyEvent {
	ev.Time = input.KeyEvent{}.Time
	return ev
}

func TestHotplugAddIsIdempotent(t *testing.T) {
	subsystem := newFakeSubsystem()
	opener := newFakeOpener()
	out := make(chanSink, 8)
	logger := zerolog.Nop()

	w := New(Options{
		Table:      keyboardTable(),
		Enumerator: subsystem,
		Monitor:    subsystem,
		Opener:     opener,
		Sink:       out,
	}, &logger)
	start(t, w)

	kbd := device("/dev/input/event5", map[string]string{"ID_INPUT_KEYBOARD": "1"})
	subsystem.notes <- udev.Notification{Action: udev.ActionAdd, Device: kbd}
	subsystem.notes <- udev.Notification{Action: udev.ActionAdd, Device: kbd}
	subsystem.notes <- udev.Notification{Action: udev.ActionOther, Device: kbd}

	require.Eventually(t, func() bool { return len(w.Active()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// a later event proves both Adds have been handled
	require.Eventually(t, func() bool { return opener.source("/dev/input/event5") != nil }, time.Second, 5*time.Millisecond)
	opener.source("/dev/input/event5").key(evdev.KEY_VOLUMEUP, 1)
	ev := out.next(t)
	assert.Equal(t, "kbd", ev.Device)
	assert.Equal(t, 1, opener.openCount("/dev/input/event5"))
	assert.Len(t, w.Active(), 1)
}

func TestUnplugPrunesOnlyThatStream(t *testing.T) {
	subsystem := newFakeSubsystem(
		device("/dev/input/event3", map[string]string{"ID_INPUT_KEYBOARD": "1"}),
		device("/dev/input/event6", map[string]string{"ID_INPUT_KEYBOARD": "1"}),
	)
	opener := newFakeOpener()
	out := make(chanSink, 8)
	logger := zerolog.Nop()

	w := New(Options{
		Table:      keyboardTable(),
		Enumerator: subsystem,
		Monitor:    subsystem,
		Opener:     opener,
		Sink:       out,
	}, &logger)
	start(t, w)
	require.Eventually(t, func() bool { return len(w.Active()) == 2 }, 2*time.Second, 5*time.Millisecond)

	gone := device("/dev/input/event3", map[string]string{"ID_INPUT_KEYBOARD": "1"})
	subsystem.notes <- udev.Notification{Action: udev.ActionRemove, Device: gone}

	// Remove alone does not tear the stream down
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, w.Active(), 2)

	opener.source("/dev/input/event3").errc <- syscall.ENODEV
	require.Eventually(t, func() bool { return len(w.Active()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "/dev/input/event6", w.Active()[0].Node)

	opener.source("/dev/input/event6").key(evdev.KEY_B, 1)
	assert.Equal(t, evdev.KEY_B, out.next(t).Key)

	// re-plug opens a fresh stream on the same node
	subsystem.notes <- udev.Notification{Action: udev.ActionAdd, Device: gone}
	require.Eventually(t, func() bool { return len(w.Active()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, opener.openCount("/dev/input/event3"))
}

func TestOpenFailureSkipsDevice(t *testing.T) {
	tl := logging.NewTestLogger(t)
	subsystem := newFakeSubsystem(
		device("/dev/input/event3", map[string]string{"ID_INPUT_KEYBOARD": "1"}),
		device("/dev/input/event4", map[string]string{"ID_INPUT_KEYBOARD": "1"}),
	)
	opener := newFakeOpener()
	opener.fail["/dev/input/event3"] = syscall.EACCES
	out := make(chanSink, 8)

	w := New(Options{
		Table:      keyboardTable(),
		Enumerator: subsystem,
		Monitor:    subsystem,
		Opener:     opener,
		Sink:       out,
	}, tl.Logger)
	start(t, w)

	require.Eventually(t, func() bool { return len(w.Active()) == 1 }, 2*time.Second, 5*time.Millisecond)
	opener.source("/dev/input/event4").key(evdev.KEY_C, 1)
	assert.Equal(t, evdev.KEY_C, out.next(t).Key)
	tl.AssertContains(t, "Failed to open device")
}

func TestUnauthorizedDeliveryDoesNotStopProcessing(t *testing.T) {
	var calls atomic.Int32
	received := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if calls.Add(1) == 1 {
			http.Error(w, "401: Unauthorized", http.StatusUnauthorized)
			return
		}
		received <- string(body)
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	hass, err := sink.NewHass(transport.New(&transport.BearerAuth{}, "T"), base, "")
	require.NoError(t, err)

	tl := logging.NewTestLogger(t)
	subsystem := newFakeSubsystem(device("/dev/input/event3", map[string]string{"ID_INPUT_KEYBOARD": "1"}))
	opener := newFakeOpener()
	w := New(Options{
		Table:      keyboardTable(),
		Enumerator: subsystem,
		Monitor:    subsystem,
		Opener:     opener,
		Sink:       hass,
	}, tl.Logger)
	stop := start(t, w)

	require.Eventually(t, func() bool { return len(w.Active()) == 1 }, 2*time.Second, 5*time.Millisecond)
	src := opener.source("/dev/input/event3")
	src.key(evdev.KEY_A, 1)
	src.key(evdev.KEY_A, 0)

	select {
	case body := <-received:
		assert.JSONEq(t, `{"device":"kbd","key":30,"value":"UP"}`, body)
	case <-time.After(2 * time.Second):
		t.Fatal("second event was not delivered")
	}
	assert.Equal(t, int32(2), calls.Load())
	require.Eventually(t, func() bool { return tl.Contains("Failed to deliver event") }, time.Second, 5*time.Millisecond)
	assert.NoError(t, stop())
}

func TestStartupFailures(t *testing.T) {
	logger := zerolog.Nop()

	monitorErr := errors.WrapDevice("monitor", "", "", syscall.EPERM)
	subsystem := newFakeSubsystem()
	subsystem.monErr = monitorErr
	w := New(Options{Table: keyboardTable(), Enumerator: subsystem, Monitor: subsystem, Opener: newFakeOpener(), Sink: make(chanSink)}, &logger)
	assert.ErrorIs(t, w.Run(context.Background()), monitorErr)

	enumErr := errors.WrapDevice("enumerate", "", "", syscall.EPERM)
	subsystem = newFakeSubsystem()
	subsystem.enumErr = enumErr
	w = New(Options{Table: keyboardTable(), Enumerator: subsystem, Monitor: subsystem, Opener: newFakeOpener(), Sink: make(chanSink)}, &logger)
	assert.ErrorIs(t, w.Run(context.Background()), enumErr)
}

func TestRunWithoutDevicesWaitsForHotplug(t *testing.T) {
	tl := logging.NewTestLogger(t)
	subsystem := newFakeSubsystem(device("/dev/input/event4", map[string]string{"ID_INPUT_MOUSE": "1"}))
	w := New(Options{
		Table:      keyboardTable(),
		Enumerator: subsystem,
		Monitor:    subsystem,
		Opener:     newFakeOpener(),
		Sink:       make(chanSink),
	}, tl.Logger)
	stop := start(t, w)

	require.Eventually(t, func() bool { return tl.Contains("waiting for hotplug") }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, w.Active())
	assert.NoError(t, stop())
}

func TestStopClosesStreamsAndTagsLogs(t *testing.T) {
	subsystem := newFakeSubsystem(
		device("/dev/input/event3", map[string]string{"ID_INPUT_KEYBOARD": "1"}),
		device("/dev/input/event5", map[string]string{"ID_INPUT_KEYBOARD": "1"}),
	)
	opener := newFakeOpener()
	tl := logging.NewTestLogger(t)

	w := New(Options{
		Table:      keyboardTable(),
		Enumerator: subsystem,
		Monitor:    subsystem,
		Opener:     opener,
		Sink:       make(chanSink, 8),
	}, tl.Logger)
	stop := start(t, w)

	require.Eventually(t, func() bool { return len(w.Active()) == 2 }, 2*time.Second, 5*time.Millisecond)
	opener.source("/dev/input/event3").key(evdev.KEY_A, 9)
	require.Eventually(t, func() bool { return tl.Contains("unexpected value") }, time.Second, 5*time.Millisecond)
	tl.AssertContains(t, `"component":"watcher"`)
	tl.AssertContains(t, `"node":"/dev/input/event3"`)

	require.NoError(t, stop())
	for _, node := range []string{"/dev/input/event3", "/dev/input/event5"} {
		select {
		case <-opener.source(node).closed:
		default:
			t.Errorf("%s left open after shutdown", node)
		}
	}
	assert.Empty(t, w.Active())
	tl.AssertNotContains(t, "still pending")
}
