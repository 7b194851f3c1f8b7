package bridge

import (
	stderrors "errors"
	"sync"
	"testing"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// fakeSurface records callback registrations and lets tests emit
// events as the backend would.
type fakeSurface struct {
	title     string
	width     uint32
	height    uint32
	presented [][]byte
	closeReq  bool
	destroyed bool
	cursorX   int32
	cursorY   int32

	keyFn    func(key uint32, down bool)
	charFn   func(ch rune)
	cursorFn func(x, y int32)
	buttonFn func(button uint32, down bool)
	wheelFn  func(delta int32)
}

func (s *fakeSurface) SetTitle(title string)       { s.title = title }
func (s *fakeSurface) Present(px []byte) error     { s.presented = append(s.presented, px); return nil }
func (s *fakeSurface) Size() (uint32, uint32)      { return s.width, s.height }
func (s *fakeSurface) CloseRequested() bool        { return s.closeReq }
func (s *fakeSurface) SetCursor(x, y int32)        { s.cursorX, s.cursorY = x, y }
func (s *fakeSurface) OnKey(fn func(uint32, bool)) { s.keyFn = fn }
func (s *fakeSurface) OnChar(fn func(rune))        { s.charFn = fn }
func (s *fakeSurface) OnCursor(fn func(x, y int32)) {
	s.cursorFn = fn
}
func (s *fakeSurface) OnButton(fn func(uint32, bool)) { s.buttonFn = fn }
func (s *fakeSurface) OnWheel(fn func(int32))         { s.wheelFn = fn }
func (s *fakeSurface) Destroy()                       { s.destroyed = true }

type fakeChannel struct {
	needData NeedDataFunc
	closed   bool
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeBackend struct {
	surface    *fakeSurface
	surfaceErr error
	channels   []*fakeChannel
}

func (b *fakeBackend) CreateSurface(width, height uint32) (Surface, error) {
	if b.surfaceErr != nil {
		return nil, b.surfaceErr
	}
	b.surface = &fakeSurface{width: width, height: height}
	return b.surface, nil
}

func (b *fakeBackend) OpenChannel(rate, channels uint32, needData NeedDataFunc) (Channel, error) {
	ch := &fakeChannel{needData: needData}
	b.channels = append(b.channels, ch)
	return ch, nil
}

func newTestBridge(t *testing.T) (*Bridge, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	return New(Config{Backend: backend}), backend
}

func TestDisplayCreatePropagatesBackendFailure(t *testing.T) {
	backend := &fakeBackend{surfaceErr: stderrors.New("no GPU")}
	b := New(Config{Backend: backend})
	if err := b.Display.Create(320, 240); err == nil {
		t.Fatal("expected surface creation error")
	}
}

func TestDisplayUpdateWithoutSurfaceFails(t *testing.T) {
	b, _ := newTestBridge(t)
	if err := b.Display.Update(nil); err == nil {
		t.Fatal("expected error without surface")
	}
	if b.Display.CloseRequested() {
		t.Error("close requested without surface")
	}
	if w, h := b.Display.Size(); w != 0 || h != 0 {
		t.Errorf("size without surface = %dx%d", w, h)
	}
}

func TestDeferredAttachCompletesOnSurfaceCreate(t *testing.T) {
	b, backend := newTestBridge(t)

	b.Keyboard.Create()
	b.Pointer.Create()
	if backend.surface != nil {
		t.Fatal("surface exists before display create")
	}

	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s := backend.surface
	if s.keyFn == nil || s.charFn == nil {
		t.Error("keyboard callbacks not attached on late bind")
	}
	if s.cursorFn == nil || s.buttonFn == nil || s.wheelFn == nil {
		t.Error("pointer callbacks not attached on late bind")
	}

	s.keyFn(42, true)
	if !b.Keyboard.Next() || b.Keyboard.EventKey() != 42 || !b.Keyboard.EventState() {
		t.Error("deferred keyboard does not receive events")
	}
}

func TestDestroyBeforeSurfaceCancelsDeferredAttach(t *testing.T) {
	b, backend := newTestBridge(t)

	b.Keyboard.Create()
	b.Keyboard.Destroy()
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if backend.surface.keyFn != nil {
		t.Error("destroyed keyboard still attached callbacks")
	}
}

func TestKeyboardQueueOrderAndBitset(t *testing.T) {
	b, backend := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Keyboard.Create()
	s := backend.surface

	s.keyFn(10, true)
	s.charFn('a')
	s.keyFn(10, false)

	if !b.Keyboard.Poll() {
		t.Fatal("Poll should see pending events")
	}
	if !b.Keyboard.Next() || b.Keyboard.EventKind() != KeyEventState || b.Keyboard.EventKey() != 10 {
		t.Fatal("first event wrong")
	}
	if !b.Keyboard.Next() || b.Keyboard.EventKind() != KeyEventChar || b.Keyboard.EventChar() != 'a' {
		t.Fatal("second event wrong")
	}
	if !b.Keyboard.Next() || b.Keyboard.EventState() {
		t.Fatal("third event should be a release")
	}
	if b.Keyboard.Next() {
		t.Fatal("queue should be drained")
	}
	if b.Keyboard.KeyDown(10) {
		t.Error("bitset should show key released")
	}
}

func TestKeyboardDestroyClearsState(t *testing.T) {
	b, backend := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Keyboard.Create()
	backend.surface.keyFn(7, true)

	b.Keyboard.Destroy()
	if b.Keyboard.Poll() || b.Keyboard.KeyDown(7) {
		t.Error("destroy left state behind")
	}
	// In-flight callbacks after destroy drain harmlessly.
	backend.surface.keyFn(8, true)
	if b.Keyboard.Poll() {
		t.Error("destroyed keyboard queued an event")
	}
}

func TestPointerDeltaBacklogFIFO(t *testing.T) {
	b, backend := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Pointer.Create()
	s := backend.surface

	s.cursorFn(10, 10) // baseline, no movement
	s.cursorFn(15, 7)  // +5 right, 3 up in legacy terms
	s.cursorFn(13, 6)  // -2 left, 1 up

	if dx, dy := b.Pointer.Delta(); dx != 5 || dy != 3 {
		t.Errorf("first delta = (%d,%d), want (5,3)", dx, dy)
	}
	if dx, dy := b.Pointer.Delta(); dx != -2 || dy != 1 {
		t.Errorf("second delta = (%d,%d), want (-2,1)", dx, dy)
	}
	if dx, dy := b.Pointer.Delta(); dx != 0 || dy != 0 {
		t.Errorf("drained backlog = (%d,%d), want zeros", dx, dy)
	}
}

func TestPointerPositionFlipsVerticalAxis(t *testing.T) {
	b, backend := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Pointer.Create()

	backend.surface.cursorFn(10, 30)
	x, y := b.Pointer.Position()
	if x != 10 || y != 209 {
		t.Errorf("position = (%d,%d), want (10,209)", x, y)
	}
}

func TestFlipYRoundTrips(t *testing.T) {
	b, _ := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, y := range []int32{0, 1, 119, 120, 239} {
		if got := b.Display.flipY(b.Display.flipY(y)); got != y {
			t.Errorf("flip(flip(%d)) = %d", y, got)
		}
	}
}

func TestPointerWarpFlipsOnWrite(t *testing.T) {
	b, backend := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Pointer.Create()

	b.Pointer.Warp(10, 209)
	if backend.surface.cursorX != 10 || backend.surface.cursorY != 30 {
		t.Errorf("warp wrote (%d,%d), want (10,30)",
			backend.surface.cursorX, backend.surface.cursorY)
	}
}

func TestPointerWheelAccumulatesAndResets(t *testing.T) {
	b, backend := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Pointer.Create()
	s := backend.surface

	s.wheelFn(2)
	s.wheelFn(-1)
	if w := b.Pointer.Wheel(); w != 1 {
		t.Errorf("wheel = %d, want 1", w)
	}
	if w := b.Pointer.Wheel(); w != 0 {
		t.Errorf("wheel after reset = %d, want 0", w)
	}
}

func TestPointerButtons(t *testing.T) {
	b, backend := newTestBridge(t)
	if err := b.Display.Create(320, 240); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b.Pointer.Create()
	s := backend.surface

	s.buttonFn(0, true)
	s.buttonFn(2, true)
	s.buttonFn(0, false)
	if b.Pointer.ButtonDown(0) || !b.Pointer.ButtonDown(2) {
		t.Error("button bitset wrong")
	}
	// Three events queued behind the snapshot.
	n := 0
	for b.Pointer.Next() {
		n++
	}
	if n != 3 {
		t.Errorf("queued %d events, want 3", n)
	}
}

func TestAudioQueuePullProcessed(t *testing.T) {
	b, backend := newTestBridge(t)

	id, err := b.Audio.OpenChannel(48000, 2)
	if err != nil {
		t.Fatalf("OpenChannel failed: %v", err)
	}
	if err := b.Audio.Queue(id, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Queue failed: %v", err)
	}
	if err := b.Audio.Queue(id, []byte{5, 6}); err != nil {
		t.Fatalf("Queue failed: %v", err)
	}
	if n := b.Audio.Queued(id); n != 2 {
		t.Fatalf("queued = %d, want 2", n)
	}

	pull := backend.channels[0].needData
	if got := pull(3); len(got) != 3 || got[0] != 1 {
		t.Fatalf("first pull = %v", got)
	}
	if n := b.Audio.Processed(id); n != 0 {
		t.Errorf("partial buffer counted as processed")
	}
	if got := pull(10); len(got) != 1 || got[0] != 4 {
		t.Fatalf("second pull = %v", got)
	}
	if got := pull(10); len(got) != 2 || got[0] != 5 {
		t.Fatalf("third pull = %v", got)
	}
	if n := b.Audio.Processed(id); n != 2 {
		t.Errorf("processed = %d, want 2", n)
	}
	if n := b.Audio.Processed(id); n != 0 {
		t.Errorf("processed after reset = %d, want 0", n)
	}
	if pull(10) != nil {
		t.Error("dry queue must pull nil")
	}
}

func TestAudioUnknownChannelIsBestEffort(t *testing.T) {
	b, _ := newTestBridge(t)
	if n := b.Audio.Processed(99); n != 0 {
		t.Errorf("unknown channel processed = %d", n)
	}
	if err := b.Audio.Queue(99, []byte{1}); err == nil {
		t.Error("queue to unknown channel should error")
	}
	b.Audio.CloseChannel(99)
}

func TestClockTicksMonotonic(t *testing.T) {
	b, _ := newTestBridge(t)
	a := b.Clock.Hires()
	bb := b.Clock.Hires()
	if bb < a {
		t.Errorf("Hires went backwards: %d then %d", a, bb)
	}
	b.Clock.SyncRate(0) // no-op
	b.Clock.SyncRate(1000)
	b.Clock.SyncRate(1000)
}

func TestBuffersAlignmentAndReuse(t *testing.T) {
	b, _ := newTestBridge(t)

	buf := b.Buffers.Alloc(100)
	if len(buf) != 100 {
		t.Fatalf("len = %d, want 100", len(buf))
	}
	if cap(buf)%64 != 0 {
		t.Errorf("cap %d not a multiple of 64", cap(buf))
	}
	for i := range buf {
		if buf[i] != 0 {
			t.Fatal("buffer not zeroed")
		}
	}
	if b.Buffers.Live() != 1 {
		t.Errorf("live = %d, want 1", b.Buffers.Live())
	}
	b.Buffers.Free(buf)
	if b.Buffers.Live() != 0 {
		t.Errorf("live = %d, want 0", b.Buffers.Live())
	}

	huge := b.Buffers.Alloc(3 << 20)
	if cap(huge)%64 != 0 {
		t.Errorf("oversized cap %d breaks alignment", cap(huge))
	}
	b.Buffers.Free(huge)
}

func TestBridgeCloseIsSafeWithoutCreate(t *testing.T) {
	b, _ := newTestBridge(t)
	b.Close()
	b.Close()
}

func TestBridgePlatformDefaultsToHost(t *testing.T) {
	b, _ := newTestBridge(t)
	if got, want := b.Platform(), wasmbridge.HostPlatform(); got != want {
		t.Errorf("platform = %+v, want %+v", got, want)
	}

	explicit := wasmbridge.Platform{OS: "plan9", PointerWidth: 32}
	b2 := New(Config{Backend: &fakeBackend{}, Platform: explicit})
	if b2.Platform() != explicit {
		t.Errorf("explicit platform overridden: %+v", b2.Platform())
	}
}

func TestKeyboardDestroyRacesCallbackSafely(t *testing.T) {
	b, _ := newTestBridge(t)
	for i := 0; i < 200; i++ {
		b.Keyboard.Create()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := uint32(0); j < 8; j++ {
				b.Keyboard.onKey(j, true)
			}
		}()
		b.Keyboard.Destroy()
		wg.Wait()
		// Every enqueue either preceded the destroy's clear or saw the
		// subsystem already torn down; nothing may survive.
		if b.Keyboard.Poll() {
			t.Fatal("stale event survived destroy")
		}
	}
}

func TestPointerDestroyRacesCallbackSafely(t *testing.T) {
	b, _ := newTestBridge(t)
	for i := 0; i < 200; i++ {
		b.Pointer.Create()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Pointer.onCursor(5, 5)
			b.Pointer.onCursor(7, 9)
			b.Pointer.onButton(0, true)
			b.Pointer.onWheel(2)
		}()
		b.Pointer.Destroy()
		wg.Wait()
		if b.Pointer.Poll() {
			t.Fatal("stale event survived destroy")
		}
		if dx, dy := b.Pointer.Delta(); dx != 0 || dy != 0 {
			t.Fatalf("stale delta (%d,%d) survived destroy", dx, dy)
		}
	}
}
