package bridge

import "sync"

// Pointer event kinds.
const (
	PointerEventMove   = 0
	PointerEventButton = 1
	PointerEventWheel  = 2
)

// PointerEvent is one normalized pointer event. Coordinates are in
// the backend's top-origin convention; readers flip on the way out.
type PointerEvent struct {
	Kind   int
	X, Y   int32
	DX, DY int32
	Button uint32
	Scroll int32
	Down   bool
}

// Pointer emulates the legacy mouse subsystem: live position and
// button snapshots, a per-move delta backlog consumed one record at a
// time, an accumulated wheel delta and a full event queue.
type Pointer struct {
	display *Display

	mu      sync.Mutex
	created bool
	x, y    int32 // top-origin, as delivered
	tracked bool
	buttons uint32
	wheel   int32
	current PointerEvent
	valid   bool

	events eventQueue[PointerEvent]
	deltas eventQueue[PointerEvent]
}

func newPointer(display *Display) *Pointer {
	return &Pointer{display: display}
}

// Create starts event capture, deferring callback registration until
// the surface exists.
func (p *Pointer) Create() {
	p.mu.Lock()
	if p.created {
		p.mu.Unlock()
		return
	}
	p.created = true
	p.mu.Unlock()

	p.display.onReady("pointer", func(s Surface) {
		s.OnCursor(p.onCursor)
		s.OnButton(p.onButton)
		s.OnWheel(p.onWheel)
	})
}

// onCursor records a move. The pushes happen under mu so Destroy
// cannot clear the queues between the created check and the enqueue.
func (p *Pointer) onCursor(x, y int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.created {
		return
	}
	tracked := p.tracked
	var dx, dy int32
	if tracked {
		dx, dy = x-p.x, y-p.y
	}
	p.x, p.y = x, y
	p.tracked = true

	ev := PointerEvent{Kind: PointerEventMove, X: x, Y: y, DX: dx, DY: dy}
	p.events.push(ev)
	if tracked {
		// The first report establishes the baseline; it carries no
		// movement and stays out of the delta backlog.
		p.deltas.push(ev)
	}
}

func (p *Pointer) onButton(button uint32, down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.created {
		return
	}
	if button < 32 {
		if down {
			p.buttons |= 1 << button
		} else {
			p.buttons &^= 1 << button
		}
	}
	p.events.push(PointerEvent{Kind: PointerEventButton, Button: button, Down: down})
}

func (p *Pointer) onWheel(delta int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.created {
		return
	}
	p.wheel += delta
	p.events.push(PointerEvent{Kind: PointerEventWheel, Scroll: delta})
}

// Position returns the cursor position in legacy bottom-origin
// coordinates, flipped at this read.
func (p *Pointer) Position() (x, y int32) {
	p.mu.Lock()
	x, y = p.x, p.y
	p.mu.Unlock()
	return x, p.display.flipY(y)
}

// Warp moves the cursor to a legacy bottom-origin position. The flip
// back to the backend convention happens at this write.
func (p *Pointer) Warp(x, y int32) {
	p.display.mu.Lock()
	s := p.display.surface
	p.display.mu.Unlock()
	if s != nil {
		s.SetCursor(x, p.display.flipY(y))
	}
}

// Delta pops the oldest movement from the backlog. An empty backlog
// returns zeros immediately. The vertical axis is flipped at this
// read: legacy up is positive.
func (p *Pointer) Delta() (dx, dy int32) {
	ev, ok := p.deltas.pop()
	if !ok {
		return 0, 0
	}
	return ev.DX, -ev.DY
}

// Wheel returns the scroll accumulated since the last call and resets
// the accumulator.
func (p *Pointer) Wheel() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.wheel
	p.wheel = 0
	return w
}

// ButtonDown reads the live button bitset.
func (p *Pointer) ButtonDown(button uint32) bool {
	if button >= 32 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buttons&(1<<button) != 0
}

// Poll reports whether an event is waiting.
func (p *Pointer) Poll() bool {
	return p.events.len() > 0
}

// Next advances to the oldest queued event; false on empty.
func (p *Pointer) Next() bool {
	ev, ok := p.events.pop()
	if !ok {
		return false
	}
	p.mu.Lock()
	p.current = ev
	p.valid = true
	p.mu.Unlock()
	return true
}

// Event returns the current event, flipping absolute coordinates to
// the legacy convention at this read.
func (p *Pointer) Event() PointerEvent {
	p.mu.Lock()
	ev, ok := p.current, p.valid
	p.mu.Unlock()
	if !ok {
		return PointerEvent{}
	}
	if ev.Kind == PointerEventMove {
		ev.Y = p.display.flipY(ev.Y)
		ev.DY = -ev.DY
	}
	return ev
}

// Destroy clears queues and snapshots; always safe.
func (p *Pointer) Destroy() {
	p.display.cancelReady("pointer")
	p.mu.Lock()
	p.created = false
	p.tracked = false
	p.x, p.y = 0, 0
	p.buttons = 0
	p.wheel = 0
	p.current = PointerEvent{}
	p.valid = false
	p.events.clear()
	p.deltas.clear()
	p.mu.Unlock()
}
