package bridge

import "sync"

// Keyboard event kinds, matching the legacy record layout.
const (
	KeyEventState = 0 // key pressed or released
	KeyEventChar  = 1 // translated character input
)

// KeyEvent is one normalized keyboard event.
type KeyEvent struct {
	Kind int
	Key  uint32
	Char rune
	Down bool
}

// keyBitsetSize covers the legacy key code range.
const keyBitsetSize = 512

// Keyboard emulates the legacy keyboard subsystem: a FIFO of events
// consumed through Next plus a live key-down bitset.
type Keyboard struct {
	display *Display

	mu      sync.Mutex
	created bool
	current KeyEvent
	valid   bool
	down    [keyBitsetSize / 64]uint64

	queue eventQueue[KeyEvent]
}

func newKeyboard(display *Display) *Keyboard {
	return &Keyboard{display: display}
}

// Create starts event capture. When the surface does not exist yet,
// callback registration is deferred until it does; Create itself
// always succeeds.
func (k *Keyboard) Create() {
	k.mu.Lock()
	if k.created {
		k.mu.Unlock()
		return
	}
	k.created = true
	k.mu.Unlock()

	k.display.onReady("keyboard", func(s Surface) {
		s.OnKey(k.onKey)
		s.OnChar(k.onChar)
	})
}

// onKey appends a state event and updates the bitset. Runs on the
// backend's event thread. The push happens under mu so Destroy cannot
// clear the queue between the created check and the enqueue.
func (k *Keyboard) onKey(key uint32, down bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.created {
		return
	}
	if key < keyBitsetSize {
		if down {
			k.down[key/64] |= 1 << (key % 64)
		} else {
			k.down[key/64] &^= 1 << (key % 64)
		}
	}
	k.queue.push(KeyEvent{Kind: KeyEventState, Key: key, Down: down})
}

func (k *Keyboard) onChar(ch rune) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.created {
		k.queue.push(KeyEvent{Kind: KeyEventChar, Char: ch})
	}
}

// Poll reports whether an event is waiting, without consuming it.
func (k *Keyboard) Poll() bool {
	return k.queue.len() > 0
}

// Next advances the cursor to the oldest queued event. It never
// blocks; false means the queue was empty and the current event is
// unchanged.
func (k *Keyboard) Next() bool {
	ev, ok := k.queue.pop()
	if !ok {
		return false
	}
	k.mu.Lock()
	k.current = ev
	k.valid = true
	k.mu.Unlock()
	return true
}

// EventKind returns the kind of the current event.
func (k *Keyboard) EventKind() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current.Kind
}

// EventKey returns the key code of the current event, zero when no
// event has been consumed yet.
func (k *Keyboard) EventKey() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.valid {
		return 0
	}
	return k.current.Key
}

// EventState reports whether the current event is a key press.
func (k *Keyboard) EventState() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.valid && k.current.Down
}

// EventChar returns the character of the current event, zero for
// state events.
func (k *Keyboard) EventChar() rune {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.valid {
		return 0
	}
	return k.current.Char
}

// KeyDown reads the live bitset, independent of queue consumption.
func (k *Keyboard) KeyDown(key uint32) bool {
	if key >= keyBitsetSize {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.down[key/64]&(1<<(key%64)) != 0
}

// Destroy clears the queue and every snapshot. Safe when Create was
// deferred or never called, and in-flight callbacks drain harmlessly.
func (k *Keyboard) Destroy() {
	k.display.cancelReady("keyboard")
	k.mu.Lock()
	k.created = false
	k.valid = false
	k.current = KeyEvent{}
	k.down = [keyBitsetSize / 64]uint64{}
	k.queue.clear()
	k.mu.Unlock()
}
