package bridge

// NeedDataFunc is the pull callback an audio channel drives: it
// returns at most max bytes of queued sample data, or nil when the
// queue is dry.
type NeedDataFunc func(max int) []byte

// Backend is the callback-driven environment the bridge adapts. Hosts
// implement it over their windowing and audio stack.
type Backend interface {
	// CreateSurface opens the rendering surface events are delivered
	// through. The bridge holds at most one surface at a time.
	CreateSurface(width, height uint32) (Surface, error)

	// OpenChannel opens an audio output channel that pulls sample data
	// through needData from the mixer thread.
	OpenChannel(sampleRate, channels uint32, needData NeedDataFunc) (Channel, error)
}

// Surface is one rendering surface with its input event sources.
// Callback setters replace any previously installed callback; the
// backend may invoke callbacks from any thread.
type Surface interface {
	SetTitle(title string)
	Present(pixels []byte) error
	Size() (width, height uint32)
	CloseRequested() bool

	// SetCursor warps the cursor, in the backend's top-origin
	// coordinates.
	SetCursor(x, y int32)

	OnKey(fn func(key uint32, down bool))
	OnChar(fn func(ch rune))
	OnCursor(fn func(x, y int32))
	OnButton(fn func(button uint32, down bool))
	OnWheel(fn func(delta int32))

	Destroy()
}

// Channel is an open audio output channel.
type Channel interface {
	Close() error
}
