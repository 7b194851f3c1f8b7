package bridge

import (
	"sync"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the bridge's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// Config configures a Bridge. Backend is required; everything else
// has working zero-value defaults. A zero Platform means the facts of
// the running host.
type Config struct {
	Backend  Backend
	Logger   *zap.Logger
	Platform wasmbridge.Platform
}

// Bridge owns every legacy subsystem emulation. Construction always
// succeeds; subsystems bind to the backend lazily through their create
// calls.
type Bridge struct {
	Display  *Display
	Keyboard *Keyboard
	Pointer  *Pointer
	Audio    *Audio
	Clock    *Clock
	Buffers  *Buffers

	logger   *zap.Logger
	platform wasmbridge.Platform
}

// New wires the subsystem set over one backend.
func New(cfg Config) *Bridge {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	platform := cfg.Platform
	if platform == (wasmbridge.Platform{}) {
		platform = wasmbridge.HostPlatform()
	}

	b := &Bridge{
		logger:   log,
		platform: platform,
	}
	b.Display = newDisplay(cfg.Backend, log)
	b.Keyboard = newKeyboard(b.Display)
	b.Pointer = newPointer(b.Display)
	b.Audio = newAudio(cfg.Backend, log)
	b.Clock = newClock()
	b.Buffers = newBuffers()
	return b
}

// Platform reports the host facts supplied at construction.
func (b *Bridge) Platform() wasmbridge.Platform {
	return b.platform
}

// Close tears down every subsystem. Safe to call on a bridge whose
// subsystems were never created.
func (b *Bridge) Close() {
	b.Audio.closeAll()
	b.Keyboard.Destroy()
	b.Pointer.Destroy()
	b.Display.Destroy()
}
