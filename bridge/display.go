package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// Display emulates the legacy surface subsystem. Besides the surface
// itself it owns the late-binding hooks: input subsystems created
// before the surface exists park an attach function here, and Create
// completes those registrations once the surface is up.
type Display struct {
	mu      sync.Mutex
	backend Backend
	logger  *zap.Logger
	surface Surface
	pending map[string]func(Surface)
	width   uint32
	height  uint32
}

func newDisplay(backend Backend, logger *zap.Logger) *Display {
	return &Display{
		backend: backend,
		logger:  logger,
		pending: make(map[string]func(Surface)),
	}
}

// Create opens the surface. Unlike most bridge calls this propagates
// failure: a guest that cannot get its surface cannot run.
func (d *Display) Create(width, height uint32) error {
	if d.backend == nil {
		return errors.NotInitialized(errors.PhaseBridge, "backend")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.surface != nil {
		return errors.Conflict(errors.PhaseBridge, "surface already created")
	}

	s, err := d.backend.CreateSurface(width, height)
	if err != nil {
		return errors.Backend("create surface", err)
	}
	d.surface = s
	d.width, d.height = width, height

	for name, attach := range d.pending {
		d.logger.Debug("completing deferred attach", zap.String("subsystem", name))
		attach(s)
	}
	return nil
}

// SetTitle is a no-op until the surface exists.
func (d *Display) SetTitle(title string) {
	d.mu.Lock()
	s := d.surface
	d.mu.Unlock()
	if s != nil {
		s.SetTitle(title)
	}
}

// Update presents a frame.
func (d *Display) Update(pixels []byte) error {
	d.mu.Lock()
	s := d.surface
	d.mu.Unlock()
	if s == nil {
		return errors.NotInitialized(errors.PhaseBridge, "surface")
	}
	if err := s.Present(pixels); err != nil {
		return errors.Backend("present frame", err)
	}
	return nil
}

// CloseRequested polls the window-close flag; false without a surface.
func (d *Display) CloseRequested() bool {
	d.mu.Lock()
	s := d.surface
	d.mu.Unlock()
	return s != nil && s.CloseRequested()
}

// Size returns the surface dimensions, zero without a surface.
func (d *Display) Size() (width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.surface == nil {
		return 0, 0
	}
	return d.width, d.height
}

// Destroy tears the surface down. Deferred attach hooks stay parked,
// so a later Create binds the same subsystems again.
func (d *Display) Destroy() {
	d.mu.Lock()
	s := d.surface
	d.surface = nil
	d.width, d.height = 0, 0
	d.mu.Unlock()
	if s != nil {
		s.Destroy()
	}
}

// onReady runs attach now when the surface exists, otherwise parks it
// under key for the next Create. One hook per key.
func (d *Display) onReady(key string, attach func(Surface)) {
	d.mu.Lock()
	s := d.surface
	d.pending[key] = attach
	d.mu.Unlock()
	if s != nil {
		attach(s)
	}
}

// cancelReady drops a parked hook; used by subsystem destroy.
func (d *Display) cancelReady(key string) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}

// flipY converts one vertical coordinate between the backend's
// top-origin convention and the legacy bottom-origin one. Its own
// inverse for a fixed height.
func (d *Display) flipY(y int32) int32 {
	d.mu.Lock()
	h := d.height
	d.mu.Unlock()
	if h == 0 {
		return y
	}
	return int32(h) - 1 - y
}
