package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// hostFunc describes one export of a host module: a handler plus its
// core signature.
type hostFunc struct {
	Name        string
	Handler     api.GoModuleFunc
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// BindBridge instantiates the bridge host modules over br so rewritten
// guests resolve their imports. Call once before loading guests.
func (e *Engine) BindBridge(ctx context.Context, br *bridge.Bridge) error {
	bb := &bridgeBinding{bridge: br, logger: e.logger, handles: make(map[uint32][]byte)}
	modules := map[string][]hostFunc{
		"bridge:display@2.0":  bb.displayFuncs(),
		"bridge:keyboard@2.0": bb.keyboardFuncs(),
		"bridge:pointer@2.0":  bb.pointerFuncs(),
		"bridge:audio@2.0":    bb.audioFuncs(),
		"bridge:clock@2.0":    bb.clockFuncs(),
		"bridge:buffers@2.0":  bb.bufferFuncs(),
		"bridge:runtime@2.0":  bb.runtimeFuncs(),
	}
	for name, funcs := range modules {
		builder := e.runtime.NewHostModuleBuilder(name)
		for _, f := range funcs {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(f.Handler, f.ParamTypes, f.ResultTypes).
				Export(f.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.Instantiation(name, err)
		}
	}
	return nil
}

// bridgeBinding adapts bridge subsystem calls to the stack-based host
// ABI. Strings and byte buffers cross through guest linear memory;
// pairs of 32-bit values pack into one i64 result.
type bridgeBinding struct {
	bridge *bridge.Bridge
	logger *zap.Logger

	mu         sync.Mutex
	handles    map[uint32][]byte
	nextHandle uint32
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func packU32Pair(hi, lo uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// readMem copies a guest memory range; nil with a log entry when the
// range is out of bounds.
func (bb *bridgeBinding) readMem(mod api.Module, ptr, length uint32) []byte {
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok {
		bb.logger.Warn("guest memory read out of range",
			zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return nil
	}
	return buf
}

func (bb *bridgeBinding) displayFuncs() []hostFunc {
	d := bb.bridge.Display
	return []hostFunc{
		{"create", func(_ context.Context, _ api.Module, stack []uint64) {
			err := d.Create(uint32(stack[0]), uint32(stack[1]))
			if err != nil {
				bb.logger.Error("surface create failed", zap.Error(err))
			}
			stack[0] = boolToU64(err != nil)
		}, []api.ValueType{i32, i32}, []api.ValueType{i32}},

		{"set-title", func(_ context.Context, mod api.Module, stack []uint64) {
			if buf := bb.readMem(mod, uint32(stack[0]), uint32(stack[1])); buf != nil {
				d.SetTitle(string(buf))
			}
		}, []api.ValueType{i32, i32}, nil},

		{"update", func(_ context.Context, mod api.Module, stack []uint64) {
			buf := bb.readMem(mod, uint32(stack[0]), uint32(stack[1]))
			var err error
			if buf != nil {
				err = d.Update(buf)
			}
			stack[0] = boolToU64(buf == nil || err != nil)
		}, []api.ValueType{i32, i32}, []api.ValueType{i32}},

		{"close-requested", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(d.CloseRequested())
		}, nil, []api.ValueType{i32}},

		{"size", func(_ context.Context, _ api.Module, stack []uint64) {
			w, h := d.Size()
			stack[0] = packU32Pair(w, h)
		}, nil, []api.ValueType{i64}},

		{"destroy", func(_ context.Context, _ api.Module, _ []uint64) {
			d.Destroy()
		}, nil, nil},
	}
}

func (bb *bridgeBinding) keyboardFuncs() []hostFunc {
	k := bb.bridge.Keyboard
	return []hostFunc{
		{"create", func(_ context.Context, _ api.Module, _ []uint64) {
			k.Create()
		}, nil, nil},

		{"poll", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(k.Poll())
		}, nil, []api.ValueType{i32}},

		{"next", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(k.Next())
		}, nil, []api.ValueType{i32}},

		{"event-kind", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(uint32(k.EventKind()))
		}, nil, []api.ValueType{i32}},

		{"event-key", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(k.EventKey())
		}, nil, []api.ValueType{i32}},

		{"event-state", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(k.EventState())
		}, nil, []api.ValueType{i32}},

		{"event-char", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(uint32(k.EventChar()))
		}, nil, []api.ValueType{i32}},

		{"key-down", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(k.KeyDown(uint32(stack[0])))
		}, []api.ValueType{i32}, []api.ValueType{i32}},

		{"destroy", func(_ context.Context, _ api.Module, _ []uint64) {
			k.Destroy()
		}, nil, nil},
	}
}

func (bb *bridgeBinding) pointerFuncs() []hostFunc {
	p := bb.bridge.Pointer
	return []hostFunc{
		{"create", func(_ context.Context, _ api.Module, _ []uint64) {
			p.Create()
		}, nil, nil},

		{"position", func(_ context.Context, _ api.Module, stack []uint64) {
			x, y := p.Position()
			stack[0] = packU32Pair(uint32(x), uint32(y))
		}, nil, []api.ValueType{i64}},

		{"warp", func(_ context.Context, _ api.Module, stack []uint64) {
			p.Warp(int32(uint32(stack[0])), int32(uint32(stack[1])))
		}, []api.ValueType{i32, i32}, nil},

		{"delta", func(_ context.Context, _ api.Module, stack []uint64) {
			dx, dy := p.Delta()
			stack[0] = packU32Pair(uint32(dx), uint32(dy))
		}, nil, []api.ValueType{i64}},

		{"wheel", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(uint32(p.Wheel()))
		}, nil, []api.ValueType{i32}},

		{"button-down", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(p.ButtonDown(uint32(stack[0])))
		}, []api.ValueType{i32}, []api.ValueType{i32}},

		{"poll", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(p.Poll())
		}, nil, []api.ValueType{i32}},

		{"next", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = boolToU64(p.Next())
		}, nil, []api.ValueType{i32}},

		{"event-kind", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(uint32(p.Event().Kind))
		}, nil, []api.ValueType{i32}},

		{"event-position", func(_ context.Context, _ api.Module, stack []uint64) {
			ev := p.Event()
			stack[0] = packU32Pair(uint32(ev.X), uint32(ev.Y))
		}, nil, []api.ValueType{i64}},

		{"event-button", func(_ context.Context, _ api.Module, stack []uint64) {
			ev := p.Event()
			stack[0] = packU32Pair(uint32(ev.Button), uint32(boolToU64(ev.Down)))
		}, nil, []api.ValueType{i64}},

		{"event-scroll", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(uint32(p.Event().Scroll))
		}, nil, []api.ValueType{i32}},

		{"destroy", func(_ context.Context, _ api.Module, _ []uint64) {
			p.Destroy()
		}, nil, nil},
	}
}

func (bb *bridgeBinding) audioFuncs() []hostFunc {
	a := bb.bridge.Audio
	return []hostFunc{
		// Handle 0 signals failure; real handles start at 1.
		{"open-channel", func(_ context.Context, _ api.Module, stack []uint64) {
			id, err := a.OpenChannel(uint32(stack[0]), uint32(stack[1]))
			if err != nil {
				bb.logger.Error("audio channel open failed", zap.Error(err))
				id = 0
			}
			stack[0] = uint64(id)
		}, []api.ValueType{i32, i32}, []api.ValueType{i32}},

		{"queue", func(_ context.Context, mod api.Module, stack []uint64) {
			buf := bb.readMem(mod, uint32(stack[1]), uint32(stack[2]))
			var err error
			if buf != nil {
				err = a.Queue(uint32(stack[0]), buf)
			}
			stack[0] = boolToU64(buf == nil || err != nil)
		}, []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},

		{"processed", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(a.Processed(uint32(stack[0])))
		}, []api.ValueType{i32}, []api.ValueType{i32}},

		{"queued", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(a.Queued(uint32(stack[0])))
		}, []api.ValueType{i32}, []api.ValueType{i32}},

		{"close-channel", func(_ context.Context, _ api.Module, stack []uint64) {
			a.CloseChannel(uint32(stack[0]))
		}, []api.ValueType{i32}, nil},
	}
}

func (bb *bridgeBinding) clockFuncs() []hostFunc {
	c := bb.bridge.Clock
	return []hostFunc{
		{"ticks", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(c.Ticks())
		}, nil, []api.ValueType{i32}},

		{"hires", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = c.Hires()
		}, nil, []api.ValueType{i64}},

		{"sync-rate", func(_ context.Context, _ api.Module, stack []uint64) {
			c.SyncRate(uint32(stack[0]))
		}, []api.ValueType{i32}, nil},
	}
}

// Buffer exports hand out opaque handles; data moves between a host
// buffer and guest memory through read/write so guests can stage data
// larger than they want resident.
func (bb *bridgeBinding) bufferFuncs() []hostFunc {
	bu := bb.bridge.Buffers
	return []hostFunc{
		{"alloc", func(_ context.Context, _ api.Module, stack []uint64) {
			buf := bu.Alloc(uint32(stack[0]))
			bb.mu.Lock()
			bb.nextHandle++
			h := bb.nextHandle
			bb.handles[h] = buf
			bb.mu.Unlock()
			stack[0] = uint64(h)
		}, []api.ValueType{i32}, []api.ValueType{i32}},

		{"free", func(_ context.Context, _ api.Module, stack []uint64) {
			h := uint32(stack[0])
			bb.mu.Lock()
			buf, ok := bb.handles[h]
			delete(bb.handles, h)
			bb.mu.Unlock()
			if ok {
				bu.Free(buf)
			}
		}, []api.ValueType{i32}, nil},

		{"size", func(_ context.Context, _ api.Module, stack []uint64) {
			bb.mu.Lock()
			buf := bb.handles[uint32(stack[0])]
			bb.mu.Unlock()
			stack[0] = uint64(uint32(len(buf)))
		}, []api.ValueType{i32}, []api.ValueType{i32}},

		{"write", func(_ context.Context, mod api.Module, stack []uint64) {
			stack[0] = boolToU64(!bb.copyToHost(mod,
				uint32(stack[0]), uint32(stack[1]), uint32(stack[2]), uint32(stack[3])))
		}, []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}},

		{"read", func(_ context.Context, mod api.Module, stack []uint64) {
			stack[0] = boolToU64(!bb.copyToGuest(mod,
				uint32(stack[0]), uint32(stack[1]), uint32(stack[2]), uint32(stack[3])))
		}, []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}},
	}
}

func (bb *bridgeBinding) copyToHost(mod api.Module, h, offset, ptr, length uint32) bool {
	bb.mu.Lock()
	buf := bb.handles[h]
	bb.mu.Unlock()
	if uint64(offset)+uint64(length) > uint64(len(buf)) {
		return false
	}
	src := bb.readMem(mod, ptr, length)
	if src == nil {
		return false
	}
	copy(buf[offset:], src)
	return true
}

func (bb *bridgeBinding) copyToGuest(mod api.Module, h, offset, ptr, length uint32) bool {
	bb.mu.Lock()
	buf := bb.handles[h]
	bb.mu.Unlock()
	if uint64(offset)+uint64(length) > uint64(len(buf)) {
		return false
	}
	return mod.Memory().Write(ptr, buf[offset:offset+length])
}

// Codes for the os-family export. Unlisted systems report 0.
const (
	osOther   = 0
	osLinux   = 1
	osDarwin  = 2
	osWindows = 3
)

func osFamilyCode(os string) uint32 {
	switch os {
	case "linux":
		return osLinux
	case "darwin":
		return osDarwin
	case "windows":
		return osWindows
	default:
		return osOther
	}
}

// runtimeFuncs covers the generic failure surface and the platform
// facts. The wazero runtime does not implement the exception-handling
// proposal, so the failure member binds as a trapping function rather
// than a tag: raising unwinds the whole guest call.
func (bb *bridgeBinding) runtimeFuncs() []hostFunc {
	platform := bb.bridge.Platform()
	return []hostFunc{
		{"failure", func(_ context.Context, _ api.Module, stack []uint64) {
			code := uint32(stack[0])
			bb.logger.Error("guest raised failure", zap.Uint32("code", code))
			panic(errors.New(errors.PhaseBridge, errors.KindBackend,
				"guest failure %d", code))
		}, []api.ValueType{i32}, nil},

		{"os-family", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(osFamilyCode(platform.OS))
		}, nil, []api.ValueType{i32}},

		{"pointer-width", func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(uint32(platform.PointerWidth))
		}, nil, []api.ValueType{i32}},
	}
}
