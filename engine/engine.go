package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages
	// (64KB each). 0 means the wazero default.
	MemoryLimitPages uint32

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Engine wraps a wazero runtime behind the load pipeline the
// coordinator attaches to.
type Engine struct {
	runtime wazero.Runtime
	logger  *zap.Logger

	mu           sync.Mutex
	transformers []wasmbridge.Transformer
	modules      map[string]*loadedModule
}

// loadedModule retains what Retransform needs: the bytes the module
// was originally loaded from and the live instance.
type loadedModule struct {
	identity string
	raw      []byte
	instance api.Module
}

func (m *loadedModule) Identity() string { return m.identity }
func (m *loadedModule) Raw() []byte      { return m.raw }

// New creates an engine with its own wazero runtime.
func New(ctx context.Context, cfg Config) *Engine {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		logger:  log,
		modules: make(map[string]*loadedModule),
	}
}

// RegisterTransformer adds a transformer applied to every subsequent
// load, in registration order.
func (e *Engine) RegisterTransformer(t wasmbridge.Transformer) error {
	if t == nil {
		return errors.InvalidInput(errors.PhaseRegister, "nil transformer")
	}
	e.mu.Lock()
	e.transformers = append(e.transformers, t)
	e.mu.Unlock()
	return nil
}

// ActiveModules lists resident modules with their original bytes.
func (e *Engine) ActiveModules() []wasmbridge.ActiveModule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]wasmbridge.ActiveModule, 0, len(e.modules))
	for _, m := range e.modules {
		out = append(out, m)
	}
	return out
}

// Retransform replaces a resident module's instance with one built
// from raw. The old instance closes first; guests re-resolve state on
// next use, which is acceptable for load-time migration.
func (e *Engine) Retransform(identity string, raw []byte) error {
	e.mu.Lock()
	old, ok := e.modules[identity]
	e.mu.Unlock()
	if !ok {
		return errors.NotFound(errors.PhaseLoad, "module", identity)
	}

	ctx := context.Background()
	if err := old.instance.Close(ctx); err != nil {
		return errors.Instantiation(identity, err)
	}
	instance, err := e.instantiate(ctx, identity, raw)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.modules[identity] = &loadedModule{identity: identity, raw: raw, instance: instance}
	e.mu.Unlock()
	e.logger.Debug("module retransformed", zap.String("module", identity))
	return nil
}

// LoadModule runs registered transformers over raw, then compiles and
// instantiates the result. The pre-transform bytes are retained for
// later retransform sweeps.
func (e *Engine) LoadModule(ctx context.Context, identity string, raw []byte) (api.Module, error) {
	e.mu.Lock()
	transformers := make([]wasmbridge.Transformer, len(e.transformers))
	copy(transformers, e.transformers)
	e.mu.Unlock()

	bytes := raw
	for _, t := range transformers {
		if out, changed := t.Transform(identity, bytes); changed {
			bytes = out
		}
	}

	instance, err := e.instantiate(ctx, identity, bytes)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.modules[identity] = &loadedModule{identity: identity, raw: raw, instance: instance}
	e.mu.Unlock()
	return instance, nil
}

func (e *Engine) instantiate(ctx context.Context, identity string, bytes []byte) (api.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, bytes)
	if err != nil {
		return nil, errors.Instantiation(identity, err)
	}
	instance, err := e.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(identity))
	if err != nil {
		return nil, errors.Instantiation(identity, err)
	}
	return instance, nil
}

// Module returns a resident module's instance, or nil.
func (e *Engine) Module(identity string) api.Module {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.modules[identity]; ok {
		return m.instance
	}
	return nil
}

// Close shuts down the runtime and every instance.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
