package wasmbridge

import (
	"runtime"
	"strconv"
)

// Transformer rewrites a module's raw bytes before the host compiles
// them. It returns the bytes to load and whether they differ from the
// input. Implementations must never fail the load: when a module
// cannot be rewritten they return the input unchanged.
type Transformer interface {
	Transform(identity string, raw []byte) ([]byte, bool)
}

// TransformerRegistrar is the minimal hook surface a host can offer:
// new module loads pass through registered transformers.
type TransformerRegistrar interface {
	RegisterTransformer(t Transformer) error
}

// ActiveModule is a module already resident in a host, with the raw
// bytes it was loaded from.
type ActiveModule interface {
	Identity() string
	Raw() []byte
}

// RetransformHost is the full hook surface: besides registration it
// exposes resident modules and can replace one with rewritten bytes.
type RetransformHost interface {
	TransformerRegistrar
	ActiveModules() []ActiveModule
	Retransform(identity string, raw []byte) error
}

// Platform describes the host environment to bridge subsystems and
// guests that ask for it.
type Platform struct {
	OS           string
	PointerWidth int
}

// HostPlatform reports the facts of the running host.
func HostPlatform() Platform {
	return Platform{
		OS:           runtime.GOOS,
		PointerWidth: strconv.IntSize,
	}
}
