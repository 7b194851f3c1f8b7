// Package wasmbridge provides a load-time compatibility layer for
// WebAssembly modules compiled against retired poll-style host APIs.
//
// Guest binaries importing the legacy:* namespaces are rewritten as
// they load so their imports resolve against the current bridge:*
// host surface, and a runtime bridge emulates the old poll semantics
// over the callback-driven backend.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	wasmbridge/          Root package with the transformer hook interfaces
//	├── loader/          Transformation coordinator and host registration
//	├── rewrite/         Module scanner, import visitor and renumbering
//	├── redirect/        Redirect table and descriptor rewriting
//	├── bridge/          Poll-semantics runtime bridge over callback backends
//	├── engine/          Wazero host integration and bridge host modules
//	├── wasm/            Core WASM binary manipulation primitives
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Rewrite modules as a wazero host loads them:
//
//	eng := engine.New(ctx, engine.Config{})
//	defer eng.Close(ctx)
//
//	coord := loader.New(loader.Config{})
//	coord.Attach(eng)
//
//	inst, err := eng.LoadModule(ctx, "game", wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Modules already resident in the host are swept and retransformed at
// attach time; modules loaded afterwards are rewritten inline.
package wasmbridge
