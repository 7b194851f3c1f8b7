// Package wasm provides WebAssembly binary format parsing and encoding
// for the subset of the format the bridge rewriter manipulates.
//
// A module is decoded into an immutable tree of plain structs, edited by
// the caller, and encoded back bottom-up. All derived metadata (section
// sizes, body sizes, LEB widths) is recomputed during Encode, so callers
// never maintain it by hand.
//
//	mod, err := wasm.Decode(raw)
//	if err != nil { ... }
//	mod.Imports[0].Module = "bridge:display@2.0"
//	out := mod.Encode()
//
// # Supported features
//
//	WebAssembly 2.0 core:
//	  - Value types i32, i64, f32, f64, funcref, externref
//	  - Functions, tables, memories, globals, imports, exports
//	  - Control flow, calls, variable access, memory operations
//	  - Bulk memory (0xFC prefix)
//	Proposals:
//	  - Exception handling (tags, throw, try_table)
//	  - Tail calls (return_call, return_call_indirect)
//
// SIMD, atomics and GC constructs are rejected with a decode error. The
// rewriter treats any decode error as "leave the module untouched", so
// modules using those features pass through unmodified.
//
// The package also decodes and encodes the "name" custom section (module,
// function and local names), which the rewriter keeps in lockstep with
// instruction edits.
package wasm
