// Package engine integrates the bridge with a wazero runtime.
//
// Engine implements the full transformer hook surface: registered
// transformers rewrite module bytes on every load, resident modules
// are listed with their original bytes, and retransform replaces a
// resident instance with rewritten bytes. BindBridge instantiates the
// bridge:*@2.0 host modules over a bridge.Bridge so rewritten guests
// find their imports.
package engine
