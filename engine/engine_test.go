package engine

import (
	"context"
	"testing"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/loader"
	"github.com/wippyai/wasm-bridge/wasm"
)

// clockGuest imports the legacy tick counter and re-exports it.
func clockGuest() []byte {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Imports: []wasm.Import{
			{Module: "legacy:sys@1.0", Name: "ticks", Kind: wasm.KindFunc, TypeIdx: 0},
		},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{0x10, 0x00, 0x0B}}},
		Exports: []wasm.Export{
			{Name: "main", Kind: wasm.KindFunc, Idx: 1},
		},
	}
	return mod.Encode()
}

// keyboardGuest polls the legacy keyboard once.
func keyboardGuest() []byte {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Imports: []wasm.Import{
			{Module: "legacy:keyboard@1.0", Name: "poll", Kind: wasm.KindFunc, TypeIdx: 0},
		},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{0x10, 0x00, 0x0B}}},
		Exports: []wasm.Export{
			{Name: "main", Kind: wasm.KindFunc, Idx: 1},
		},
	}
	return mod.Encode()
}

// constGuest exports a function returning v.
func constGuest(v byte) []byte {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{0x41, v, 0x0B}}},
		Exports: []wasm.Export{
			{Name: "answer", Kind: wasm.KindFunc, Idx: 0},
		},
	}
	return mod.Encode()
}

func TestRewrittenGuestCallsClockHostModule(t *testing.T) {
	ctx := context.Background()
	eng := New(ctx, Config{})
	defer eng.Close(ctx)

	br := bridge.New(bridge.Config{})
	if err := eng.BindBridge(ctx, br); err != nil {
		t.Fatalf("BindBridge: %v", err)
	}

	coord := loader.New(loader.Config{})
	coord.Attach(eng)

	mod, err := eng.LoadModule(ctx, "game/clock", clockGuest())
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, err := mod.ExportedFunction("main").Call(ctx); err != nil {
		t.Fatalf("guest call failed: %v", err)
	}
	if s := coord.Stats(); s.Transformed != 1 {
		t.Errorf("coordinator stats = %+v", s)
	}
}

func TestKeyboardPollReadsEmptyQueue(t *testing.T) {
	ctx := context.Background()
	eng := New(ctx, Config{})
	defer eng.Close(ctx)

	br := bridge.New(bridge.Config{})
	if err := eng.BindBridge(ctx, br); err != nil {
		t.Fatalf("BindBridge: %v", err)
	}
	coord := loader.New(loader.Config{})
	coord.Attach(eng)

	mod, err := eng.LoadModule(ctx, "game/input", keyboardGuest())
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	res, err := mod.ExportedFunction("main").Call(ctx)
	if err != nil {
		t.Fatalf("guest call failed: %v", err)
	}
	if res[0] != 0 {
		t.Errorf("poll on empty queue = %d, want 0", res[0])
	}
}

// platformGuest already targets the bridge surface directly and asks
// for the pointer width.
func platformGuest() []byte {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
		Imports: []wasm.Import{
			{Module: "bridge:runtime@2.0", Name: "pointer-width", Kind: wasm.KindFunc, TypeIdx: 0},
		},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{0x10, 0x00, 0x0B}}},
		Exports: []wasm.Export{
			{Name: "main", Kind: wasm.KindFunc, Idx: 1},
		},
	}
	return mod.Encode()
}

func TestGuestReadsHostPlatformFacts(t *testing.T) {
	ctx := context.Background()
	eng := New(ctx, Config{})
	defer eng.Close(ctx)

	br := bridge.New(bridge.Config{})
	if err := eng.BindBridge(ctx, br); err != nil {
		t.Fatalf("BindBridge: %v", err)
	}

	mod, err := eng.LoadModule(ctx, "game/platform", platformGuest())
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	res, err := mod.ExportedFunction("main").Call(ctx)
	if err != nil {
		t.Fatalf("guest call failed: %v", err)
	}
	if want := uint64(wasmbridge.HostPlatform().PointerWidth); res[0] != want {
		t.Errorf("pointer-width = %d, want %d", res[0], want)
	}
}

func TestRetransformReplacesInstance(t *testing.T) {
	ctx := context.Background()
	eng := New(ctx, Config{})
	defer eng.Close(ctx)

	if _, err := eng.LoadModule(ctx, "game/answer", constGuest(41)); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	res, err := eng.Module("game/answer").ExportedFunction("answer").Call(ctx)
	if err != nil || res[0] != 41 {
		t.Fatalf("first call = %v, %v", res, err)
	}

	if err := eng.Retransform("game/answer", constGuest(42)); err != nil {
		t.Fatalf("Retransform: %v", err)
	}
	res, err = eng.Module("game/answer").ExportedFunction("answer").Call(ctx)
	if err != nil || res[0] != 42 {
		t.Fatalf("call after retransform = %v, %v", res, err)
	}

	active := eng.ActiveModules()
	if len(active) != 1 || active[0].Identity() != "game/answer" {
		t.Fatalf("active modules = %v", active)
	}
}

func TestRetransformUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	eng := New(ctx, Config{})
	defer eng.Close(ctx)

	if err := eng.Retransform("nope", constGuest(1)); err == nil {
		t.Fatal("expected error for unknown identity")
	}
}

func TestRegisterTransformerRejectsNil(t *testing.T) {
	ctx := context.Background()
	eng := New(ctx, Config{})
	defer eng.Close(ctx)

	if err := eng.RegisterTransformer(nil); err == nil {
		t.Fatal("expected error for nil transformer")
	}
}

func TestLoadModuleRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	eng := New(ctx, Config{})
	defer eng.Close(ctx)

	if _, err := eng.LoadModule(ctx, "junk", []byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected error for invalid bytes")
	}
}
