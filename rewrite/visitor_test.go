package rewrite

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-bridge/redirect"
	"github.com/wippyai/wasm-bridge/wasm"
)

// legacyGuest models a typical guest binary: two legacy imports, one
// current import, one defined function calling through them.
func legacyGuest() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{},
		},
		Imports: []wasm.Import{
			{Module: "legacy:display@1.0", Name: "create", Kind: wasm.KindFunc, TypeIdx: 0},
			{Module: "legacy:mouse@1.0", Name: "x", Kind: wasm.KindGlobal,
				Global: &wasm.GlobalType{Type: wasm.ValI32}},
			{Module: "wasi:io@0.2.0", Name: "drop", Kind: wasm.KindFunc, TypeIdx: 1},
		},
		Funcs: []uint32{1},
		Code: []wasm.FuncBody{{
			// i32.const 640, i32.const 480, call 0, drop, global.get 0, drop, end
			Code: []byte{0x41, 0x80, 0x05, 0x41, 0xE0, 0x03, 0x10, 0x00, 0x1A, 0x23, 0x00, 0x1A, 0x0B},
		}},
	}
}

func TestRewriteNamespaceSubstitution(t *testing.T) {
	mod := legacyGuest()
	rw := redirect.NewRewriter()

	res, err := Rewrite(mod, nil, rw)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !res.Changed {
		t.Fatal("expected change")
	}
	if mod.Imports[0].Module != "bridge:display@2.0" || mod.Imports[0].Name != "create" {
		t.Errorf("func import wrong: %s#%s", mod.Imports[0].Module, mod.Imports[0].Name)
	}
	if mod.Imports[1].Module != "bridge:pointer@2.0" {
		t.Errorf("global import wrong: %s", mod.Imports[1].Module)
	}
	if mod.Imports[2].Module != "wasi:io@0.2.0" {
		t.Errorf("unrelated import touched: %s", mod.Imports[2].Module)
	}
	if res.Funcs != 1 || res.Globals != 1 {
		t.Errorf("counts = %d funcs, %d globals, want 1/1", res.Funcs, res.Globals)
	}
}

func TestRewriteLeavesCallSitesWhenNoSwap(t *testing.T) {
	mod := legacyGuest()
	before := append([]byte(nil), mod.Code[0].Code...)

	if _, err := Rewrite(mod, nil, redirect.NewRewriter()); err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !bytes.Equal(mod.Code[0].Code, before) {
		t.Error("renaming imports must not touch bytecode")
	}
}

func TestRewriteUnknownLegacyNamespaceUntouched(t *testing.T) {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Imports: []wasm.Import{
			{Module: "legacy:gamepad@1.0", Name: "poll", Kind: wasm.KindFunc, TypeIdx: 0},
		},
	}
	res, err := Rewrite(mod, nil, redirect.NewRewriter())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if res.Changed {
		t.Error("unmapped namespace should stay untouched")
	}
	if mod.Imports[0].Module != "legacy:gamepad@1.0" {
		t.Errorf("import changed: %s", mod.Imports[0].Module)
	}
}

func TestRewriteTableHitWinsOverNamespace(t *testing.T) {
	table, err := redirect.NewTable([]redirect.Rule{
		{Owner: "legacy:display@1.0", Member: "create",
			NewOwner: "bridge:display@2.0", NewMember: "create-surface"},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	mod := legacyGuest()
	res, err := Rewrite(mod, table, redirect.NewRewriter())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if mod.Imports[0].Name != "create-surface" {
		t.Errorf("table rename not applied: %s", mod.Imports[0].Name)
	}
	if res.Funcs != 1 {
		t.Errorf("res.Funcs = %d, want 1", res.Funcs)
	}
	funcs, _, _ := table.Counts()
	if funcs != 1 {
		t.Errorf("table func counter = %d, want 1", funcs)
	}
}

func TestRewriteDescriptorOnlyTier(t *testing.T) {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
		Imports: []wasm.Import{
			{Module: "host:render@3.0", Name: "blit", Kind: wasm.KindFunc, TypeIdx: 0},
		},
	}
	sigs := &Sigs{Entries: []SigEntry{
		{Kind: SigFunc, Index: 0, Descriptor: "func(s: handle<legacy:display@1.0/surface>)"},
	}}
	mod.SetCustomSection(SigSectionName, sigs.Encode())

	res, err := Rewrite(mod, nil, redirect.NewRewriter())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if mod.Imports[0].Module != "host:render@3.0" {
		t.Error("owner must stay when only the descriptor is legacy")
	}
	if res.Descriptors != 1 {
		t.Errorf("res.Descriptors = %d, want 1", res.Descriptors)
	}

	data, _ := mod.CustomSection(SigSectionName)
	decoded, err := DecodeSigs(data)
	if err != nil {
		t.Fatalf("DecodeSigs failed: %v", err)
	}
	desc, _ := decoded.Lookup(SigFunc, 0)
	if desc != "func(s: handle<bridge:display@2.0/surface>)" {
		t.Errorf("descriptor not rewritten: %q", desc)
	}
}

func TestRewriteFaultTagBecomesRuntimeFailure(t *testing.T) {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
		Imports: []wasm.Import{
			{Module: "legacy:sys@1.0", Name: "fault", Kind: wasm.KindTag, Tag: &wasm.Tag{TypeIdx: 0}},
			{Module: "legacy:sys@1.0", Name: "ticks", Kind: wasm.KindFunc, TypeIdx: 0},
		},
	}
	res, err := Rewrite(mod, nil, redirect.NewRewriter())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if mod.Imports[0].Module != "bridge:runtime@2.0" || mod.Imports[0].Name != "failure" {
		t.Errorf("fault tag wrong: %s#%s", mod.Imports[0].Module, mod.Imports[0].Name)
	}
	if mod.Imports[1].Module != "bridge:clock@2.0" {
		t.Errorf("sys func should land in clock: %s", mod.Imports[1].Module)
	}
	if res.Tags != 1 {
		t.Errorf("res.Tags = %d, want 1", res.Tags)
	}
}

func TestRewriteSingleCallModule(t *testing.T) {
	// The smallest interesting guest: one import, one body whose only
	// instruction chain is a single redirected call.
	mod := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Imports: []wasm.Import{
			{Module: "legacy:audio@1.0", Name: "stop", Kind: wasm.KindFunc, TypeIdx: 0},
		},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{0x10, 0x00, 0x0B}}},
	}
	res, err := Rewrite(mod, nil, redirect.NewRewriter())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !res.Changed || mod.Imports[0].Module != "bridge:audio@2.0" {
		t.Fatalf("import not redirected: %+v", mod.Imports[0])
	}
	if !bytes.Equal(mod.Code[0].Code, []byte{0x10, 0x00, 0x0B}) {
		t.Error("call site must survive untouched")
	}

	// The rewritten module must still round-trip through the codec.
	decoded, err := wasm.Decode(mod.Encode())
	if err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	if decoded.Imports[0].Module != "bridge:audio@2.0" {
		t.Error("encode lost the rename")
	}
}

func TestRewriteCleanModuleUnchanged(t *testing.T) {
	mod := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Imports: []wasm.Import{
			{Module: "bridge:display@2.0", Name: "create", Kind: wasm.KindFunc, TypeIdx: 0},
		},
	}
	res, err := Rewrite(mod, nil, redirect.NewRewriter())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if res.Changed {
		t.Error("clean module reported as changed")
	}
}
