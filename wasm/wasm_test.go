package wasm

import (
	"bytes"
	"testing"
)

// testModule builds a module exercising every section the codec handles.
func testModule() *Module {
	max := uint32(16)
	start := uint32(2)
	dataCount := uint32(1)
	return &Module{
		Types: []FuncType{
			{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}},
			{},
			{Results: []ValType{ValI32}},
		},
		Imports: []Import{
			{Module: "legacy:display@1.0", Name: "create", Kind: KindFunc, TypeIdx: 2},
			{Module: "legacy:keyboard@1.0", Name: "shift-down", Kind: KindGlobal,
				Global: &GlobalType{Type: ValI32}},
			{Module: "legacy:sys@1.0", Name: "fault", Kind: KindTag, Tag: &Tag{TypeIdx: 1}},
		},
		Funcs:    []uint32{0, 1},
		Tables:   []Table{{ElemType: ValFuncRef, Limits: Limits{Min: 2, Max: &max}}},
		Memories: []Memory{{Limits: Limits{Min: 1}}},
		Globals: []Global{
			{Type: GlobalType{Type: ValI32, Mutable: true},
				Init: []byte{OpI32Const, 0x2A, OpEnd}},
		},
		Exports: []Export{
			{Name: "add", Kind: KindFunc, Idx: 1},
			{Name: "memory", Kind: KindMemory, Idx: 0},
		},
		Start: &start,
		Elements: []Element{
			{Flags: 0, Offset: []byte{OpI32Const, 0x00, OpEnd}, FuncIdxs: []uint32{1, 2}},
		},
		DataCount: &dataCount,
		Code: []FuncBody{
			{Code: EncodeInstrs([]Instr{
				{Op: OpLocalGet, Imm: LocalImm{LocalIdx: 0}},
				{Op: OpLocalGet, Imm: LocalImm{LocalIdx: 1}},
				{Op: 0x6A}, // i32.add
				{Op: OpEnd},
			})},
			{Locals: []Local{{Count: 1, Type: ValI64}}, Code: EncodeInstrs([]Instr{
				{Op: OpCall, Imm: CallImm{FuncIdx: 0}},
				{Op: OpDrop},
				{Op: OpEnd},
			})},
		},
		Data: []DataSegment{
			{Flags: 0, Offset: []byte{OpI32Const, 0x08, OpEnd}, Init: []byte("hello")},
		},
		Customs: []Custom{{Name: "producer", Data: []byte{1, 2, 3}}},
	}
}

func TestRoundTrip(t *testing.T) {
	original := testModule()
	raw := original.Encode()

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// A second encode of the decoded tree must be byte-identical: the
	// codec computes all derived sizes, so the fixpoint is immediate.
	if !bytes.Equal(raw, decoded.Encode()) {
		t.Fatal("re-encode of decoded module differs from first encode")
	}

	if len(decoded.Imports) != 3 || decoded.Imports[0].Module != "legacy:display@1.0" {
		t.Fatalf("imports not preserved: %+v", decoded.Imports)
	}
	if decoded.Imports[1].Kind != KindGlobal || decoded.Imports[1].Global.Type != ValI32 {
		t.Fatalf("global import not preserved: %+v", decoded.Imports[1])
	}
	if decoded.Imports[2].Kind != KindTag || decoded.Imports[2].Tag.TypeIdx != 1 {
		t.Fatalf("tag import not preserved: %+v", decoded.Imports[2])
	}
	if decoded.Start == nil || *decoded.Start != 2 {
		t.Fatalf("start not preserved: %v", decoded.Start)
	}
	if len(decoded.Elements) != 1 || len(decoded.Elements[0].FuncIdxs) != 2 {
		t.Fatalf("elements not preserved: %+v", decoded.Elements)
	}
	if payload, ok := decoded.CustomSection("producer"); !ok || !bytes.Equal(payload, []byte{1, 2, 3}) {
		t.Fatalf("custom section not preserved")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	if _, err := Decode([]byte{0, 0, 0, 0, 1, 0, 0, 0}); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecodeRejectsTruncatedSection(t *testing.T) {
	raw := testModule().Encode()
	if _, err := Decode(raw[:len(raw)-4]); err == nil {
		t.Fatal("expected error for truncated module")
	}
}

func TestDecodeRejectsOutOfOrderSections(t *testing.T) {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00})
	// Export section (7) before type section (1).
	out.Write([]byte{SectionExport, 0x01, 0x00})
	out.Write([]byte{SectionType, 0x01, 0x00})
	if _, err := Decode(out.Bytes()); err == nil {
		t.Fatal("expected error for out-of-order sections")
	}
}

func TestFuncTypeAt(t *testing.T) {
	m := testModule()

	// Index 0 is the imported func with type 2: () -> i32.
	ft := m.FuncTypeAt(0)
	if ft == nil || len(ft.Params) != 0 || len(ft.Results) != 1 {
		t.Fatalf("import type wrong: %+v", ft)
	}
	// Index 1 is the first defined func with type 0: (i32, i32) -> i32.
	ft = m.FuncTypeAt(1)
	if ft == nil || len(ft.Params) != 2 {
		t.Fatalf("defined func type wrong: %+v", ft)
	}
	if m.FuncTypeAt(99) != nil {
		t.Fatal("out-of-range index should return nil")
	}
}

func TestAddTypeReusesExisting(t *testing.T) {
	m := testModule()
	n := len(m.Types)

	idx := m.AddType(FuncType{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}})
	if idx != 0 || len(m.Types) != n {
		t.Fatalf("expected reuse of type 0, got idx=%d len=%d", idx, len(m.Types))
	}
	idx = m.AddType(FuncType{Params: []ValType{ValF64}})
	if int(idx) != n || len(m.Types) != n+1 {
		t.Fatalf("expected append at %d, got idx=%d len=%d", n, idx, len(m.Types))
	}
}

func TestSetCustomSection(t *testing.T) {
	m := &Module{}
	m.SetCustomSection("bridge-sig", []byte("a"))
	m.SetCustomSection("bridge-sig", []byte("b"))
	if len(m.Customs) != 1 {
		t.Fatalf("expected single section, got %d", len(m.Customs))
	}
	if payload, _ := m.CustomSection("bridge-sig"); string(payload) != "b" {
		t.Fatalf("expected replacement, got %q", payload)
	}
}

func TestTagSectionOrdering(t *testing.T) {
	// A module with memory, tag and global sections must decode: the tag
	// section is ordered between memory and global.
	m := &Module{
		Types:    []FuncType{{Params: []ValType{ValI32}}},
		Memories: []Memory{{Limits: Limits{Min: 1}}},
		Tags:     []Tag{{TypeIdx: 0}},
		Globals: []Global{{Type: GlobalType{Type: ValI32},
			Init: []byte{OpI32Const, 0x00, OpEnd}}},
	}
	if _, err := Decode(m.Encode()); err != nil {
		t.Fatalf("tag section ordering rejected: %v", err)
	}
}
