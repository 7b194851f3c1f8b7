package wasm

import (
	"bytes"
	"testing"
)

func TestInstrRoundTrip(t *testing.T) {
	instrs := []Instr{
		{Op: OpBlock, Imm: BlockImm{Type: BlockTypeVoid}},
		{Op: OpI32Const, Imm: I32Imm{Value: -7}},
		{Op: OpBrIf, Imm: BranchImm{LabelIdx: 0}},
		{Op: OpEnd},
		{Op: OpCall, Imm: CallImm{FuncIdx: 3}},
		{Op: OpCallIndirect, Imm: CallIndirectImm{TypeIdx: 1, TableIdx: 0}},
		{Op: OpGlobalGet, Imm: GlobalImm{GlobalIdx: 2}},
		{Op: OpI32Load, Imm: MemImm{Align: 2, Offset: 16}},
		{Op: OpF64Const, Imm: F64Imm{Value: 3.5}},
		{Op: OpRefFunc, Imm: RefFuncImm{FuncIdx: 9}},
		{Op: OpBrTable, Imm: BrTableImm{Labels: []uint32{0, 1}, Default: 2}},
		{Op: OpPrefixMisc, Imm: MiscImm{SubOpcode: MiscMemoryFill, Operands: []uint32{0}}},
		{Op: OpThrow, Imm: TagImm{TagIdx: 1}},
		{Op: OpEnd},
	}

	raw := EncodeInstrs(instrs)
	decoded, err := DecodeInstrs(raw)
	if err != nil {
		t.Fatalf("DecodeInstrs failed: %v", err)
	}
	if len(decoded) != len(instrs) {
		t.Fatalf("got %d instructions, want %d", len(decoded), len(instrs))
	}
	if !bytes.Equal(raw, EncodeInstrs(decoded)) {
		t.Fatal("re-encode differs")
	}

	if imm, ok := decoded[4].Imm.(CallImm); !ok || imm.FuncIdx != 3 {
		t.Fatalf("call immediate wrong: %+v", decoded[4].Imm)
	}
	if imm, ok := decoded[12].Imm.(TagImm); !ok || imm.TagIdx != 1 {
		t.Fatalf("throw immediate wrong: %+v", decoded[12].Imm)
	}
}

func TestTryTableRoundTrip(t *testing.T) {
	instrs := []Instr{
		{Op: OpTryTable, Imm: TryTableImm{
			BlockType: BlockTypeVoid,
			Catches: []CatchClause{
				{Kind: CatchKindCatch, TagIdx: 0, LabelIdx: 1},
				{Kind: CatchKindCatchAll, LabelIdx: 0},
			},
		}},
		{Op: OpEnd},
		{Op: OpEnd},
	}
	decoded, err := DecodeInstrs(EncodeInstrs(instrs))
	if err != nil {
		t.Fatalf("DecodeInstrs failed: %v", err)
	}
	imm, ok := decoded[0].Imm.(TryTableImm)
	if !ok || len(imm.Catches) != 2 {
		t.Fatalf("try_table immediate wrong: %+v", decoded[0].Imm)
	}
	if imm.Catches[0].Kind != CatchKindCatch || imm.Catches[0].TagIdx != 0 {
		t.Fatalf("catch clause wrong: %+v", imm.Catches[0])
	}
}

func TestNumericOpcodesImmFree(t *testing.T) {
	// The full numeric range decodes without consuming immediates.
	raw := []byte{0x45, 0x6A, 0x7C, 0xC4, OpEnd} // i32.eqz, i32.add, i64.mul, i64.extend32_s, end
	decoded, err := DecodeInstrs(raw)
	if err != nil {
		t.Fatalf("DecodeInstrs failed: %v", err)
	}
	if len(decoded) != 5 {
		t.Fatalf("got %d instructions, want 5", len(decoded))
	}
}

func TestUnsupportedOpcodeRejected(t *testing.T) {
	// 0xFD is the SIMD prefix, deliberately unsupported.
	if _, err := DecodeInstrs([]byte{0xFD, 0x00}); err == nil {
		t.Fatal("expected error for SIMD prefix")
	}
}
