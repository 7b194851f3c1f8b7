package wasm

import (
	"bytes"
	"fmt"
)

// Instr is a single decoded instruction. Imm holds the opcode-specific
// immediate struct, or nil for immediate-free opcodes.
type Instr struct {
	Imm any
	Op  byte
}

// BlockImm is the block type for block, loop and if.
type BlockImm struct {
	Type int64 // BlockTypeVoid, a negated value type, or a type index (s33)
}

// BranchImm is the label index for br, br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm is the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm is the function index for call and return_call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm is the type and table index pair for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm is the local index for local.get/set/tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm is the global index for global.get/set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm is the table index for table.get/set.
type TableImm struct {
	TableIdx uint32
}

// MemImm is the alignment/offset pair for loads and stores.
type MemImm struct {
	Align  uint32
	Offset uint64
}

// MemIdxImm is the memory index for memory.size/grow.
type MemIdxImm struct {
	MemIdx uint32
}

// I32Imm, I64Imm, F32Imm and F64Imm are constant immediates.
type I32Imm struct{ Value int32 }
type I64Imm struct{ Value int64 }
type F32Imm struct{ Value float32 }
type F64Imm struct{ Value float64 }

// RefNullImm is the heap type for ref.null.
type RefNullImm struct {
	HeapType int64
}

// RefFuncImm is the function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm is the explicit result type list for typed select.
type SelectTypeImm struct {
	Types []ValType
}

// TagImm is the tag index for throw.
type TagImm struct {
	TagIdx uint32
}

// CatchClause is one catch arm of a try_table.
type CatchClause struct {
	Kind     byte
	TagIdx   uint32 // CatchKindCatch and CatchKindCatchRef only
	LabelIdx uint32
}

// TryTableImm is the block type and catch list for try_table.
type TryTableImm struct {
	Catches   []CatchClause
	BlockType int64
}

// MiscImm is the sub-opcode and operands of a 0xFC-prefixed instruction.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// DecodeInstrs decodes a raw bytecode stream into instructions.
func DecodeInstrs(code []byte) ([]Instr, error) {
	r := bytes.NewReader(code)
	instrs := make([]Instr, 0, len(code)/2)

	for r.Len() > 0 {
		op, err := r.ReadByte()
		if err != nil {
			break
		}
		in := Instr{Op: op}

		switch {
		case op == OpBlock || op == OpLoop || op == OpIf:
			bt, err := ReadLEB128s33(r)
			if err != nil {
				return nil, err
			}
			in.Imm = BlockImm{Type: bt}

		case op == OpThrow:
			tagIdx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = TagImm{TagIdx: tagIdx}

		case op == OpTryTable:
			imm, err := decodeTryTable(r)
			if err != nil {
				return nil, err
			}
			in.Imm = imm

		case op == OpBr || op == OpBrIf:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = BranchImm{LabelIdx: idx}

		case op == OpBrTable:
			count, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			labels := make([]uint32, count)
			for i := range labels {
				if labels[i], err = ReadLEB128u(r); err != nil {
					return nil, err
				}
			}
			def, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = BrTableImm{Labels: labels, Default: def}

		case op == OpCall || op == OpReturnCall:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = CallImm{FuncIdx: idx}

		case op == OpCallIndirect || op == OpReturnCallIndirect:
			typeIdx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			tableIdx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

		case op == OpLocalGet || op == OpLocalSet || op == OpLocalTee:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = LocalImm{LocalIdx: idx}

		case op == OpGlobalGet || op == OpGlobalSet:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = GlobalImm{GlobalIdx: idx}

		case op == OpTableGet || op == OpTableSet:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = TableImm{TableIdx: idx}

		case op >= OpI32Load && op <= OpI64Store32:
			align, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			offset, err := ReadLEB128u64(r)
			if err != nil {
				return nil, err
			}
			in.Imm = MemImm{Align: align, Offset: offset}

		case op == OpMemorySize || op == OpMemoryGrow:
			memIdx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = MemIdxImm{MemIdx: memIdx}

		case op == OpI32Const:
			v, err := ReadLEB128s(r)
			if err != nil {
				return nil, err
			}
			in.Imm = I32Imm{Value: v}

		case op == OpI64Const:
			v, err := ReadLEB128s64(r)
			if err != nil {
				return nil, err
			}
			in.Imm = I64Imm{Value: v}

		case op == OpF32Const:
			v, err := ReadFloat32(r)
			if err != nil {
				return nil, err
			}
			in.Imm = F32Imm{Value: v}

		case op == OpF64Const:
			v, err := ReadFloat64(r)
			if err != nil {
				return nil, err
			}
			in.Imm = F64Imm{Value: v}

		case op == OpRefNull:
			ht, err := ReadLEB128s64(r)
			if err != nil {
				return nil, err
			}
			in.Imm = RefNullImm{HeapType: ht}

		case op == OpRefFunc:
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			in.Imm = RefFuncImm{FuncIdx: idx}

		case op == OpSelectType:
			types, err := readSelectTypes(r)
			if err != nil {
				return nil, err
			}
			in.Imm = SelectTypeImm{Types: types}

		case op == OpPrefixMisc:
			imm, err := decodeMisc(r)
			if err != nil {
				return nil, err
			}
			in.Imm = imm

		case isImmFree(op):
			// No immediate.

		default:
			return nil, fmt.Errorf("unsupported opcode 0x%02x", op)
		}

		instrs = append(instrs, in)
	}
	return instrs, nil
}

// isImmFree reports whether op carries no immediate bytes.
func isImmFree(op byte) bool {
	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn,
		OpDrop, OpSelect, OpRefIsNull, OpThrowRef:
		return true
	}
	return op >= OpNumericFirst && op <= OpNumericLast
}

func decodeTryTable(r *bytes.Reader) (TryTableImm, error) {
	bt, err := ReadLEB128s33(r)
	if err != nil {
		return TryTableImm{}, err
	}
	count, err := ReadLEB128u(r)
	if err != nil {
		return TryTableImm{}, err
	}
	catches := make([]CatchClause, count)
	for i := range catches {
		kind, err := r.ReadByte()
		if err != nil {
			return TryTableImm{}, err
		}
		if kind > CatchKindCatchAllRf {
			return TryTableImm{}, fmt.Errorf("unknown catch kind %d", kind)
		}
		var tagIdx uint32
		if kind == CatchKindCatch || kind == CatchKindCatchRef {
			if tagIdx, err = ReadLEB128u(r); err != nil {
				return TryTableImm{}, err
			}
		}
		labelIdx, err := ReadLEB128u(r)
		if err != nil {
			return TryTableImm{}, err
		}
		catches[i] = CatchClause{Kind: kind, TagIdx: tagIdx, LabelIdx: labelIdx}
	}
	return TryTableImm{BlockType: bt, Catches: catches}, nil
}

func readSelectTypes(r *bytes.Reader) ([]ValType, error) {
	count, err := ReadLEB128u(r)
	if err != nil {
		return nil, err
	}
	types := make([]ValType, count)
	for i := range types {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		types[i] = ValType(b)
	}
	return types, nil
}

func decodeMisc(r *bytes.Reader) (MiscImm, error) {
	subOp, err := ReadLEB128u(r)
	if err != nil {
		return MiscImm{}, err
	}
	imm := MiscImm{SubOpcode: subOp}

	operands := 0
	switch {
	case subOp >= MiscTruncSatFirst && subOp <= MiscTruncSatLast:
		operands = 0
	case subOp == MiscMemoryInit, subOp == MiscMemoryCopy, subOp == MiscTableInit, subOp == MiscTableCopy:
		operands = 2
	case subOp == MiscDataDrop, subOp == MiscMemoryFill, subOp == MiscElemDrop,
		subOp == MiscTableGrow, subOp == MiscTableSize, subOp == MiscTableFill:
		operands = 1
	default:
		return MiscImm{}, fmt.Errorf("unsupported 0xFC sub-opcode 0x%02x", subOp)
	}

	if operands > 0 {
		imm.Operands = make([]uint32, operands)
		for i := range imm.Operands {
			if imm.Operands[i], err = ReadLEB128u(r); err != nil {
				return MiscImm{}, err
			}
		}
	}
	return imm, nil
}

// EncodeInstrTo appends one instruction to buf.
func EncodeInstrTo(buf *bytes.Buffer, in *Instr) {
	buf.WriteByte(in.Op)

	switch imm := in.Imm.(type) {
	case nil:
	case BlockImm:
		WriteLEB128s64(buf, imm.Type)
	case TagImm:
		WriteLEB128u(buf, imm.TagIdx)
	case TryTableImm:
		WriteLEB128s64(buf, imm.BlockType)
		WriteLEB128u(buf, uint32(len(imm.Catches)))
		for _, c := range imm.Catches {
			buf.WriteByte(c.Kind)
			if c.Kind == CatchKindCatch || c.Kind == CatchKindCatchRef {
				WriteLEB128u(buf, c.TagIdx)
			}
			WriteLEB128u(buf, c.LabelIdx)
		}
	case BranchImm:
		WriteLEB128u(buf, imm.LabelIdx)
	case BrTableImm:
		WriteLEB128u(buf, uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			WriteLEB128u(buf, l)
		}
		WriteLEB128u(buf, imm.Default)
	case CallImm:
		WriteLEB128u(buf, imm.FuncIdx)
	case CallIndirectImm:
		WriteLEB128u(buf, imm.TypeIdx)
		WriteLEB128u(buf, imm.TableIdx)
	case LocalImm:
		WriteLEB128u(buf, imm.LocalIdx)
	case GlobalImm:
		WriteLEB128u(buf, imm.GlobalIdx)
	case TableImm:
		WriteLEB128u(buf, imm.TableIdx)
	case MemImm:
		WriteLEB128u(buf, imm.Align)
		WriteLEB128u64(buf, imm.Offset)
	case MemIdxImm:
		WriteLEB128u(buf, imm.MemIdx)
	case I32Imm:
		WriteLEB128s(buf, imm.Value)
	case I64Imm:
		WriteLEB128s64(buf, imm.Value)
	case F32Imm:
		WriteFloat32(buf, imm.Value)
	case F64Imm:
		WriteFloat64(buf, imm.Value)
	case RefNullImm:
		WriteLEB128s64(buf, imm.HeapType)
	case RefFuncImm:
		WriteLEB128u(buf, imm.FuncIdx)
	case SelectTypeImm:
		WriteLEB128u(buf, uint32(len(imm.Types)))
		for _, t := range imm.Types {
			buf.WriteByte(byte(t))
		}
	case MiscImm:
		WriteLEB128u(buf, imm.SubOpcode)
		for _, o := range imm.Operands {
			WriteLEB128u(buf, o)
		}
	}
}

// EncodeInstrs encodes instructions back to bytecode.
func EncodeInstrs(instrs []Instr) []byte {
	var buf bytes.Buffer
	buf.Grow(len(instrs) * 3)
	for i := range instrs {
		EncodeInstrTo(&buf, &instrs[i])
	}
	return buf.Bytes()
}
