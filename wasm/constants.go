package wasm

// Binary format magic number and version.
const (
	// Magic is "\0asm" in little-endian.
	Magic uint32 = 0x6D736100

	// Version is the only supported binary format version.
	Version uint32 = 0x01
)

// Section IDs. Non-custom sections must appear in increasing ID order,
// except that the tag section sits between memory and global.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// Import/export descriptor kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
	KindTag    byte = 4
)

// Value type encodings.
const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValFuncRef ValType = 0x70
	ValExtern  ValType = 0x6F
)

// FuncTypeByte prefixes every function type in the type section.
const FuncTypeByte byte = 0x60

// BlockTypeVoid is the empty block type (0x40 as signed LEB).
const BlockTypeVoid int64 = -64

// Limits flag bits.
const (
	LimitsHasMax byte = 0x01
)

// Control flow opcodes.
const (
	OpUnreachable        byte = 0x00
	OpNop                byte = 0x01
	OpBlock              byte = 0x02
	OpLoop               byte = 0x03
	OpIf                 byte = 0x04
	OpElse               byte = 0x05
	OpThrow              byte = 0x08
	OpThrowRef           byte = 0x0A
	OpEnd                byte = 0x0B
	OpBr                 byte = 0x0C
	OpBrIf               byte = 0x0D
	OpBrTable            byte = 0x0E
	OpReturn             byte = 0x0F
	OpCall               byte = 0x10
	OpCallIndirect       byte = 0x11
	OpReturnCall         byte = 0x12
	OpReturnCallIndirect byte = 0x13
	OpTryTable           byte = 0x1F
)

// Parametric opcodes.
const (
	OpDrop       byte = 0x1A
	OpSelect     byte = 0x1B
	OpSelectType byte = 0x1C
)

// Variable and table access opcodes.
const (
	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
	OpTableGet  byte = 0x25
	OpTableSet  byte = 0x26
)

// Memory access opcodes. Every opcode in [OpI32Load, OpI64Store32] takes
// a memarg immediate.
const (
	OpI32Load    byte = 0x28
	OpI64Load    byte = 0x29
	OpF32Load    byte = 0x2A
	OpF64Load    byte = 0x2B
	OpI64Store32 byte = 0x3E
	OpMemorySize byte = 0x3F
	OpMemoryGrow byte = 0x40
)

// Constant opcodes.
const (
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44
)

// Numeric opcodes occupy the contiguous range [OpNumericFirst,
// OpNumericLast] and carry no immediates.
const (
	OpNumericFirst byte = 0x45 // i32.eqz
	OpNumericLast  byte = 0xC4 // i64.extend32_s
)

// Reference opcodes.
const (
	OpRefNull   byte = 0xD0
	OpRefIsNull byte = 0xD1
	OpRefFunc   byte = 0xD2
)

// OpPrefixMisc introduces 0xFC-prefixed instructions (saturating
// truncation and bulk memory/table operations).
const OpPrefixMisc byte = 0xFC

// 0xFC sub-opcodes.
const (
	MiscTruncSatFirst uint32 = 0 // i32.trunc_sat_f32_s
	MiscTruncSatLast  uint32 = 7 // i64.trunc_sat_f64_u
	MiscMemoryInit    uint32 = 8
	MiscDataDrop      uint32 = 9
	MiscMemoryCopy    uint32 = 10
	MiscMemoryFill    uint32 = 11
	MiscTableInit     uint32 = 12
	MiscElemDrop      uint32 = 13
	MiscTableCopy     uint32 = 14
	MiscTableGrow     uint32 = 15
	MiscTableSize     uint32 = 16
	MiscTableFill     uint32 = 17
)

// try_table catch clause kinds.
const (
	CatchKindCatch      byte = 0
	CatchKindCatchRef   byte = 1
	CatchKindCatchAll   byte = 2
	CatchKindCatchAllRf byte = 3
)

// Name custom section subsection IDs.
const (
	nameSubModule byte = 0
	nameSubFuncs  byte = 1
	nameSubLocals byte = 2
)

// NameSectionName is the name of the standard debug-names custom section.
const NameSectionName = "name"
