package wasm

// Module is a decoded WebAssembly module. Sections map 1:1 to fields;
// absent sections are zero values. Encode rebuilds the binary with all
// sizes recomputed, so edits never require manual bookkeeping.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Funcs     []uint32 // type indices of locally defined functions
	Tables    []Table
	Memories  []Memory
	Tags      []Tag
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Elements  []Element
	DataCount *uint32
	Code      []FuncBody
	Data      []DataSegment
	Customs   []Custom
}

// ValType is a WebAssembly value type byte.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (ft FuncType) Equal(other FuncType) bool {
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i := range ft.Params {
		if ft.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range ft.Results {
		if ft.Results[i] != other.Results[i] {
			return false
		}
	}
	return true
}

// Import is an imported definition. Exactly one of the kind-specific
// fields is meaningful, selected by Kind.
type Import struct {
	Module string
	Name   string
	Kind   byte
	// KindFunc
	TypeIdx uint32
	// KindTable
	Table *Table
	// KindMemory
	Memory *Memory
	// KindGlobal
	Global *GlobalType
	// KindTag
	Tag *Tag
}

// Table describes a table's element type and limits.
type Table struct {
	ElemType ValType
	Limits   Limits
}

// Memory describes a linear memory's limits.
type Memory struct {
	Limits Limits
}

// Limits are size constraints for tables and memories.
type Limits struct {
	Min uint32
	Max *uint32
}

// GlobalType is a global's value type and mutability.
type GlobalType struct {
	Type    ValType
	Mutable bool
}

// Global is a defined global with its init expression (raw bytes
// including the end opcode).
type Global struct {
	Type GlobalType
	Init []byte
}

// Tag is an exception tag; its signature is the referenced function type.
type Tag struct {
	TypeIdx uint32
}

// Export names a definition in one of the index spaces.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element is an element segment. Only the function-index encodings
// (flags 0..3) are supported; expression-style segments fail decoding.
type Element struct {
	Flags    uint32
	TableIdx uint32
	Offset   []byte // raw init expression, active segments only
	ElemKind byte
	FuncIdxs []uint32
}

// FuncBody is a function's local declarations plus raw bytecode
// (including the trailing end opcode).
type FuncBody struct {
	Locals []Local
	Code   []byte
}

// Local declares Count consecutive locals of the same type.
type Local struct {
	Count uint32
	Type  ValType
}

// DataSegment is a data segment (flags 0=active, 1=passive, 2=active
// with explicit memory index).
type DataSegment struct {
	Flags  uint32
	MemIdx uint32
	Offset []byte
	Init   []byte
}

// Custom holds a named custom section's payload verbatim.
type Custom struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns how many imports occupy the function index
// space ahead of locally defined functions.
func (m *Module) NumImportedFuncs() int {
	return m.countImports(KindFunc)
}

// NumImportedGlobals returns how many imports occupy the global index space.
func (m *Module) NumImportedGlobals() int {
	return m.countImports(KindGlobal)
}

// NumImportedTags returns how many imports occupy the tag index space.
func (m *Module) NumImportedTags() int {
	return m.countImports(KindTag)
}

func (m *Module) countImports(kind byte) int {
	n := 0
	for i := range m.Imports {
		if m.Imports[i].Kind == kind {
			n++
		}
	}
	return n
}

// FuncTypeAt returns the signature of the function at funcIdx in the
// combined (imports first) function index space, or nil if out of range.
func (m *Module) FuncTypeAt(funcIdx uint32) *FuncType {
	remaining := funcIdx
	for i := range m.Imports {
		if m.Imports[i].Kind != KindFunc {
			continue
		}
		if remaining == 0 {
			return m.typeAt(m.Imports[i].TypeIdx)
		}
		remaining--
	}
	if int(remaining) >= len(m.Funcs) {
		return nil
	}
	return m.typeAt(m.Funcs[remaining])
}

func (m *Module) typeAt(typeIdx uint32) *FuncType {
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// AddType returns the index of ft in the type section, appending it if
// no identical entry exists.
func (m *Module) AddType(ft FuncType) uint32 {
	for i := range m.Types {
		if m.Types[i].Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// CustomSection returns the payload of the named custom section and
// whether it is present.
func (m *Module) CustomSection(name string) ([]byte, bool) {
	for i := range m.Customs {
		if m.Customs[i].Name == name {
			return m.Customs[i].Data, true
		}
	}
	return nil, false
}

// SetCustomSection replaces the named custom section's payload, or
// appends the section if absent.
func (m *Module) SetCustomSection(name string, data []byte) {
	for i := range m.Customs {
		if m.Customs[i].Name == name {
			m.Customs[i].Data = data
			return
		}
	}
	m.Customs = append(m.Customs, Custom{Name: name, Data: data})
}
