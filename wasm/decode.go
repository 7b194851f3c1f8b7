package wasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// Decode parses a WebAssembly binary into a Module.
//
// Decoding is strict about structure (section order, lengths, UTF-8
// names) but deliberately does not validate semantics; the host runtime
// remains the authority on whether a module is loadable.
func Decode(raw []byte) (*Module, error) {
	r := bytes.NewReader(raw)

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if binary.LittleEndian.Uint32(header[0:4]) != Magic {
		return nil, fmt.Errorf("bad magic number")
	}
	if binary.LittleEndian.Uint32(header[4:8]) != Version {
		return nil, fmt.Errorf("unsupported binary version %d", binary.LittleEndian.Uint32(header[4:8]))
	}

	m := &Module{}
	lastSection := byte(0)

	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read section id: %w", err)
		}
		size, err := ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		if int(size) > r.Len() {
			return nil, fmt.Errorf("section %d: size %d exceeds remaining %d bytes", id, size, r.Len())
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("section %d payload: %w", id, err)
		}

		if id != SectionCustom {
			// The tag section (13) is ordered between memory (5) and
			// global (6), so compare in effective order.
			if effectiveOrder(id) <= effectiveOrder(lastSection) {
				return nil, fmt.Errorf("section %d out of order", id)
			}
			lastSection = id
		}

		sec := bytes.NewReader(payload)
		switch id {
		case SectionCustom:
			err = decodeCustom(sec, m)
		case SectionType:
			err = decodeTypes(sec, m)
		case SectionImport:
			err = decodeImports(sec, m)
		case SectionFunction:
			err = decodeFunctions(sec, m)
		case SectionTable:
			err = decodeTables(sec, m)
		case SectionMemory:
			err = decodeMemories(sec, m)
		case SectionTag:
			err = decodeTags(sec, m)
		case SectionGlobal:
			err = decodeGlobals(sec, m)
		case SectionExport:
			err = decodeExports(sec, m)
		case SectionStart:
			var idx uint32
			idx, err = ReadLEB128u(sec)
			m.Start = &idx
		case SectionElement:
			err = decodeElements(sec, m)
		case SectionDataCount:
			var count uint32
			count, err = ReadLEB128u(sec)
			m.DataCount = &count
		case SectionCode:
			err = decodeCode(sec, m)
		case SectionData:
			err = decodeData(sec, m)
		default:
			err = fmt.Errorf("unknown section id %d", id)
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}

	if len(m.Funcs) != len(m.Code) {
		return nil, fmt.Errorf("function section declares %d functions, code section has %d bodies",
			len(m.Funcs), len(m.Code))
	}
	return m, nil
}

// effectiveOrder maps section IDs to their required binary order. The
// tag and data-count sections are the only out-of-numeric-order cases.
func effectiveOrder(id byte) int {
	switch id {
	case SectionTag:
		return int(SectionMemory)*10 + 5
	case SectionDataCount:
		return int(SectionElement)*10 + 5
	default:
		return int(id) * 10
	}
}

func readName(r *bytes.Reader) (string, error) {
	n, err := ReadLEB128u(r)
	if err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", fmt.Errorf("name length %d exceeds remaining %d bytes", n, r.Len())
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("name is not valid UTF-8")
	}
	return string(buf), nil
}

func readValType(r *bytes.Reader) (ValType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExtern:
		return ValType(b), nil
	default:
		return 0, fmt.Errorf("unsupported value type 0x%02x", b)
	}
}

func readValTypes(r *bytes.Reader) ([]ValType, error) {
	count, err := ReadLEB128u(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	out := make([]ValType, count)
	for i := range out {
		if out[i], err = readValType(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readLimits(r *bytes.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags&^LimitsHasMax != 0 {
		return Limits{}, fmt.Errorf("unsupported limits flags 0x%02x", flags)
	}
	var l Limits
	if l.Min, err = ReadLEB128u(r); err != nil {
		return Limits{}, err
	}
	if flags&LimitsHasMax != 0 {
		max, err := ReadLEB128u(r)
		if err != nil {
			return Limits{}, err
		}
		l.Max = &max
	}
	return l, nil
}

func readTable(r *bytes.Reader) (Table, error) {
	et, err := readValType(r)
	if err != nil {
		return Table{}, err
	}
	if et != ValFuncRef && et != ValExtern {
		return Table{}, fmt.Errorf("table element type must be a reference type, got %s", et)
	}
	limits, err := readLimits(r)
	if err != nil {
		return Table{}, err
	}
	return Table{ElemType: et, Limits: limits}, nil
}

func readGlobalType(r *bytes.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid mutability flag %d", mut)
	}
	return GlobalType{Type: vt, Mutable: mut == 1}, nil
}

func readTag(r *bytes.Reader) (Tag, error) {
	attr, err := r.ReadByte()
	if err != nil {
		return Tag{}, err
	}
	if attr != 0 {
		return Tag{}, fmt.Errorf("unsupported tag attribute %d", attr)
	}
	typeIdx, err := ReadLEB128u(r)
	if err != nil {
		return Tag{}, err
	}
	return Tag{TypeIdx: typeIdx}, nil
}

// readInitExpr captures a constant expression verbatim, including the
// terminating end opcode.
func readInitExpr(r *bytes.Reader) ([]byte, error) {
	var out bytes.Buffer
	for {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out.WriteByte(op)
		switch op {
		case OpEnd:
			return out.Bytes(), nil
		case OpI32Const:
			v, err := ReadLEB128s(r)
			if err != nil {
				return nil, err
			}
			WriteLEB128s(&out, v)
		case OpGlobalGet, OpRefFunc:
			v, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			WriteLEB128u(&out, v)
		case OpI64Const:
			v, err := ReadLEB128s64(r)
			if err != nil {
				return nil, err
			}
			WriteLEB128s64(&out, v)
		case OpF32Const:
			v, err := ReadFloat32(r)
			if err != nil {
				return nil, err
			}
			WriteFloat32(&out, v)
		case OpF64Const:
			v, err := ReadFloat64(r)
			if err != nil {
				return nil, err
			}
			WriteFloat64(&out, v)
		case OpRefNull:
			ht, err := ReadLEB128s64(r)
			if err != nil {
				return nil, err
			}
			WriteLEB128s64(&out, ht)
		default:
			return nil, fmt.Errorf("unsupported opcode 0x%02x in constant expression", op)
		}
	}
}

func decodeCustom(r *bytes.Reader, m *Module) error {
	name, err := readName(r)
	if err != nil {
		return err
	}
	data := make([]byte, r.Len())
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	m.Customs = append(m.Customs, Custom{Name: name, Data: data})
	return nil
}

func decodeTypes(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != FuncTypeByte {
			return fmt.Errorf("type %d: unsupported form 0x%02x", i, form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return err
		}
		results, err := readValTypes(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

func decodeImports(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Imports = make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		imp := Import{}
		if imp.Module, err = readName(r); err != nil {
			return err
		}
		if imp.Name, err = readName(r); err != nil {
			return err
		}
		if imp.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		switch imp.Kind {
		case KindFunc:
			if imp.TypeIdx, err = ReadLEB128u(r); err != nil {
				return err
			}
		case KindTable:
			t, err := readTable(r)
			if err != nil {
				return err
			}
			imp.Table = &t
		case KindMemory:
			l, err := readLimits(r)
			if err != nil {
				return err
			}
			imp.Memory = &Memory{Limits: l}
		case KindGlobal:
			g, err := readGlobalType(r)
			if err != nil {
				return err
			}
			imp.Global = &g
		case KindTag:
			t, err := readTag(r)
			if err != nil {
				return err
			}
			imp.Tag = &t
		default:
			return fmt.Errorf("import %d: unknown kind %d", i, imp.Kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func decodeFunctions(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Funcs = make([]uint32, count)
	for i := range m.Funcs {
		if m.Funcs[i], err = ReadLEB128u(r); err != nil {
			return err
		}
	}
	return nil
}

func decodeTables(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Tables = make([]Table, 0, count)
	for i := uint32(0); i < count; i++ {
		t, err := readTable(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, t)
	}
	return nil
}

func decodeMemories(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Memories = make([]Memory, 0, count)
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, Memory{Limits: l})
	}
	return nil
}

func decodeTags(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Tags = make([]Tag, 0, count)
	for i := uint32(0); i < count; i++ {
		t, err := readTag(r)
		if err != nil {
			return err
		}
		m.Tags = append(m.Tags, t)
	}
	return nil
}

func decodeGlobals(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Globals = make([]Global, 0, count)
	for i := uint32(0); i < count; i++ {
		gt, err := readGlobalType(r)
		if err != nil {
			return err
		}
		init, err := readInitExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

func decodeExports(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		exp := Export{}
		if exp.Name, err = readName(r); err != nil {
			return err
		}
		if exp.Kind, err = r.ReadByte(); err != nil {
			return err
		}
		if exp.Kind > KindTag {
			return fmt.Errorf("export %q: unknown kind %d", exp.Name, exp.Kind)
		}
		if exp.Idx, err = ReadLEB128u(r); err != nil {
			return err
		}
		m.Exports = append(m.Exports, exp)
	}
	return nil
}

func decodeElements(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Elements = make([]Element, 0, count)
	for i := uint32(0); i < count; i++ {
		elem := Element{}
		if elem.Flags, err = ReadLEB128u(r); err != nil {
			return err
		}
		if elem.Flags > 3 {
			return fmt.Errorf("element %d: expression-style segment (flags %d) not supported", i, elem.Flags)
		}
		if elem.Flags == 2 {
			if elem.TableIdx, err = ReadLEB128u(r); err != nil {
				return err
			}
		}
		if elem.Flags&0x01 == 0 {
			if elem.Offset, err = readInitExpr(r); err != nil {
				return err
			}
		}
		if elem.Flags != 0 {
			if elem.ElemKind, err = r.ReadByte(); err != nil {
				return err
			}
			if elem.ElemKind != 0 {
				return fmt.Errorf("element %d: unknown elemkind %d", i, elem.ElemKind)
			}
		}
		n, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		elem.FuncIdxs = make([]uint32, n)
		for j := range elem.FuncIdxs {
			if elem.FuncIdxs[j], err = ReadLEB128u(r); err != nil {
				return err
			}
		}
		m.Elements = append(m.Elements, elem)
	}
	return nil
}

func decodeCode(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Code = make([]FuncBody, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		if int(size) > r.Len() {
			return fmt.Errorf("body %d: size %d exceeds remaining %d bytes", i, size, r.Len())
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return err
		}
		body := bytes.NewReader(raw)
		localCount, err := ReadLEB128u(body)
		if err != nil {
			return err
		}
		locals := make([]Local, 0, localCount)
		for j := uint32(0); j < localCount; j++ {
			n, err := ReadLEB128u(body)
			if err != nil {
				return err
			}
			vt, err := readValType(body)
			if err != nil {
				return err
			}
			locals = append(locals, Local{Count: n, Type: vt})
		}
		code := make([]byte, body.Len())
		if _, err := io.ReadFull(body, code); err != nil {
			return err
		}
		m.Code = append(m.Code, FuncBody{Locals: locals, Code: code})
	}
	return nil
}

func decodeData(r *bytes.Reader, m *Module) error {
	count, err := ReadLEB128u(r)
	if err != nil {
		return err
	}
	m.Data = make([]DataSegment, 0, count)
	for i := uint32(0); i < count; i++ {
		d := DataSegment{}
		if d.Flags, err = ReadLEB128u(r); err != nil {
			return err
		}
		if d.Flags > 2 {
			return fmt.Errorf("data %d: unknown flags %d", i, d.Flags)
		}
		if d.Flags == 2 {
			if d.MemIdx, err = ReadLEB128u(r); err != nil {
				return err
			}
		}
		if d.Flags != 1 {
			if d.Offset, err = readInitExpr(r); err != nil {
				return err
			}
		}
		n, err := ReadLEB128u(r)
		if err != nil {
			return err
		}
		if int(n) > r.Len() {
			return fmt.Errorf("data %d: length %d exceeds remaining %d bytes", i, n, r.Len())
		}
		d.Init = make([]byte, n)
		if _, err := io.ReadFull(r, d.Init); err != nil {
			return err
		}
		m.Data = append(m.Data, d)
	}
	return nil
}
