package wasm

import (
	"bytes"
	"encoding/binary"
)

// Encode serializes the module back to binary form. Section sizes, body
// sizes and all LEB encodings are recomputed from scratch; the caller
// never maintains derived metadata.
func (m *Module) Encode() []byte {
	var out bytes.Buffer

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], Version)
	out.Write(header[:])

	if len(m.Types) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.WriteByte(FuncTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		writeSection(&out, SectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			writeName(&sec, imp.Module)
			writeName(&sec, imp.Name)
			sec.WriteByte(imp.Kind)
			switch imp.Kind {
			case KindFunc:
				WriteLEB128u(&sec, imp.TypeIdx)
			case KindTable:
				writeTable(&sec, *imp.Table)
			case KindMemory:
				writeLimits(&sec, imp.Memory.Limits)
			case KindGlobal:
				writeGlobalType(&sec, *imp.Global)
			case KindTag:
				writeTag(&sec, *imp.Tag)
			}
		}
		writeSection(&out, SectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			WriteLEB128u(&sec, typeIdx)
		}
		writeSection(&out, SectionFunction, sec.Bytes())
	}

	if len(m.Tables) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTable(&sec, t)
		}
		writeSection(&out, SectionTable, sec.Bytes())
	}

	if len(m.Memories) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(&sec, mem.Limits)
		}
		writeSection(&out, SectionMemory, sec.Bytes())
	}

	// Tag section sits between memory and global.
	if len(m.Tags) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Tags)))
		for _, t := range m.Tags {
			writeTag(&sec, t)
		}
		writeSection(&out, SectionTag, sec.Bytes())
	}

	if len(m.Globals) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(&sec, g.Type)
			sec.Write(g.Init)
		}
		writeSection(&out, SectionGlobal, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			writeName(&sec, exp.Name)
			sec.WriteByte(exp.Kind)
			WriteLEB128u(&sec, exp.Idx)
		}
		writeSection(&out, SectionExport, sec.Bytes())
	}

	if m.Start != nil {
		var sec bytes.Buffer
		WriteLEB128u(&sec, *m.Start)
		writeSection(&out, SectionStart, sec.Bytes())
	}

	if len(m.Elements) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Elements)))
		for _, elem := range m.Elements {
			WriteLEB128u(&sec, elem.Flags)
			if elem.Flags == 2 {
				WriteLEB128u(&sec, elem.TableIdx)
			}
			if elem.Flags&0x01 == 0 {
				sec.Write(elem.Offset)
			}
			if elem.Flags != 0 {
				sec.WriteByte(elem.ElemKind)
			}
			WriteLEB128u(&sec, uint32(len(elem.FuncIdxs)))
			for _, idx := range elem.FuncIdxs {
				WriteLEB128u(&sec, idx)
			}
		}
		writeSection(&out, SectionElement, sec.Bytes())
	}

	// Data-count must precede the code section when present.
	if m.DataCount != nil {
		var sec bytes.Buffer
		WriteLEB128u(&sec, *m.DataCount)
		writeSection(&out, SectionDataCount, sec.Bytes())
	}

	if len(m.Code) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Code)))
		for _, body := range m.Code {
			var b bytes.Buffer
			WriteLEB128u(&b, uint32(len(body.Locals)))
			for _, local := range body.Locals {
				WriteLEB128u(&b, local.Count)
				b.WriteByte(byte(local.Type))
			}
			b.Write(body.Code)
			WriteLEB128u(&sec, uint32(b.Len()))
			sec.Write(b.Bytes())
		}
		writeSection(&out, SectionCode, sec.Bytes())
	}

	if len(m.Data) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Data)))
		for _, d := range m.Data {
			WriteLEB128u(&sec, d.Flags)
			if d.Flags == 2 {
				WriteLEB128u(&sec, d.MemIdx)
			}
			if d.Flags != 1 {
				sec.Write(d.Offset)
			}
			WriteLEB128u(&sec, uint32(len(d.Init)))
			sec.Write(d.Init)
		}
		writeSection(&out, SectionData, sec.Bytes())
	}

	for _, cs := range m.Customs {
		var sec bytes.Buffer
		writeName(&sec, cs.Name)
		sec.Write(cs.Data)
		writeSection(&out, SectionCustom, sec.Bytes())
	}

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, payload []byte) {
	out.WriteByte(id)
	WriteLEB128u(out, uint32(len(payload)))
	out.Write(payload)
}

func writeName(w *bytes.Buffer, s string) {
	WriteLEB128u(w, uint32(len(s)))
	w.WriteString(s)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	WriteLEB128u(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}

func writeLimits(w *bytes.Buffer, l Limits) {
	if l.Max != nil {
		w.WriteByte(LimitsHasMax)
		WriteLEB128u(w, l.Min)
		WriteLEB128u(w, *l.Max)
	} else {
		w.WriteByte(0)
		WriteLEB128u(w, l.Min)
	}
}

func writeTable(w *bytes.Buffer, t Table) {
	w.WriteByte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *bytes.Buffer, g GlobalType) {
	w.WriteByte(byte(g.Type))
	if g.Mutable {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func writeTag(w *bytes.Buffer, t Tag) {
	w.WriteByte(0) // attribute: exception
	WriteLEB128u(w, t.TypeIdx)
}
