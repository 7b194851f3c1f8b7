package wasm

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// NameSection is the decoded standard "name" custom section. Only the
// module, function and local subsections are interpreted; any other
// subsection is preserved verbatim in Extra.
type NameSection struct {
	Module    string
	HasModule bool
	Funcs     map[uint32]string
	Locals    map[uint32]map[uint32]string
	Extra     []Custom // unknown subsections, Name field holds the raw ID as a single byte
}

// DecodeNameSection parses a "name" custom section payload.
func DecodeNameSection(data []byte) (*NameSection, error) {
	r := bytes.NewReader(data)
	ns := &NameSection{
		Funcs:  make(map[uint32]string),
		Locals: make(map[uint32]map[uint32]string),
	}

	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("subsection %d size: %w", id, err)
		}
		if int(size) > r.Len() {
			return nil, fmt.Errorf("subsection %d: size %d exceeds remaining %d bytes", id, size, r.Len())
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		sub := bytes.NewReader(payload)

		switch id {
		case nameSubModule:
			name, err := readName(sub)
			if err != nil {
				return nil, fmt.Errorf("module name: %w", err)
			}
			ns.Module = name
			ns.HasModule = true

		case nameSubFuncs:
			count, err := ReadLEB128u(sub)
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < count; i++ {
				idx, err := ReadLEB128u(sub)
				if err != nil {
					return nil, err
				}
				name, err := readName(sub)
				if err != nil {
					return nil, err
				}
				ns.Funcs[idx] = name
			}

		case nameSubLocals:
			count, err := ReadLEB128u(sub)
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < count; i++ {
				funcIdx, err := ReadLEB128u(sub)
				if err != nil {
					return nil, err
				}
				n, err := ReadLEB128u(sub)
				if err != nil {
					return nil, err
				}
				locals := make(map[uint32]string, n)
				for j := uint32(0); j < n; j++ {
					localIdx, err := ReadLEB128u(sub)
					if err != nil {
						return nil, err
					}
					name, err := readName(sub)
					if err != nil {
						return nil, err
					}
					locals[localIdx] = name
				}
				ns.Locals[funcIdx] = locals
			}

		default:
			ns.Extra = append(ns.Extra, Custom{Name: string([]byte{id}), Data: payload})
		}
	}
	return ns, nil
}

// Encode serializes the name section payload. Name maps are written in
// ascending index order as the spec requires.
func (ns *NameSection) Encode() []byte {
	var out bytes.Buffer

	if ns.HasModule {
		var sub bytes.Buffer
		writeName(&sub, ns.Module)
		writeSubsection(&out, nameSubModule, sub.Bytes())
	}

	if len(ns.Funcs) > 0 {
		var sub bytes.Buffer
		WriteLEB128u(&sub, uint32(len(ns.Funcs)))
		for _, idx := range sortedKeys(ns.Funcs) {
			WriteLEB128u(&sub, idx)
			writeName(&sub, ns.Funcs[idx])
		}
		writeSubsection(&out, nameSubFuncs, sub.Bytes())
	}

	if len(ns.Locals) > 0 {
		var sub bytes.Buffer
		WriteLEB128u(&sub, uint32(len(ns.Locals)))
		funcIdxs := make([]uint32, 0, len(ns.Locals))
		for idx := range ns.Locals {
			funcIdxs = append(funcIdxs, idx)
		}
		sort.Slice(funcIdxs, func(i, j int) bool { return funcIdxs[i] < funcIdxs[j] })
		for _, funcIdx := range funcIdxs {
			WriteLEB128u(&sub, funcIdx)
			locals := ns.Locals[funcIdx]
			WriteLEB128u(&sub, uint32(len(locals)))
			for _, localIdx := range sortedKeys(locals) {
				WriteLEB128u(&sub, localIdx)
				writeName(&sub, locals[localIdx])
			}
		}
		writeSubsection(&out, nameSubLocals, sub.Bytes())
	}

	for _, extra := range ns.Extra {
		writeSubsection(&out, extra.Name[0], extra.Data)
	}
	return out.Bytes()
}

func writeSubsection(out *bytes.Buffer, id byte, payload []byte) {
	out.WriteByte(id)
	WriteLEB128u(out, uint32(len(payload)))
	out.Write(payload)
}

func sortedKeys(m map[uint32]string) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
