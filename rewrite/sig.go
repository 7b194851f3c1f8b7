package rewrite

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/wasm"
)

// SigSectionName is the custom section carrying per-import signature
// descriptors emitted by legacy toolchains.
const SigSectionName = "bridge-sig"

// Signature entry kinds. Index is the position within that kind's
// import order, not the combined index space.
const (
	SigFunc   byte = 0
	SigGlobal byte = 1
	SigTag    byte = 2
)

// SigEntry attaches a textual descriptor to one import.
type SigEntry struct {
	Descriptor string
	Index      uint32
	Kind       byte
}

// Sigs is a decoded signature section.
type Sigs struct {
	Entries []SigEntry
}

// DecodeSigs parses a signature section payload.
func DecodeSigs(data []byte) (*Sigs, error) {
	r := bytes.NewReader(data)

	count, err := wasm.ReadLEB128u(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "signature entry count")
	}
	s := &Sigs{Entries: make([]SigEntry, 0, count)}

	for i := uint32(0); i < count; i++ {
		kind, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "signature entry kind")
		}
		if kind > SigTag {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData, "unknown signature kind %d", kind)
		}
		index, err := wasm.ReadLEB128u(r)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "signature entry index")
		}
		n, err := wasm.ReadLEB128u(r)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "signature length")
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil || !utf8.Valid(buf) {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData, "bad signature string at entry %d", i)
		}
		s.Entries = append(s.Entries, SigEntry{Kind: kind, Index: index, Descriptor: string(buf)})
	}
	return s, nil
}

// Encode serializes the section payload.
func (s *Sigs) Encode() []byte {
	var buf bytes.Buffer
	wasm.WriteLEB128u(&buf, uint32(len(s.Entries)))
	for _, e := range s.Entries {
		buf.WriteByte(e.Kind)
		wasm.WriteLEB128u(&buf, e.Index)
		wasm.WriteLEB128u(&buf, uint32(len(e.Descriptor)))
		buf.WriteString(e.Descriptor)
	}
	return buf.Bytes()
}

// Lookup returns the descriptor for an import, if declared.
func (s *Sigs) Lookup(kind byte, index uint32) (string, bool) {
	for i := range s.Entries {
		if s.Entries[i].Kind == kind && s.Entries[i].Index == index {
			return s.Entries[i].Descriptor, true
		}
	}
	return "", false
}

// Set replaces the descriptor for an import, adding the entry if absent.
func (s *Sigs) Set(kind byte, index uint32, desc string) {
	for i := range s.Entries {
		if s.Entries[i].Kind == kind && s.Entries[i].Index == index {
			s.Entries[i].Descriptor = desc
			return
		}
	}
	s.Entries = append(s.Entries, SigEntry{Kind: kind, Index: index, Descriptor: desc})
}
