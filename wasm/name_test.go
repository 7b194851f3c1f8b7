package wasm

import (
	"bytes"
	"testing"
)

func TestNameSectionRoundTrip(t *testing.T) {
	ns := &NameSection{
		Module:    "game",
		HasModule: true,
		Funcs: map[uint32]string{
			0: "legacy:display@1.0#create",
			3: "render",
		},
		Locals: map[uint32]map[uint32]string{
			3: {0: "frame", 1: "cursor-y"},
		},
	}

	raw := ns.Encode()
	decoded, err := DecodeNameSection(raw)
	if err != nil {
		t.Fatalf("DecodeNameSection failed: %v", err)
	}
	if !decoded.HasModule || decoded.Module != "game" {
		t.Fatalf("module name wrong: %+v", decoded)
	}
	if decoded.Funcs[0] != "legacy:display@1.0#create" || decoded.Funcs[3] != "render" {
		t.Fatalf("function names wrong: %+v", decoded.Funcs)
	}
	if decoded.Locals[3][1] != "cursor-y" {
		t.Fatalf("local names wrong: %+v", decoded.Locals)
	}
	if !bytes.Equal(raw, decoded.Encode()) {
		t.Fatal("re-encode differs")
	}
}

func TestNameSectionUnknownSubsectionPreserved(t *testing.T) {
	var raw bytes.Buffer
	// Subsection 7 (labels) with opaque payload.
	raw.WriteByte(7)
	WriteLEB128u(&raw, 3)
	raw.Write([]byte{9, 9, 9})

	decoded, err := DecodeNameSection(raw.Bytes())
	if err != nil {
		t.Fatalf("DecodeNameSection failed: %v", err)
	}
	if len(decoded.Extra) != 1 || !bytes.Equal(decoded.Extra[0].Data, []byte{9, 9, 9}) {
		t.Fatalf("unknown subsection not preserved: %+v", decoded.Extra)
	}
	if !bytes.Equal(raw.Bytes(), decoded.Encode()) {
		t.Fatal("re-encode differs")
	}
}
