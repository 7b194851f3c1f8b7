package rewrite

import "testing"

func TestSigsRoundTrip(t *testing.T) {
	in := &Sigs{Entries: []SigEntry{
		{Kind: SigFunc, Index: 0, Descriptor: "func(w: u32, h: u32) -> handle<legacy:display@1.0/surface>"},
		{Kind: SigGlobal, Index: 2, Descriptor: "u64"},
		{Kind: SigTag, Index: 0, Descriptor: "func(code: u32)"},
	}}

	decoded, err := DecodeSigs(in.Encode())
	if err != nil {
		t.Fatalf("DecodeSigs failed: %v", err)
	}
	if len(decoded.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(decoded.Entries))
	}
	desc, ok := decoded.Lookup(SigGlobal, 2)
	if !ok || desc != "u64" {
		t.Errorf("Lookup(SigGlobal, 2) = %q, %v", desc, ok)
	}
	if _, ok := decoded.Lookup(SigFunc, 5); ok {
		t.Error("lookup of undeclared import succeeded")
	}
}

func TestSigsSetReplacesInPlace(t *testing.T) {
	s := &Sigs{Entries: []SigEntry{{Kind: SigFunc, Index: 1, Descriptor: "u32"}}}
	s.Set(SigFunc, 1, "u64")
	if len(s.Entries) != 1 || s.Entries[0].Descriptor != "u64" {
		t.Fatalf("entry not replaced: %+v", s.Entries)
	}
	s.Set(SigTag, 0, "func()")
	if len(s.Entries) != 2 {
		t.Fatalf("entry not added: %+v", s.Entries)
	}
}

func TestDecodeSigsRejectsBadKind(t *testing.T) {
	raw := []byte{0x01, 0x07, 0x00, 0x00}
	if _, err := DecodeSigs(raw); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodeSigsRejectsTruncatedString(t *testing.T) {
	raw := []byte{0x01, SigFunc, 0x00, 0x10, 'u'}
	if _, err := DecodeSigs(raw); err == nil {
		t.Fatal("expected error for truncated descriptor")
	}
}
