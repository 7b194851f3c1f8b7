package wasm

import (
	"bytes"
	"testing"
)

func TestLEB128UnsignedRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 63, 64, 127, 128, 300, 16384, 0xFFFFFFFF}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128u(&buf, v)
		got, err := ReadLEB128u(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d: got %d", v, got)
		}
	}
}

func TestLEB128SignedRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 63, 64, -64, -65, 127, -128, 8191, -8192, 2147483647, -2147483648}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128s(&buf, v)
		got, err := ReadLEB128s(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d: got %d", v, got)
		}
	}
}

func TestLEB128Signed33(t *testing.T) {
	// The non-negative half exceeds int32: a type index up to 2^32-1
	// must survive.
	values := []int64{0, -64, 4294967295, -4294967296}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128s64(&buf, v)
		got, err := ReadLEB128s33(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d: got %d", v, got)
		}
	}

	// Padded five-byte encoding of -64 (the void block type), as a
	// conforming encoder may emit.
	wide := []byte{0xC0, 0xFF, 0xFF, 0xFF, 0x7F}
	got, err := ReadLEB128s33(bytes.NewReader(wide))
	if err != nil || got != -64 {
		t.Fatalf("wide void: got %d, err %v", got, err)
	}

	if _, err := ReadLEB128s33(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestLEB128Signed64RoundTrip(t *testing.T) {
	values := []int64{0, -1, 1 << 40, -(1 << 40), 9223372036854775807, -9223372036854775808}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128s64(&buf, v)
		got, err := ReadLEB128s64(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("value %d: %v", v, err)
		}
		if got != v {
			t.Errorf("value %d: got %d", v, got)
		}
	}
}

func TestLEB128Overflow(t *testing.T) {
	// Six continuation bytes exceed the 32-bit width.
	bad := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, err := ReadLEB128u(bytes.NewReader(bad)); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestLEB128NonCanonicalAccepted(t *testing.T) {
	// 0x80 0x00 is a padded encoding of zero; readers must accept it.
	got, err := ReadLEB128u(bytes.NewReader([]byte{0x80, 0x00}))
	if err != nil || got != 0 {
		t.Fatalf("padded zero: got %d, err %v", got, err)
	}
}
