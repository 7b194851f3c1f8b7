package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(PhaseRewrite, KindUnsupported, "opcode 0x%02X", 0xFD)
	msg := err.Error()
	if !strings.Contains(msg, "[rewrite]") || !strings.Contains(msg, "unsupported") {
		t.Errorf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, "opcode 0xFD") {
		t.Errorf("detail not formatted: %s", msg)
	}
}

func TestErrorIsMatchesPhaseAndKind(t *testing.T) {
	err := ModuleRewrite("game.wasm", stderrors.New("boom"))
	if !stderrors.Is(err, &Error{Phase: PhaseRewrite, Kind: KindInvalidData}) {
		t.Error("expected match on phase and kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseDecode, Kind: KindInvalidData}) {
		t.Error("matched wrong phase")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("registry full")
	err := Registration("retransform-host", cause)
	if !stderrors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "caused by: registry full") {
		t.Errorf("cause missing from message: %s", err.Error())
	}
}

func TestModuleIdentityInMessage(t *testing.T) {
	err := Instantiation("plugin-7", stderrors.New("no memory"))
	if !strings.Contains(err.Error(), "module plugin-7") {
		t.Errorf("identity missing: %s", err.Error())
	}
}
