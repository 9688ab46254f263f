package emuerr

import (
	"errors"
	"testing"
)

func TestRomLoadFailureUnwrap(t *testing.T) {
	cause := errors.New("file not found")
	err := &RomLoadFailure{Path: "game.gb", Reason: "couldn't read file", Err: cause}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false; want true")
	}
	if got := err.Error(); got == "" {
		t.Errorf("Error() returned empty string")
	}
}

func TestRomLoadFailureWithoutWrappedErr(t *testing.T) {
	err := &RomLoadFailure{Path: "game.gb", Reason: "file is 10 bytes, too small"}
	want := "rom load failure (game.gb): file is 10 bytes, too small"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}

func TestUnknownOpcodeErrorAs(t *testing.T) {
	var err error = &UnknownOpcode{Opcode: 0xD3, CBPrefixed: false, PC: 0x1234}

	var unknownOp *UnknownOpcode
	if !errors.As(err, &unknownOp) {
		t.Fatalf("errors.As failed to match *UnknownOpcode")
	}
	if unknownOp.Opcode != 0xD3 || unknownOp.PC != 0x1234 {
		t.Errorf("unknownOp = %+v; fields didn't round-trip", unknownOp)
	}
}

func TestUnknownOpcodeCBPrefixedMessage(t *testing.T) {
	err := &UnknownOpcode{Opcode: 0x00, CBPrefixed: true, PC: 0x0100}
	want := "unknown CB-prefixed opcode 0x00 at PC 0x0100"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}

func TestBadMbcWriteMessage(t *testing.T) {
	err := &BadMbcWrite{Address: 0xA000, Value: 0xFF, Reason: "RAM disabled"}
	want := "bad mbc write at 0xA000 = 0xFF: RAM disabled"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}
