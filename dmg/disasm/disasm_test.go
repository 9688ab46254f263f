package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/kstenerud/dmgboy/dmg/memory"
)

// These tests write into WRAM (0xC000+) rather than ROM: memory.New() has no
// cartridge loaded, so ROM reads always return 0xFF and ROM writes are
// dropped, but WRAM is backed by the MMU's plain memory array either way.

func TestDisassembleAtSimpleInstruction(t *testing.T) {
	mmu := memory.New()
	mmu.Write(0xC000, 0x00) // NOP

	line := DisassembleAt(0xC000, mmu)

	assert.Equal(t, uint16(0xC000), line.Address)
	assert.Equal(t, "NOP", line.Instruction)
	assert.Equal(t, 1, line.Length)
}

func TestDisassembleAtImmediateByte(t *testing.T) {
	mmu := memory.New()
	mmu.Write(0xC000, 0x06) // LD B, n
	mmu.Write(0xC001, 0x42)

	line := DisassembleAt(0xC000, mmu)

	assert.Equal(t, "LD B, 0x42", line.Instruction)
	assert.Equal(t, 2, line.Length)
}

func TestDisassembleAtImmediateWord(t *testing.T) {
	mmu := memory.New()
	mmu.Write(0xC000, 0xC3) // JP nn
	mmu.Write(0xC001, 0x34)
	mmu.Write(0xC002, 0x12)

	line := DisassembleAt(0xC000, mmu)

	assert.Equal(t, "JP 0x1234", line.Instruction)
	assert.Equal(t, 3, line.Length)
}

func TestDisassembleAtAddToSP(t *testing.T) {
	mmu := memory.New()
	mmu.Write(0xC000, 0xE8) // ADD SP, n
	mmu.Write(0xC001, 0x05)

	line := DisassembleAt(0xC000, mmu)

	assert.Equal(t, "ADD SP, 0x05", line.Instruction)
	assert.Equal(t, 2, line.Length)
}

func TestDisassembleAtCBPrefixed(t *testing.T) {
	mmu := memory.New()
	mmu.Write(0xC000, 0xCB)
	mmu.Write(0xC001, 0x7C) // BIT 7 H

	line := DisassembleAt(0xC000, mmu)

	assert.Equal(t, "BIT 7 H", line.Instruction)
	assert.Equal(t, 2, line.Length)
}

func TestDisassembleRangeAdvancesByInstructionLength(t *testing.T) {
	mmu := memory.New()
	mmu.Write(0xC000, 0x00) // NOP
	mmu.Write(0xC001, 0x06) // LD B, n
	mmu.Write(0xC002, 0x10)
	mmu.Write(0xC003, 0xC3) // JP nn
	mmu.Write(0xC004, 0x00)
	mmu.Write(0xC005, 0x01)

	lines := DisassembleRange(0xC000, 3, mmu)

	assert.Len(t, lines, 3)
	assert.Equal(t, uint16(0xC000), lines[0].Address)
	assert.Equal(t, uint16(0xC001), lines[1].Address)
	assert.Equal(t, uint16(0xC003), lines[2].Address)
}

func TestDisassembleBytesMatchesDisassembleAt(t *testing.T) {
	data := []byte{0x3E, 0x7F} // LD A, n
	instruction, length := DisassembleBytes(data, 0)

	assert.Equal(t, "LD A, 0x7F", instruction)
	assert.Equal(t, 2, length)
}

func TestDisassembleBytesTruncatedOperandIsPadded(t *testing.T) {
	data := []byte{0xC3, 0x34} // JP nn, missing high byte
	instruction, length := DisassembleBytes(data, 0)

	assert.Equal(t, "JP 0x0034", instruction)
	assert.Equal(t, 3, length)
}

func TestInstructionLengthsCoverWholeOpcodeSpace(t *testing.T) {
	for opcode := 0; opcode < 256; opcode++ {
		length := InstructionLengths[opcode]
		assert.GreaterOrEqual(t, length, 1, "opcode 0x%02X", opcode)
		assert.LessOrEqual(t, length, 3, "opcode 0x%02X", opcode)
	}
	for opcode := 0; opcode < 256; opcode++ {
		assert.Equal(t, 2, CBInstructionLengths[opcode], "CB opcode 0x%02X", opcode)
	}
}
