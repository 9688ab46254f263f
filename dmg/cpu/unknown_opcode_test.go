package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/kstenerud/dmgboy/dmg/emuerr"
	"github.com/kstenerud/dmgboy/dmg/memory"
)

// 0xD3 is one of the DMG's genuinely unassigned opcode bytes.
const unassignedOpcode = 0xD3

func TestExecUnknownOpcodePermissiveByDefault(t *testing.T) {
	mmu := memory.New()
	cpu := New(mmu)
	cpu.pc = 0xC000
	mmu.Write(0xC000, unassignedOpcode)

	cycles := cpu.Exec()

	assert.Equal(t, 4, cycles)
	assert.NoError(t, cpu.Err())
}

func TestExecUnknownOpcodeStrictReturnsTypedError(t *testing.T) {
	mmu := memory.New()
	cpu := New(mmu)
	cpu.SetStrictOpcodes(true)
	cpu.pc = 0xC000
	mmu.Write(0xC000, unassignedOpcode)

	cpu.Exec()

	err := cpu.Err()
	var unknownOp *emuerr.UnknownOpcode
	if assert.Error(t, err) {
		assert.ErrorAs(t, err, &unknownOp)
		assert.Equal(t, uint8(unassignedOpcode), unknownOp.Opcode)
		assert.False(t, unknownOp.CBPrefixed)
	}
}

func TestExecClearsErrOnNextSuccessfulInstruction(t *testing.T) {
	mmu := memory.New()
	cpu := New(mmu)
	cpu.SetStrictOpcodes(true)
	cpu.pc = 0xC000
	mmu.Write(0xC000, unassignedOpcode)
	cpu.Exec()
	assert.Error(t, cpu.Err())

	cpu.pc = 0xC000
	mmu.Write(0xC000, 0x00) // NOP, a mapped opcode
	cpu.Exec()
	assert.NoError(t, cpu.Err())
}
