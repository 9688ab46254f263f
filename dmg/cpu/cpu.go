package cpu

import (
	"log/slog"

	"github.com/kstenerud/dmgboy/dmg/addr"
	"github.com/kstenerud/dmgboy/dmg/bit"
	"github.com/kstenerud/dmgboy/dmg/emuerr"
	"github.com/kstenerud/dmgboy/dmg/memory"
)

// interruptVectors lists the 5 interrupt service routine addresses in
// priority order, matching bit position 0 (VBlank, highest priority) through
// bit 4 (Joypad, lowest).
var interruptVectors = [5]uint16{0x40, 0x48, 0x50, 0x58, 0x60}

// CPU is the main struct holding Z80-derivative state for the DMG: the 8
// single-byte registers (paired as AF/BC/DE/HL), stack pointer, program
// counter and interrupt-related latches.
type CPU struct {
	memory *memory.MMU

	a, b, c, d, e, h, l uint8
	f                    uint8
	sp, pc               uint16

	currentOpcode uint8

	ime              bool
	pendingEnableIME bool
	halted           bool
	haltBug          bool
	stopped          bool

	totalCycles uint64

	// strictOpcodes makes an unmapped opcode byte a hard error (Err()
	// returns *emuerr.UnknownOpcode) instead of the default permissive
	// behavior of logging it and treating it as a 1-cycle NOP.
	strictOpcodes bool
	lastErr       error
}

// SetStrictOpcodes switches the unknown-opcode policy: strict mode surfaces
// an *emuerr.UnknownOpcode through Err() instead of treating the byte as a
// NOP, for test-ROM harnesses that want to fail fast on an undecoded opcode.
func (c *CPU) SetStrictOpcodes(strict bool) { c.strictOpcodes = strict }

// Err returns the error recorded by the last Exec call, if any. Exec clears
// it on every call that doesn't hit a new one, so callers must check after
// every Tick/Exec to catch a strict-mode unknown opcode.
func (c *CPU) Err() error { return c.lastErr }

// New returns a CPU wired to the given memory bus, with registers set to
// the documented post-boot-ROM state.
func New(mem *memory.MMU) *CPU {
	return &CPU{
		memory: mem,
		a:      0x01,
		f:      0xB0,
		b:      0x00,
		c:      0x13,
		d:      0x00,
		e:      0xD8,
		h:      0x01,
		l:      0x4D,
		sp:     0xFFFE,
		pc:     0x0100,
	}
}

func (c *CPU) getAF() uint16 { return bit.Combine(c.a, c.f) }
func (c *CPU) getBC() uint16 { return bit.Combine(c.b, c.c) }
func (c *CPU) getDE() uint16 { return bit.Combine(c.d, c.e) }
func (c *CPU) getHL() uint16 { return bit.Combine(c.h, c.l) }

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

// readImmediate consumes the byte at pc, advancing pc past it.
func (c *CPU) readImmediate() uint8 {
	value := c.memory.Read(c.pc)
	c.pc++
	return value
}

// readSignedImmediate consumes the byte at pc as a signed displacement.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord consumes the little-endian word at pc, advancing pc
// past both bytes.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

// GetPC returns the current program counter, for debuggers and snapshots.
func (c *CPU) GetPC() uint16 { return c.pc }

// Tick is an alias for Exec, matching the naming the rest of the emulator
// core drives its instruction loop with.
func (c *CPU) Tick() int { return c.Exec() }

// Exec runs one instruction (fetch, decode, execute) or, while halted,
// advances a single dot-equivalent no-op step, and returns the number of
// dots consumed. Pending interrupts are serviced before the next fetch.
func (c *CPU) Exec() int {
	c.lastErr = nil

	if cycles, serviced := c.serviceInterrupts(); serviced {
		c.totalCycles += uint64(cycles)
		return cycles
	}

	if c.halted {
		c.totalCycles += 4
		return 4
	}

	if c.pendingEnableIME {
		c.pendingEnableIME = false
		c.ime = true
	}

	opcode := c.readImmediate()
	c.currentOpcode = opcode

	if c.haltBug {
		// The halt bug replays the byte after HALT without advancing pc,
		// so the same opcode is decoded twice.
		c.pc--
		c.haltBug = false
	}

	var fn Opcode
	var cbPrefixed bool
	var decodedByte uint8
	if opcode == 0xCB {
		cb := c.readImmediate()
		c.currentOpcode = cb
		fn = decode(0xCB00 | uint16(cb))
		cbPrefixed = true
		decodedByte = cb
	} else {
		fn = decode(uint16(opcode))
		decodedByte = opcode
	}

	if fn == nil {
		err := &emuerr.UnknownOpcode{Opcode: decodedByte, CBPrefixed: cbPrefixed, PC: c.pc}
		if c.strictOpcodes {
			c.lastErr = err
			c.totalCycles += 4
			return 4
		}
		slog.Warn("unknown opcode treated as NOP", "opcode", decodedByte, "cb", cbPrefixed, "pc", c.pc)
		c.totalCycles += 4
		return 4
	}

	cycles := fn(c)
	c.totalCycles += uint64(cycles)
	return cycles
}

// serviceInterrupts checks IE&IF for a pending, prioritized interrupt. When
// halted, any pending interrupt (even with IME off) wakes the CPU; the ISR
// itself is only entered when IME is also set.
func (c *CPU) serviceInterrupts() (int, bool) {
	ie := c.memory.Read(addr.IE)
	iflag := c.memory.Read(addr.IF)
	pending := ie & iflag & 0x1F

	if pending == 0 {
		return 0, false
	}

	if c.halted {
		c.halted = false
	}

	if !c.ime {
		return 0, false
	}

	for bitPos := 0; bitPos < 5; bitPos++ {
		if pending&(1<<uint(bitPos)) == 0 {
			continue
		}

		c.ime = false
		c.memory.Write(addr.IF, iflag&^(1<<uint(bitPos)))
		c.pushStack(c.pc)
		c.pc = interruptVectors[bitPos]
		return 20, true
	}

	return 0, false
}

// The Get* accessors below expose register state to debuggers and
// disassemblers; regular instruction execution never needs them.

func (c *CPU) GetA() uint8  { return c.a }
func (c *CPU) GetF() uint8  { return c.f }
func (c *CPU) GetB() uint8  { return c.b }
func (c *CPU) GetC() uint8  { return c.c }
func (c *CPU) GetD() uint8  { return c.d }
func (c *CPU) GetE() uint8  { return c.e }
func (c *CPU) GetH() uint8  { return c.h }
func (c *CPU) GetL() uint8  { return c.l }
func (c *CPU) GetSP() uint16 { return c.sp }
func (c *CPU) GetAF() uint16 { return c.getAF() }
func (c *CPU) GetBC() uint16 { return c.getBC() }
func (c *CPU) GetDE() uint16 { return c.getDE() }
func (c *CPU) GetHL() uint16 { return c.getHL() }
func (c *CPU) GetIME() bool  { return c.ime }
func (c *CPU) GetTotalCycles() uint64 { return c.totalCycles }

// GetFlagString renders the flag register as the classic Z/N/H/C letter
// quad, dash where unset.
func (c *CPU) GetFlagString() string {
	flags := [4]struct {
		flag Flag
		ch   byte
	}{
		{zeroFlag, 'Z'},
		{subFlag, 'N'},
		{halfCarryFlag, 'H'},
		{carryFlag, 'C'},
	}

	out := make([]byte, 4)
	for i, f := range flags {
		if c.isSetFlag(f.flag) {
			out[i] = f.ch
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}
