package dmg

import (
	"github.com/kstenerud/dmgboy/dmg/addr"
	"github.com/kstenerud/dmgboy/dmg/cpu"
	"github.com/kstenerud/dmgboy/dmg/memory"
	"github.com/kstenerud/dmgboy/dmg/video"
)

// Bus is the wiring between the CPU, the memory-mapped device set, and the
// PPU: the single place that knows how one CPU step turns into ticks on
// every other component sharing the same clock.
type Bus struct {
	CPU *cpu.CPU
	MMU *memory.MMU
	GPU *video.GPU
}

// NewBus wires a Bus around an already-constructed CPU/MMU/GPU trio.
func NewBus(cpu *cpu.CPU, mmu *memory.MMU, gpu *video.GPU) *Bus {
	return &Bus{CPU: cpu, MMU: mmu, GPU: gpu}
}

func (b *Bus) Read(address uint16) byte {
	return b.MMU.Read(address)
}

func (b *Bus) Write(address uint16, value byte) {
	b.MMU.Write(address, value)
}

// Step runs one CPU instruction and advances every other device-facing
// component (timer/DMA, PPU, APU) by the same number of dots, reporting the
// dot count and any strict-mode error the CPU recorded for that instruction.
func (b *Bus) Step() (cycles int, err error) {
	cycles = b.CPU.Exec()
	if cpuErr := b.CPU.Err(); cpuErr != nil {
		return cycles, cpuErr
	}

	b.MMU.Tick(cycles)
	b.GPU.Tick(cycles)
	b.MMU.APU.Tick(cycles)
	return cycles, nil
}

func (b *Bus) RequestInterrupt(interrupt addr.Interrupt) {
	b.MMU.RequestInterrupt(interrupt)
}

func (b *Bus) ReadBit(index uint8, address uint16) bool {
	return b.MMU.ReadBit(index, address)
}
