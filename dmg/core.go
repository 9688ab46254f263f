package dmg

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/kstenerud/dmgboy/dmg/addr"
	"github.com/kstenerud/dmgboy/dmg/cpu"
	"github.com/kstenerud/dmgboy/dmg/debug"
	"github.com/kstenerud/dmgboy/dmg/emuerr"
	"github.com/kstenerud/dmgboy/dmg/input/action"
	"github.com/kstenerud/dmgboy/dmg/memory"
	"github.com/kstenerud/dmgboy/dmg/timing"
	"github.com/kstenerud/dmgboy/dmg/video"
)

// DebuggerState represents the current debugger mode
type DebuggerState int

const (
	DebuggerRunning   DebuggerState = iota // Normal execution
	DebuggerPaused                         // Paused, waiting for commands
	DebuggerStep                           // Execute one instruction then pause
	DebuggerStepFrame                      // Execute one frame then pause
)

// DMG is the root struct and entry point for running the emulation of a
// single Game Boy (DMG model) unit.
type DMG struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mem *memory.MMU
	bus *Bus

	limiter timing.Limiter

	// Debugger state
	debuggerState    DebuggerState
	debuggerMutex    sync.RWMutex
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64

	// romPath is the loaded ROM's file path, used to derive the sibling
	// .sav path for battery-backed RAM persistence. Empty for New().
	romPath string
}

func (e *DMG) init(mem *memory.MMU) {
	e.cpu = cpu.New(mem)
	e.gpu = video.NewGpu(mem)
	e.mem = mem
	e.mem.SetTimerSeed(0xABCC)
	e.limiter = timing.NewNoOpLimiter()
	e.bus = NewBus(e.cpu, e.mem, e.gpu)
}

// New creates a new emulator instance
func New() *DMG {
	e := &DMG{}
	e.init(memory.NewWithCartridge(memory.NewCartridge()))

	return e
}

// NewWithFile creates a new emulator instance and loads the file specified into it.
func NewWithFile(path string) (*DMG, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &emuerr.RomLoadFailure{Path: path, Reason: "couldn't read file", Err: err}
	}

	if !memory.HasValidHeaderSize(data) {
		return nil, &emuerr.RomLoadFailure{Path: path, Reason: fmt.Sprintf("file is %d bytes, too small to hold a cartridge header", len(data))}
	}

	slog.Debug("Loaded ROM data", "size", len(data))

	cart := memory.NewCartridgeWithData(data)

	e := &DMG{}
	e.init(memory.NewWithCartridge(cart))
	e.romPath = path

	if cart.HasBattery() {
		if err := e.LoadBatteryRAM(); err != nil {
			slog.Warn("no battery save loaded", "rom", path, "reason", err)
		}
	}

	return e, nil
}

// RunUntilFrame advances emulation until a full frame has been produced (or
// the debugger holds it at a single step), then paces itself against the
// configured frame limiter.
func (e *DMG) RunUntilFrame() error {
	e.debuggerMutex.RLock()
	state := e.debuggerState
	e.debuggerMutex.RUnlock()

	// Handle paused state - don't execute anything
	if state == DebuggerPaused {
		return nil
	}

	// Handle step instruction - execute one instruction then pause
	if state == DebuggerStep {
		e.debuggerMutex.Lock()
		if e.stepRequested {
			e.stepRequested = false
			e.debuggerMutex.Unlock()

			// Execute one CPU instruction
			oldPC := e.cpu.GetPC()
			if _, err := e.bus.Step(); err != nil {
				return err
			}
			e.instructionCount++

			// Log the executed instruction
			slog.Debug("Step executed", "pc", fmt.Sprintf("0x%04X", oldPC), "new_pc", fmt.Sprintf("0x%04X", e.cpu.GetPC()))

			// Pause after execution
			e.SetDebuggerState(DebuggerPaused)
		} else {
			e.debuggerMutex.Unlock()
		}
		return nil
	}

	// Handle step frame - execute one frame then pause
	if state == DebuggerStepFrame {
		e.debuggerMutex.Lock()
		frameRequested := e.frameRequested
		if frameRequested {
			e.frameRequested = false
		}
		e.debuggerMutex.Unlock()

		if frameRequested {
			// Execute one full frame
			total := 0
			for {
				cycles, err := e.bus.Step()
				if err != nil {
					return err
				}
				e.instructionCount++
				total += cycles

				if total >= 70224 {
					break
				}
			}
			e.frameCount++
			slog.Debug("Frame step completed", "frame", e.frameCount, "instructions", e.instructionCount)
			e.SetDebuggerState(DebuggerPaused)
		}
		return nil
	}

	// Normal execution (DebuggerRunning)
	total := 0
	for {
		cycles, err := e.bus.Step()
		if err != nil {
			return err
		}
		e.instructionCount++

		total += cycles

		if total >= 70224 {
			e.frameCount++
			// Log every 60 frames (once per second at 60 FPS) only when running
			if e.frameCount%60 == 0 {
				slog.Debug("Frame completed", "frame", e.frameCount, "pc", fmt.Sprintf("0x%04X", e.cpu.GetPC()))
			}
			e.limiter.WaitForNextFrame()
			return nil
		}
	}
}

// SetStrictOpcodes enables or disables strict unknown-opcode handling: when
// strict, RunUntilFrame returns an *emuerr.UnknownOpcode instead of logging
// and treating the byte as a NOP.
func (e *DMG) SetStrictOpcodes(strict bool) {
	e.cpu.SetStrictOpcodes(strict)
}

func (e *DMG) GetCurrentFrame() *video.FrameBuffer {
	return e.gpu.GetFrameBuffer()
}

func (e *DMG) HandleKeyPress(key memory.JoypadKey) {
	e.mem.HandleKeyPress(key)
}

func (e *DMG) HandleKeyRelease(key memory.JoypadKey) {
	e.mem.HandleKeyRelease(key)
}

// HandleAction translates a backend-reported action into the joypad press
// or release it represents, or into the matching debugger control.
func (e *DMG) HandleAction(act action.Action, pressed bool) {
	if key, ok := joypadActionMap[act]; ok {
		if pressed {
			e.HandleKeyPress(key)
		} else {
			e.HandleKeyRelease(key)
		}
		return
	}

	if !pressed {
		return
	}

	switch act {
	case action.EmulatorPauseToggle:
		if e.GetDebuggerState() == DebuggerPaused {
			e.DebuggerResume()
		} else {
			e.DebuggerPause()
		}
	case action.EmulatorStepFrame:
		e.DebuggerStepFrame()
	case action.EmulatorStepInstruction:
		e.DebuggerStepInstruction()
	}
}

var joypadActionMap = map[action.Action]memory.JoypadKey{
	action.GBButtonA:      memory.JoypadA,
	action.GBButtonB:      memory.JoypadB,
	action.GBButtonStart:  memory.JoypadStart,
	action.GBButtonSelect: memory.JoypadSelect,
	action.GBDPadUp:       memory.JoypadUp,
	action.GBDPadDown:     memory.JoypadDown,
	action.GBDPadLeft:     memory.JoypadLeft,
	action.GBDPadRight:    memory.JoypadRight,
}

func (e *DMG) GetCPU() *cpu.CPU {
	return e.cpu
}

// Debugger control methods
func (e *DMG) SetDebuggerState(state DebuggerState) {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.debuggerState = state
	slog.Debug("Debugger state changed", "state", state)
}

func (e *DMG) GetDebuggerState() DebuggerState {
	e.debuggerMutex.RLock()
	defer e.debuggerMutex.RUnlock()
	return e.debuggerState
}

func (e *DMG) DebuggerPause() {
	e.SetDebuggerState(DebuggerPaused)
	slog.Info("Emulator paused")
}

func (e *DMG) DebuggerResume() {
	e.SetDebuggerState(DebuggerRunning)
	slog.Info("Emulator resumed")
}

func (e *DMG) DebuggerStepInstruction() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.stepRequested = true
	e.debuggerState = DebuggerStep
	slog.Info("Step instruction requested")
}

func (e *DMG) DebuggerStepFrame() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.frameRequested = true
	e.debuggerState = DebuggerStepFrame
	slog.Info("Step frame requested")
}

func (e *DMG) GetInstructionCount() uint64 {
	return e.instructionCount
}

func (e *DMG) GetFrameCount() uint64 {
	return e.frameCount
}

// debugSnapshotRadius is how many bytes around PC ExtractDebugData includes
// in the memory snapshot, enough to cover the disassembly window either side.
const debugSnapshotRadius = 100

// ExtractDebugData snapshots CPU, interrupt, memory and debugger state for a
// debug display. Returns nil if the emulator hasn't been initialized (e.g. a
// zero-value DMG{}) since there's no CPU/MMU to read from yet.
func (e *DMG) ExtractDebugData() *debug.Data {
	if e.cpu == nil || e.mem == nil {
		return nil
	}

	c := e.cpu
	pc := c.GetPC()

	start := uint16(0)
	if pc > debugSnapshotRadius {
		start = pc - debugSnapshotRadius
	}

	size := 2 * debugSnapshotRadius
	if uint32(start)+uint32(size) > 0x10000 {
		size = int(0x10000 - uint32(start))
	}

	bytes := make([]uint8, size)
	for i := 0; i < size; i++ {
		bytes[i] = e.mem.Read(start + uint16(i))
	}

	line := e.mem.Read(addr.LY)
	oam := debug.ExtractOAMDataFromReader(e.mem, int(line), 8)
	if (e.mem.Read(addr.LCDC) & 0x04) != 0 {
		oam = debug.ExtractOAMDataFromReader(e.mem, int(line), 16)
	}
	vram := debug.ExtractVRAMDataFromReader(e.mem)
	spriteVis := debug.ExtractSpriteData(e.mem, line)
	bgVis := debug.ExtractBackgroundData(e.mem)
	paletteVis := debug.ExtractPaletteData(e.mem)
	audioData := debug.ExtractAudioData(e.mem, e.mem.APU)

	return &debug.Data{
		CPU: &debug.CPUState{
			A: c.GetA(), F: c.GetF(), B: c.GetB(), C: c.GetC(),
			D: c.GetD(), E: c.GetE(), H: c.GetH(), L: c.GetL(),
			SP: c.GetSP(), PC: pc, IME: c.GetIME(), Cycles: c.GetTotalCycles(),
		},
		Memory: &debug.MemorySnapshot{
			StartAddr: start,
			Bytes:     bytes,
		},
		DebuggerState:   debug.DebuggerState(e.GetDebuggerState()),
		InterruptEnable: e.mem.Read(addr.IE),
		InterruptFlags:  e.mem.Read(addr.IF),

		OAM:           oam,
		VRAM:          vram,
		SpriteVis:     spriteVis,
		BackgroundVis: bgVis,
		PaletteVis:    paletteVis,
		Audio:         audioData,
		LayerBuffers:  debug.BuildRenderLayers(bgVis, spriteVis, paletteVis),
	}
}

// SetFrameLimiter installs the pacing strategy used between frames; a nil
// limiter disables pacing entirely (used in headless/benchmark runs).
func (e *DMG) SetFrameLimiter(limiter timing.Limiter) {
	if limiter == nil {
		e.limiter = timing.NewNoOpLimiter()
	} else {
		e.limiter = limiter
	}
}

// ResetFrameTiming clears accumulated pacing drift, useful after a debugger
// pause so the next frame isn't throttled to catch up.
func (e *DMG) ResetFrameTiming() {
	e.limiter.Reset()
}

func (e *DMG) GetMMU() *memory.MMU {
	return e.mem
}

// savPath returns the sibling .sav path for the loaded ROM, or "" if no ROM
// file backs this instance.
func (e *DMG) savPath() string {
	if e.romPath == "" {
		return ""
	}
	ext := filepath.Ext(e.romPath)
	return strings.TrimSuffix(e.romPath, ext) + ".sav"
}

// savMagic tags the fingerprinted save format so a .sav from an unrelated
// tool isn't silently misread as cartridge RAM.
const savMagic = "DMGSAV1\x00"

// SaveBatteryRAM writes the cartridge's external RAM to its sibling .sav
// file, prefixed with a magic tag and an xxhash64 fingerprint of the RAM
// bytes. A no-op if the cartridge has no battery or no ROM path is set.
func (e *DMG) SaveBatteryRAM() error {
	if !e.mem.CartridgeHasBattery() {
		return nil
	}
	path := e.savPath()
	if path == "" {
		return nil
	}
	ram := e.mem.ExternalRAM()
	if len(ram) == 0 {
		return nil
	}

	sum := xxhash.Sum64(ram)
	buf := make([]byte, len(savMagic)+8+len(ram))
	copy(buf, savMagic)
	binary.LittleEndian.PutUint64(buf[len(savMagic):], sum)
	copy(buf[len(savMagic)+8:], ram)

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("writing save file %s: %w", path, err)
	}
	slog.Info("saved battery RAM", "path", path, "bytes", len(ram))
	return nil
}

// LoadBatteryRAM restores the cartridge's external RAM from its sibling
// .sav file, if present, length-compatible, and fingerprint-valid. A
// mismatch (truncated/corrupt file) is logged and treated as "no save
// found" rather than a hard failure, so a corrupt .sav never blocks boot.
func (e *DMG) LoadBatteryRAM() error {
	path := e.savPath()
	if path == "" {
		return fmt.Errorf("no ROM path set")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if len(data) < len(savMagic)+8 || string(data[:len(savMagic)]) != savMagic {
		return fmt.Errorf("%s is not a recognized save file", path)
	}

	sum := binary.LittleEndian.Uint64(data[len(savMagic) : len(savMagic)+8])
	ram := data[len(savMagic)+8:]

	if xxhash.Sum64(ram) != sum {
		return fmt.Errorf("%s failed its checksum, ignoring", path)
	}

	want := len(e.mem.ExternalRAM())
	if len(ram) != want {
		return fmt.Errorf("%s has %d RAM bytes, cartridge expects %d", path, len(ram), want)
	}

	e.mem.LoadExternalRAM(ram)
	slog.Info("loaded battery RAM", "path", path, "bytes", len(ram))
	return nil
}

