package video

import (
	"fmt"
	"log/slog"

	"github.com/kstenerud/dmgboy/dmg/addr"
	"github.com/kstenerud/dmgboy/dmg/bit"
	"github.com/kstenerud/dmgboy/dmg/memory"
)

// GpuMode represents the PPU's current rendering stage.
// These values match the STAT register bits 1-0.
type GpuMode int

const (
	// hblankMode (Mode 0): Horizontal blank period, CPU can access VRAM/OAM
	hblankMode GpuMode = 0
	// vblankMode (Mode 1): Vertical blank period, CPU can access VRAM/OAM
	vblankMode GpuMode = 1
	// oamReadMode (Mode 2): PPU is reading OAM, CPU cannot access OAM
	oamReadMode GpuMode = 2
	// vramReadMode (Mode 3): PPU is reading VRAM, CPU cannot access VRAM/OAM
	vramReadMode GpuMode = 3
)

const (
	hblankCycles       = 204
	oamScanlineCycles  = 80
	vramScanlineCycles = 172
	scanlineCycles     = oamScanlineCycles + vramScanlineCycles + hblankCycles
)

type GPU struct {
	memory        *memory.MMU
	framebuffer   *FrameBuffer
	bgPixelBuffer []byte // stores background/window pixel colors for sprite priority

	// PPU state - these map to Game Boy hardware registers/behavior
	mode                 GpuMode // current PPU mode (matches STAT bits 1-0)
	line                 int     // current scanline (LY register, 0-153)
	cycles               int     // cycle counter for current mode
	modeCounterAux       int     // auxiliary counter for VBlank timing
	vBlankLine           int     // which VBlank line we're on (0-9)
	pixelCounter         int     // how many of the 160 columns the mixer has produced this scanline
	isScanLineTransfered bool    // whether mode 3 has been started for this scanline
	windowLine           int     // internal window line counter (0-143)

	// Mode 3 pixel pipeline state, rebuilt every scanline by beginScanline.
	fetcher             *pixelFetcher
	mode3DotsUsed       int            // actual dots mode 3 has taken so far this line
	hblankCyclesThisLine int           // 456 - 80 - mode3DotsUsed, so HBlank absorbs whatever mode 3 didn't use
	bgDisabledThisLine  bool
	lineWindowVisible   bool
	lineWX              int
	lineSprites         []int          // OAM indices selected for this scanline
	lineSpriteX         []int          // clamped leftmost column per entry in lineSprites
	spriteFetchDone     []bool         // parallel to lineSprites
	objPixels           map[int]objPixel // resolved sprite pixels, keyed by screen column
	spritePriority      *spritePriorityBuffer // which sprite owns each screen column this line

	lcdOn bool // tracks LCDC bit 7, to catch the enable/disable edge
}

func NewGpu(memory *memory.MMU) *GPU {
	fb := NewFrameBuffer()
	gpu := &GPU{
		framebuffer:          fb,
		memory:               memory,
		mode:                 vblankMode,
		bgPixelBuffer:        make([]byte, FramebufferSize),
		hblankCyclesThisLine: hblankCycles,
		spritePriority:       newSpritePriorityBuffer(),

		line: 144,
	}

	// Log initial LCD state
	lcdc := memory.Read(0xFF40)
	bgp := memory.Read(0xFF47) // Background palette
	gpu.lcdOn = (lcdc & 0x80) != 0
	slog.Debug("GPU initialized", "LCDC", fmt.Sprintf("0x%02X", lcdc), "LCD_enabled", gpu.lcdOn, "BGP", fmt.Sprintf("0x%02X", bgp))

	return gpu
}

func (g *GPU) GetFrameBuffer() *FrameBuffer {
	return g.framebuffer
}

// Tick simulates gpu behaviour for a certain amount of clock cycles.
func (g *GPU) Tick(cycles int) {
	if g.readLCDCVariable(lcdDisplayEnable) != 1 {
		if g.lcdOn {
			g.lcdOn = false
			g.cycles = 0
			g.line = 0
			g.mode = hblankMode
			g.memory.Write(addr.LY, 0)
			stat := g.memory.Read(addr.STAT)
			g.memory.Write(addr.STAT, stat&0xFC|byte(hblankMode))
		}
		return
	}

	if !g.lcdOn {
		// Re-enable: the PPU resumes at line 0, mode 2 (OAM scan).
		g.lcdOn = true
		g.cycles = 0
		g.line = 0
		g.mode = oamReadMode
		g.isScanLineTransfered = false
		g.windowLine = 0
		g.memory.Write(addr.LY, 0)
		stat := g.memory.Read(addr.STAT)
		g.memory.Write(addr.STAT, stat&0xFC|byte(oamReadMode))
	}

	g.cycles += cycles

	switch g.mode {
	case hblankMode:
		if g.cycles < g.hblankCyclesThisLine {
			break
		}
		g.cycles -= g.hblankCyclesThisLine
		g.setMode(oamReadMode)
		g.setLY(g.line + 1)

		if g.line == 144 {
			g.setMode(vblankMode)
			g.vBlankLine = 0
			g.modeCounterAux = g.cycles
			g.windowLine = 0

			// Always trigger the VBlank interrupt when switching
			g.memory.RequestInterrupt(addr.VBlankInterrupt)

			// We're switching to VBlank Mode
			// if enabled on STAT, trigger the LCDStat interrupt
			if g.memory.ReadBit(statVblankIrq, addr.STAT) {
				g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
			}
		} else if g.memory.ReadBit(statOamIrq, addr.STAT) {
			// We're switching to OAM Read Mode
			// if enabled on STAT, trigger the LCDStat interrupt
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
	case vblankMode:
		g.modeCounterAux += cycles

		if g.modeCounterAux >= scanlineCycles {
			g.modeCounterAux -= scanlineCycles
			g.vBlankLine++

			if g.vBlankLine <= 9 {
				g.setLY(g.line + 1)
			}
		}

		if g.cycles >= 4104 && g.modeCounterAux >= 4 && g.line == 153 {
			g.setLY(0)
		}

		if g.cycles >= 4560 {
			g.cycles -= 4560
			g.setMode(oamReadMode)
			// We're switching to OAM Read Mode
			// if enabled on STAT, trigger the LCDStat interrupt
			if g.memory.ReadBit(statOamIrq, addr.STAT) {
				g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
			}
		}
	case oamReadMode:
		if g.cycles >= oamScanlineCycles {
			g.cycles -= oamScanlineCycles
			g.setMode(vramReadMode)
			g.isScanLineTransfered = false
		}
	case vramReadMode:
		// Fetcher/FIFO pixel pipeline: begin the scanline once, then drive
		// it one dot at a time until all 160 columns are produced. Mode 3's
		// actual length (and so HBlank's share of the 456-dot line) falls
		// out of however long that took.
		if !g.isScanLineTransfered {
			g.beginScanline()
			g.isScanLineTransfered = true
		}

		remaining := cycles
		for remaining > 0 && g.pixelCounter < FramebufferWidth {
			g.stepFetcherDot()
			remaining--
		}

		if g.pixelCounter >= FramebufferWidth {
			if g.fetcher != nil && g.fetcher.usingWindow {
				g.windowLine++
			}
			g.hblankCyclesThisLine = scanlineCycles - oamScanlineCycles - g.mode3DotsUsed
			g.cycles = remaining
			g.setMode(hblankMode)

			// We're switching to HBlank Mode
			// if enabled on STAT, trigger the LCDStat interrupt
			if g.memory.ReadBit(statHblankIrq, addr.STAT) {
				g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
			}
		} else {
			g.cycles = 0
		}
	}

	if g.cycles >= 70224 {
		g.cycles -= 70224
	}
}

// drawScanline drives the fetcher/FIFO pipeline for g.line to completion in
// one call, instead of one dot per Tick. Used by tests and debug tooling that
// want a finished scanline without stepping the PPU mode state machine.
func (g *GPU) drawScanline() {
	g.beginScanline()
	for g.pixelCounter < FramebufferWidth {
		g.stepFetcherDot()
	}
	if g.fetcher != nil && g.fetcher.usingWindow {
		g.windowLine++
	}
}

// LCD Stat (Status) Register bit values
// Bit 7 - unused
// Bit 6 - Interrupt based on LYC to LY comparison (based on bit 2)
// Bit 5 - Interrupt when Mode 10 (oamReadMode)
// Bit 4 - Interrupt when Mode 01 (vblankMode)
// Bit 3 - Interrupt when Mode 00 (hblankMode)
// Bit 2 - condition for triggering LYC/LY (0=LYC != LY, 1=LYC == LY)
// Bit 1,0 - represents the current GPU mode
//   - 00 -> hblankMode
//   - 01 -> vblankMode
//   - 10 -> oamReadMode
//   - 11 -> vramReadMode
type statFlag uint8

const (
	statLycIrq       statFlag = 6
	statOamIrq                = 5
	statVblankIrq             = 4
	statHblankIrq             = 3
	statLycCondition          = 2
	statModeHigh              = 1
	statModeLow               = 0
)

// LCDC (LCD Control) Register bit values
// Bit 7 - LCD Display Enable (0=Off, 1=On)
// Bit 6 - Window Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 5 - Window Display Enable (0=Off, 1=On)
// Bit 4 - BG & Window Tile Data Select (0=8800-97FF, 1=8000-8FFF)
// Bit 3 - BG Tile Map Display Select (0=9800-9BFF, 1=9C00-9FFF)
// Bit 2 - OBJ (Sprite) Size (0=8x8, 1=8x16)
// Bit 1 - OBJ (Sprite) Display Enable (0=Off, 1=On)
// Bit 0 - BG Display (0=Off, 1=On)
type lcdcFlag uint8

const (
	lcdDisplayEnable       lcdcFlag = 7
	windowTileMapSelect             = 6
	windowDisplayEnable             = 5
	bgWindowTileDataSelect          = 4
	bgTileMapDisplaySelect          = 3
	spriteSize                      = 2
	spriteDisplayEnable             = 1
	bgDisplay                       = 0
)

func (g *GPU) readLCDCVariable(flag lcdcFlag) byte {
	if bit.IsSet(uint8(flag), g.memory.Read(addr.LCDC)) {
		return 1
	}

	return 0
}

func (g *GPU) compareLYToLYC() {
	ly := g.memory.Read(addr.LY)
	lyc := g.memory.Read(addr.LYC)
	stat := g.memory.Read(addr.STAT)

	if ly == lyc {
		stat = bit.Set(statLycCondition, stat)
		if bit.IsSet(uint8(statLycIrq), stat) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
	} else {
		stat = bit.Reset(statLycCondition, stat)
	}

	g.memory.Write(addr.STAT, stat)
}

// setMode sets the two bits (1,0) in the STAT register
// according to the selected GPU mode.
func (g *GPU) setMode(mode GpuMode) {
	g.mode = mode
	stat := g.memory.Read(addr.STAT)
	stat = stat&0xFC | byte(g.mode)
	g.memory.Write(addr.STAT, stat)
}

// setLY updates the current scanline (LY register).
// This also triggers interrupts if necessary (LY/LYC comparison)
func (g *GPU) setLY(line int) {
	g.line = line
	g.memory.Write(addr.LY, byte(g.line))
	g.compareLYToLYC()
}
