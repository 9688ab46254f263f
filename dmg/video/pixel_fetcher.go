package video

import (
	"github.com/kstenerud/dmgboy/dmg/addr"
	"github.com/kstenerud/dmgboy/dmg/bit"
)

// fetcherStep is one of the 5 stages the background/window pixel fetcher
// cycles through to refill its FIFO with 8 pixels: 3 fetch stages (2 dots
// each), a push once the FIFO has room, and an idle wait while it doesn't.
type fetcherStep int

const (
	stepFetchTile fetcherStep = iota
	stepFetchLow
	stepFetchHigh
	stepPush
	stepIdle
)

// objPixel is a resolved, opaque sprite pixel waiting to be mixed in at a
// specific screen column.
type objPixel struct {
	color       uint8
	paletteAddr uint16
	aboveBG     bool
}

// pixelFetcher holds the per-scanline state of the background/window
// fetcher: its FIFO and which 5-stage step it's in. Sprite fetches are
// tracked separately on the GPU since they interrupt this fetcher rather
// than running alongside it.
type pixelFetcher struct {
	step   fetcherStep
	subDot int

	usingWindow bool
	tileCol     int
	discard     int

	tileID   byte
	dataLow  byte
	dataHigh byte

	bgFifo []uint8

	spritePenalty int
}

func newPixelFetcher(scrollX uint8) *pixelFetcher {
	return &pixelFetcher{
		discard: int(scrollX) % 8,
	}
}

// beginScanline resets per-line fetcher/sprite state and decides whether the
// window is visible at all on this line, ahead of the dot-by-dot mode 3 run.
func (g *GPU) beginScanline() {
	lineWidth := g.line * FramebufferWidth

	if g.readLCDCVariable(lcdDisplayEnable) != 1 {
		for i := 0; i < FramebufferWidth; i++ {
			g.framebuffer.buffer[lineWidth+i] = 0xFFFFFFFF
		}
		g.pixelCounter = FramebufferWidth
		g.mode3DotsUsed = 0
		return
	}

	scrollX := g.memory.Read(addr.SCX)
	g.fetcher = newPixelFetcher(scrollX)
	g.pixelCounter = 0
	g.mode3DotsUsed = 0
	g.objPixels = make(map[int]objPixel, 8)
	g.bgDisabledThisLine = g.readLCDCVariable(bgDisplay) != 1

	windowEnabled := g.readLCDCVariable(windowDisplayEnable) == 1
	wy := g.memory.Read(addr.WY)
	wxByte := g.memory.Read(addr.WX) - 7 // wraps when WX < 7, which excludes that edge case
	g.lineWX = int(wxByte)
	g.lineWindowVisible = windowEnabled && wxByte <= 159 && wy <= 143 && int(wy) <= g.line && g.windowLine <= 143

	g.scanSpritesForLine()
}

// scanSpritesForLine runs the OAM selection phase (up to 10 sprites
// overlapping this line, in OAM order) and resolves per-pixel ownership
// ahead of time, same as real hardware's priority rules.
func (g *GPU) scanSpritesForLine() {
	spriteHeight := 8
	if g.readLCDCVariable(spriteSize) == 1 {
		spriteHeight = 16
	}

	var sprites []int
	for sprite := 0; sprite < 40; sprite++ {
		oamAddr := addr.OAMStart + uint16(sprite*4)
		spriteY := int(g.memory.Read(oamAddr)) - 16

		if spriteY > g.line || (spriteY+spriteHeight) <= g.line {
			continue
		}
		sprites = append(sprites, sprite)

		if len(sprites) >= 10 {
			break
		}
	}

	g.spritePriority.Clear()
	for _, sprite := range sprites {
		oamAddr := addr.OAMStart + uint16(sprite*4)
		spriteX := int(g.memory.Read(oamAddr+1)) - 8
		for pixelOffset := 0; pixelOffset < 8; pixelOffset++ {
			g.spritePriority.TryClaimPixel(spriteX+pixelOffset, sprite, spriteX)
		}
	}

	g.lineSprites = sprites
	g.lineSpriteX = make([]int, len(sprites))
	for i, sprite := range sprites {
		oamAddr := addr.OAMStart + uint16(sprite*4)
		spriteX := int(g.memory.Read(oamAddr+1)) - 8
		if spriteX < 0 {
			spriteX = 0
		}
		g.lineSpriteX[i] = spriteX
	}
	g.spriteFetchDone = make([]bool, len(sprites))
}

// stepFetcherDot advances mode 3 by a single dot: servicing an in-progress
// sprite fetch penalty, triggering a sprite or window fetch if the mixer has
// just reached one, advancing the background/window fetcher's 5-stage state
// machine, and finally draining one pixel from the FIFO into the
// framebuffer. mode3DotsUsed increments on every call so the actual length
// of mode 3 (and therefore HBlank's remainder of the 456-dot line) falls out
// of how much work this line's fetches and FIFO stalls actually took.
func (g *GPU) stepFetcherDot() {
	g.mode3DotsUsed++
	f := g.fetcher

	if f.spritePenalty > 0 {
		f.spritePenalty--
		return
	}

	if idx := g.spriteStartingAt(g.pixelCounter); idx >= 0 {
		g.spriteFetchDone[idx] = true
		g.fetchSpritePixels(idx)
		f.spritePenalty = 6
		return
	}

	if !f.usingWindow && g.windowTriggersAt(g.pixelCounter) {
		f.usingWindow = true
		f.bgFifo = f.bgFifo[:0]
		f.tileCol = 0
		f.discard = 0
		f.step = stepFetchTile
		f.subDot = 0
		f.spritePenalty = 6
		return
	}

	switch f.step {
	case stepFetchTile, stepFetchLow, stepFetchHigh:
		f.subDot++
		if f.subDot >= 2 {
			f.subDot = 0
			g.advanceFetch()
		}
	case stepPush, stepIdle:
		if len(f.bgFifo) == 0 {
			g.pushEightPixels()
			f.tileCol++
			f.step = stepFetchTile
		} else {
			f.step = stepIdle
		}
	}

	if len(f.bgFifo) > 0 {
		color := f.bgFifo[0]
		f.bgFifo = f.bgFifo[1:]
		if f.discard > 0 {
			f.discard--
		} else {
			g.emitPixel(color)
		}
	}
}

// advanceFetch runs the work for whichever of the 3 fetch stages just
// finished its 2 dots, and moves on to the next one.
func (g *GPU) advanceFetch() {
	f := g.fetcher
	switch f.step {
	case stepFetchTile:
		f.tileID = g.fetchTileID(f.usingWindow, f.tileCol)
		f.step = stepFetchLow
	case stepFetchLow:
		f.dataLow = g.fetchTileRowByte(f.usingWindow, f.tileID, false)
		f.step = stepFetchHigh
	case stepFetchHigh:
		f.dataHigh = g.fetchTileRowByte(f.usingWindow, f.tileID, true)
		f.step = stepPush
	}
}

// fetchTileID reads the tile-map byte for the next 8-pixel group, from the
// background or window tile map according to LCDC and the relevant scroll
// position.
func (g *GPU) fetchTileID(usingWindow bool, tileCol int) byte {
	if usingWindow {
		tileMapAddr := addr.TileMap0
		if g.readLCDCVariable(windowTileMapSelect) == 1 {
			tileMapAddr = addr.TileMap1
		}
		row := (g.windowLine / 8) * 32
		col := tileCol % 32
		return g.memory.Read(tileMapAddr + uint16(row+col))
	}

	tileMapAddr := addr.TileMap0
	if g.readLCDCVariable(bgTileMapDisplaySelect) == 1 {
		tileMapAddr = addr.TileMap1
	}
	scrollY := g.memory.Read(addr.SCY)
	scrollX := g.memory.Read(addr.SCX)
	lineScrolled := (g.line + int(scrollY)) & 0xFF
	row := (lineScrolled / 8) * 32
	col := ((int(scrollX) / 8) + tileCol) % 32
	return g.memory.Read(tileMapAddr + uint16(row+col))
}

// fetchTileRowByte reads one of the two bitplane bytes for the current
// tile's row, in signed or unsigned tile-data addressing as LCDC selects.
func (g *GPU) fetchTileRowByte(usingWindow bool, tileID byte, high bool) byte {
	useSignedTileSet := g.readLCDCVariable(bgWindowTileDataSelect) == 0
	tilesAddr := addr.TileData0
	if useSignedTileSet {
		tilesAddr = addr.TileData2
	}

	var pixelY int
	if usingWindow {
		pixelY = g.windowLine % 8
	} else {
		scrollY := g.memory.Read(addr.SCY)
		pixelY = (g.line + int(scrollY)) % 8
	}
	pixelY2 := pixelY * 2

	var tileAddr uint16
	if useSignedTileSet {
		signedTile := int8(tileID)
		tileAddr = uint16(int(tilesAddr) + int(signedTile)*16 + pixelY2)
	} else {
		tileAddr = tilesAddr + uint16(int(tileID)*16) + uint16(pixelY2)
	}

	if high {
		return g.memory.Read(tileAddr + 1)
	}
	return g.memory.Read(tileAddr)
}

// pushEightPixels unpacks the fetcher's two bitplane bytes into 8 2-bit
// color indices and queues them in the background FIFO.
func (g *GPU) pushEightPixels() {
	f := g.fetcher
	if g.bgDisabledThisLine {
		for i := 0; i < 8; i++ {
			f.bgFifo = append(f.bgFifo, 0)
		}
		return
	}
	for bitIdx := 7; bitIdx >= 0; bitIdx-- {
		color := uint8(0)
		if bit.IsSet(uint8(bitIdx), f.dataLow) {
			color |= 1
		}
		if bit.IsSet(uint8(bitIdx), f.dataHigh) {
			color |= 2
		}
		f.bgFifo = append(f.bgFifo, color)
	}
}

// windowTriggersAt reports whether the mixer reaching this screen column
// should switch the fetcher over to the window tile map.
func (g *GPU) windowTriggersAt(screenX int) bool {
	return g.lineWindowVisible && screenX == g.lineWX
}

// spriteStartingAt returns the index into lineSprites/lineSpriteX whose
// leftmost visible column is screenX and hasn't been fetched yet, or -1.
func (g *GPU) spriteStartingAt(screenX int) int {
	if g.readLCDCVariable(spriteDisplayEnable) != 1 {
		return -1
	}
	for i, x := range g.lineSpriteX {
		if x == screenX && !g.spriteFetchDone[i] {
			return i
		}
	}
	return -1
}

// fetchSpritePixels resolves every column the given sprite owns (per the
// priority buffer computed at the start of the line) into g.objPixels, for
// the mixer to composite in as it reaches each column.
func (g *GPU) fetchSpritePixels(idx int) {
	sprite := g.lineSprites[idx]
	oamAddr := addr.OAMStart + uint16(sprite*4)

	spriteHeight := 8
	if g.readLCDCVariable(spriteSize) == 1 {
		spriteHeight = 16
	}

	spriteY := int(g.memory.Read(oamAddr)) - 16
	spriteX := int(g.memory.Read(oamAddr+1)) - 8
	spriteTile := g.memory.Read(oamAddr + 2)
	spriteFlags := g.memory.Read(oamAddr + 3)

	spriteMask := 0xFF
	if spriteHeight == 16 {
		spriteMask = 0xFE
	}
	spriteTile16 := (int(spriteTile) & spriteMask) * 16

	objPaletteAddr := addr.OBP0
	if bit.IsSet(4, spriteFlags) {
		objPaletteAddr = addr.OBP1
	}

	flipX := bit.IsSet(5, spriteFlags)
	flipY := bit.IsSet(6, spriteFlags)
	aboveBG := !bit.IsSet(7, spriteFlags)

	pixelY := g.line - spriteY
	if flipY {
		pixelY = spriteHeight - 1 - pixelY
	}

	pixelY2 := 0
	offset := 0
	if spriteHeight == 16 && pixelY >= 8 {
		pixelY2 = (pixelY - 8) * 2
		offset = 16
	} else {
		pixelY2 = pixelY * 2
	}

	tileAddr := addr.TileData0 + uint16(spriteTile16+pixelY2+offset)
	low := g.memory.Read(tileAddr)
	high := g.memory.Read(tileAddr + 1)

	for pixelX := 0; pixelX < 8; pixelX++ {
		bufferX := spriteX + pixelX
		if bufferX < 0 || bufferX >= FramebufferWidth {
			continue
		}
		if g.spritePriority.GetOwner(bufferX) != sprite {
			continue
		}

		pixelIdx := 7 - pixelX
		if flipX {
			pixelIdx = pixelX
		}

		color := uint8(0)
		if bit.IsSet(uint8(pixelIdx), low) {
			color |= 1
		}
		if bit.IsSet(uint8(pixelIdx), high) {
			color |= 2
		}
		if color == 0 {
			continue // transparent
		}

		g.objPixels[bufferX] = objPixel{color: color, paletteAddr: objPaletteAddr, aboveBG: aboveBG}
	}
}

// emitPixel mixes the popped background/window color with any resolved
// sprite pixel at this column and writes the final shade to the framebuffer.
func (g *GPU) emitPixel(bgColor uint8) {
	screenX := g.pixelCounter
	position := g.line*FramebufferWidth + screenX

	finalColor := bgColor
	paletteAddr := addr.BGP

	if obj, ok := g.objPixels[screenX]; ok {
		if obj.aboveBG || bgColor == 0 {
			finalColor = obj.color
			paletteAddr = obj.paletteAddr
		}
	}

	palette := g.memory.Read(paletteAddr)
	color := (palette >> (finalColor * 2)) & 0x03
	g.framebuffer.buffer[position] = uint32(ByteToColor(color))
	g.bgPixelBuffer[position] = bgColor

	g.pixelCounter++
}
