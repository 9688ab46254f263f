package video

import "github.com/kstenerud/dmgboy/dmg/bit"

// TileRow holds the two bit-plane bytes DMG VRAM uses to encode one 8-pixel
// row of a tile: each pixel's 2-bit color index comes from the matching bit
// of Low (color bit 0) and High (color bit 1), bit 7 being the leftmost
// pixel. https://gbdev.io/pandocs/Tile_Data.html
type TileRow struct {
	Low  byte
	High byte
}

// colorAt reads the 2-bit color index out of bit position bitIndex of both
// planes, the shared arithmetic behind both pixel accessors below.
func (t TileRow) colorAt(bitIndex uint8) int {
	color := 0
	if bit.IsSet(bitIndex, t.Low) {
		color |= 1
	}
	if bit.IsSet(bitIndex, t.High) {
		color |= 2
	}
	return color
}

// GetPixel returns the color index (0-3) of pixel pixelX (0 = leftmost).
func (t TileRow) GetPixel(pixelX int) int {
	return t.colorAt(uint8(7 - pixelX))
}

// GetPixelFlipped is GetPixel with the row mirrored horizontally, for
// sprites drawn with the OAM flip-X attribute set.
func (t TileRow) GetPixelFlipped(pixelX int) int {
	return t.colorAt(uint8(pixelX))
}

// Tile is one 8x8 pattern as stored in VRAM: 8 rows, 2 bytes each.
type Tile struct {
	Index int // VRAM tile number (0-383), unset unless fetched via FetchTileWithIndex
	Rows  [8]TileRow
}

// GetPixel returns the color index at (x, y), or 0 if out of the 8x8 range.
func (t *Tile) GetPixel(x, y int) int {
	if y < 0 || y >= 8 || x < 0 || x >= 8 {
		return 0
	}
	return t.Rows[y].GetPixel(x)
}

// Pixels renders the whole tile as an 8x8 grid of color indices, for the
// debug tile-viewer and VRAM browser.
func (t *Tile) Pixels() [8][8]GBColor {
	var grid [8][8]GBColor
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			grid[y][x] = GBColor(t.Rows[y].GetPixel(x))
		}
	}
	return grid
}

// TileReader is the minimal memory access FetchTile needs.
type TileReader interface {
	Read(addr uint16) byte
}

// FetchTile reads the 16 bytes at baseAddr as a complete tile. The Index
// field is left zero; use FetchTileWithIndex when the caller needs it.
func FetchTile(mem TileReader, baseAddr uint16) Tile {
	var tile Tile
	for row := 0; row < 8; row++ {
		rowAddr := baseAddr + uint16(row*2)
		tile.Rows[row] = TileRow{
			Low:  mem.Read(rowAddr),
			High: mem.Read(rowAddr + 1),
		}
	}
	return tile
}

// FetchTileWithIndex is FetchTile plus stamping the tile's VRAM index, for
// callers (the debug tile browser) that need to report which tile it was.
func FetchTileWithIndex(mem TileReader, baseAddr uint16, index int) Tile {
	tile := FetchTile(mem, baseAddr)
	tile.Index = index
	return tile
}

// RenderTileToBuffer writes tile's 8x8 pixels into buf, a caller-owned pixel
// buffer stride pixels wide, at (offsetX, offsetY), mapping each 0-3 color
// index through palette. Pixels that would land outside buf are skipped.
func RenderTileToBuffer(tile *Tile, buf []uint32, offsetX, offsetY, stride int, palette []uint32) {
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			color := tile.GetPixel(x, y)
			if color < 0 || color >= len(palette) {
				continue
			}
			px := offsetX + x
			py := offsetY + y
			idx := py*stride + px
			if idx < 0 || idx >= len(buf) {
				continue
			}
			buf[idx] = palette[color]
		}
	}
}
