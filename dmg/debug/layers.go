package debug

import "github.com/kstenerud/dmgboy/dmg/video"

// BuildRenderLayers composites background, window and sprite visualizer
// snapshots into separate pixel buffers for the debug layer-inspector panel,
// applying each layer's own palette the way the PPU's mixer would.
func BuildRenderLayers(bgVis *BackgroundVisualizer, spriteVis *SpriteVisualizer, paletteVis *PaletteVisualizer) *video.RenderLayers {
	layers := video.NewRenderLayers()
	layers.Enabled = true

	if bgVis != nil && paletteVis != nil {
		renderTilemapLayer(layers.Background, bgVis.Tilemap, bgVis.TileData, paletteVis.BGP)
		renderTilemapLayer(layers.Window, bgVis.WindowTilemap, bgVis.TileData, paletteVis.BGP)
	}

	if spriteVis != nil && paletteVis != nil {
		renderSpriteLayer(layers.Sprites, spriteVis, paletteVis)
	}

	return layers
}

func renderTilemapLayer(dst *video.LayerFramebuffer, tilemap [TilemapHeight][TilemapWidth]uint8, tiles []video.Tile, palette PaletteInfo) {
	if len(tiles) == 0 {
		return
	}
	for row := 0; row < TilemapHeight; row++ {
		for col := 0; col < TilemapWidth; col++ {
			tileIndex := tilemap[row][col]
			if int(tileIndex) >= len(tiles) {
				continue
			}
			tile := tiles[tileIndex]
			for ty := 0; ty < 8; ty++ {
				for tx := 0; tx < 8; tx++ {
					color := ApplyPalette(video.GBColor(tile.GetPixel(tx, ty)), palette)
					x := col*8 + tx
					y := row*8 + ty
					dst.Buffer[y*dst.Width+x] = uint32(color)
				}
			}
		}
	}
}

// renderSpriteLayer draws each on-screen sprite into screen-space coordinates,
// skipping color index 0 since it's transparent for sprites.
func renderSpriteLayer(dst *video.LayerFramebuffer, spriteVis *SpriteVisualizer, paletteVis *PaletteVisualizer) {
	for _, sprite := range spriteVis.Sprites {
		if !sprite.OnScreen {
			continue
		}
		palette := paletteVis.OBP0
		if sprite.Info.Sprite.PaletteOBP1 {
			palette = paletteVis.OBP1
		}
		tile := sprite.TileData
		for ty := 0; ty < 8; ty++ {
			for tx := 0; tx < 8; tx++ {
				px, py := tx, ty
				if sprite.Info.Sprite.FlipX {
					px = 7 - tx
				}
				if sprite.Info.Sprite.FlipY {
					py = 7 - ty
				}
				colorIdx := tile.GetPixel(px, py)
				if colorIdx == 0 {
					continue
				}
				x := sprite.X + tx
				y := sprite.Y + ty
				if x < 0 || x >= dst.Width || y < 0 || y >= dst.Height {
					continue
				}
				dst.Buffer[y*dst.Width+x] = uint32(ApplyPalette(video.GBColor(colorIdx), palette))
			}
		}
	}
}
