package video

// spritePriorityBuffer resolves, ahead of the dot-by-dot mixer, which sprite
// owns each screen column on the current line. DMG priority rule: the sprite
// with the smaller X coordinate wins; ties are broken by OAM index, which
// falls out naturally here since scanSpritesForLine claims columns in
// ascending OAM order and a later claim at an equal X never displaces an
// earlier one.
type spritePriorityBuffer struct {
	owner  [FramebufferWidth]int
	ownerX [FramebufferWidth]int
}

func newSpritePriorityBuffer() *spritePriorityBuffer {
	b := &spritePriorityBuffer{}
	b.Clear()
	return b
}

// Clear resets every column to unclaimed, ahead of a new scanline's sprite scan.
func (b *spritePriorityBuffer) Clear() {
	for i := range b.owner {
		b.owner[i] = -1
		b.ownerX[i] = 0
	}
}

// TryClaimPixel claims screenX for spriteIdx (whose OAM X coordinate is
// spriteX) unless a sprite with a smaller or equal X already owns it.
func (b *spritePriorityBuffer) TryClaimPixel(screenX, spriteIdx, spriteX int) {
	if screenX < 0 || screenX >= FramebufferWidth {
		return
	}
	if b.owner[screenX] == -1 || spriteX < b.ownerX[screenX] {
		b.owner[screenX] = spriteIdx
		b.ownerX[screenX] = spriteX
	}
}

// GetOwner returns the OAM index owning screenX, or -1 if unclaimed.
func (b *spritePriorityBuffer) GetOwner(screenX int) int {
	if screenX < 0 || screenX >= FramebufferWidth {
		return -1
	}
	return b.owner[screenX]
}
