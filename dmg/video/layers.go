package video

// LayerFramebuffer is one rendering layer's pixel buffer, in the same RGBA
// packed-uint32 format as the main FrameBuffer.
type LayerFramebuffer struct {
	Buffer []uint32
	Width  int
	Height int
}

func newLayerFramebuffer(width, height int) *LayerFramebuffer {
	return &LayerFramebuffer{
		Buffer: make([]uint32, width*height),
		Width:  width,
		Height: height,
	}
}

func (l *LayerFramebuffer) clear() {
	for i := range l.Buffer {
		l.Buffer[i] = 0
	}
}

// RenderLayers splits a frame into its background/window/sprite
// contributions, for the debug layer-inspector view rather than the normal
// composited output.
type RenderLayers struct {
	Background *LayerFramebuffer // full 256x256 tilemap
	Window     *LayerFramebuffer // full 256x256 tilemap
	Sprites    *LayerFramebuffer // 160x144, screen-space
	Enabled    bool
}

// NewRenderLayers allocates an empty, disabled layer set.
func NewRenderLayers() *RenderLayers {
	return &RenderLayers{
		Background: newLayerFramebuffer(256, 256),
		Window:     newLayerFramebuffer(256, 256),
		Sprites:    newLayerFramebuffer(FramebufferWidth, FramebufferHeight),
		Enabled:    false,
	}
}

// Clear resets every layer to transparent black; a no-op while disabled so
// callers can call it unconditionally each frame.
func (r *RenderLayers) Clear() {
	if !r.Enabled {
		return
	}
	r.Background.clear()
	r.Window.clear()
	r.Sprites.clear()
}
