package host

import "sync"

// Font size bounds, in points.
const (
	MinFontSize   = 4
	MaxFontSize   = 256
	fontSizeStep  = 2
	fontSizeUnset = -1
)

// Display is the front end's view state that outlives a single attach.
// It is owned by the host so every front end started in the same process
// shares one value.
type Display struct {
	mu       sync.Mutex
	fontSize int
}

func newDisplay() *Display {
	return &Display{fontSize: fontSizeUnset}
}

// InitFontSize sets the font size to def, rounded down to an even number,
// unless a size is already set. It returns the current size.
func (d *Display) InitFontSize(def int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fontSize == fontSizeUnset {
		d.fontSize = def - def%2
	}
	d.fontSize = clampFontSize(d.fontSize)
	return d.fontSize
}

// ChangeFontSize grows or shrinks the font by one step and returns the new size.
func (d *Display) ChangeFontSize(increase bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fontSize == fontSizeUnset {
		d.fontSize = MinFontSize
	}
	if increase {
		d.fontSize += fontSizeStep
	} else {
		d.fontSize -= fontSizeStep
	}
	d.fontSize = clampFontSize(d.fontSize)
	return d.fontSize
}

// ResetFontSize forgets the current size so the next InitFontSize applies its default.
func (d *Display) ResetFontSize() {
	d.mu.Lock()
	d.fontSize = fontSizeUnset
	d.mu.Unlock()
}

// FontSize returns the current size, or -1 when unset.
func (d *Display) FontSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fontSize
}

func clampFontSize(size int) int {
	return max(MinFontSize, min(size, MaxFontSize))
}
