package chartconfig

// Palette is an immutable, ordered list of series colours.
type Palette struct {
	colors []string
}

// NewPalette copies colors into a palette. An empty list yields the
// default palette.
func NewPalette(colors ...string) Palette {
	if len(colors) == 0 {
		return CoralReef()
	}
	c := make([]string, len(colors))
	copy(c, colors)
	return Palette{colors: c}
}

// CoralReef is the stock twelve-colour palette.
func CoralReef() Palette {
	return Palette{colors: []string{
		"#1ABC9C", "#F1948A", "#E67E22", "#16A085", "#F39C12", "#D35400",
		"#FAD7B0", "#45B7D1", "#96CEB4", "#E08E79", "#3498DB", "#F8B500",
	}}
}

// Color returns the i-th colour, cycling through the palette.
func (p Palette) Color(i int) string {
	if len(p.colors) == 0 {
		return CoralReef().Color(i)
	}
	if i < 0 {
		i = -i
	}
	return p.colors[i%len(p.colors)]
}

// Colors returns a copy of the palette's colours.
func (p Palette) Colors() []string {
	out := make([]string, len(p.colors))
	copy(out, p.colors)
	return out
}

// Len returns the number of colours.
func (p Palette) Len() int { return len(p.colors) }

// Heat ramps used by visual maps, warm to teal.
var (
	heatmapRamp = []string{"#FAD7B0", "#F1948A", "#E67E22", "#D35400", "#16A085", "#1ABC9C"}
	geoRamp     = []string{"#FAD7B0", "#F1948A", "#E67E22", "#16A085", "#1ABC9C"}
)
