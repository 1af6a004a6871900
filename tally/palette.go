package tally

// DefaultEmojis is the palette every ballot picks from.
var DefaultEmojis = []string{"❤️", "🤥", "🤮", "🐍", "👜", "💔", "🪴", "🎯"}

// Palette is the ordered set of allowed emojis.
type Palette struct {
	emojis []string
	index  map[string]struct{}
}

// NewPalette keeps the given order and drops blanks and duplicates.
func NewPalette(emojis []string) Palette {
	p := Palette{index: make(map[string]struct{}, len(emojis))}
	for _, e := range emojis {
		if e == "" {
			continue
		}
		if _, dup := p.index[e]; dup {
			continue
		}
		p.index[e] = struct{}{}
		p.emojis = append(p.emojis, e)
	}
	return p
}

// Emojis returns a copy in palette order.
func (p Palette) Emojis() []string {
	out := make([]string, len(p.emojis))
	copy(out, p.emojis)
	return out
}

// Contains reports whether e belongs to the palette.
func (p Palette) Contains(e string) bool {
	_, ok := p.index[e]
	return ok
}
