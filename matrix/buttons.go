package matrix

// Mapping binds a logical button id to one matrix cell.
type Mapping struct {
	ID  int `yaml:"id" json:"id"`
	Row int `yaml:"row" json:"row"`
	Col int `yaml:"col" json:"col"`
}

func (m Mapping) valid(rows, cols, buttons int) bool {
	return m.ID >= 0 && m.ID < buttons &&
		m.Row >= 0 && m.Row < rows &&
		m.Col >= 0 && m.Col < cols
}

// button is the per-id edge and repeat bookkeeping.
type button struct {
	stable bool
	prev   bool

	pressStart    uint32
	repeatEnabled bool
	repeatCount   uint16
	nextRepeatAt  uint32
}

// aggregate projects the debounced grid onto the button table. Buttons
// without a valid mapping entry stay released.
func aggregate(btns []button, deb *debouncer, mapping []Mapping, rows, cols int) {
	for i := range btns {
		btns[i].stable = false
	}
	for _, m := range mapping {
		if !m.valid(rows, cols, len(btns)) {
			continue
		}
		btns[m.ID].stable = deb.stable(m.Row, m.Col)
	}
}
