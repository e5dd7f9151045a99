package matrix

// Grid is one sample of every matrix cell, indexed [row][col].
type Grid [MaxRows][MaxCols]bool

// cell is the debounce state of a single matrix intersection.
type cell struct {
	stable     bool
	lastRaw    bool
	lastChange uint32
}

// update feeds one raw sample taken at now. The stable state follows the
// raw sample only after it has stayed unchanged for at least window ms;
// any transition restarts the wait.
func (c *cell) update(raw bool, now, window uint32) bool {
	if raw != c.lastRaw {
		c.lastRaw = raw
		c.lastChange = now
	}
	if elapsed(now, c.lastChange) >= window {
		c.stable = raw
	}
	return c.stable
}

// debouncer is the cell grid of one matrix.
type debouncer struct {
	cells [MaxRows][MaxCols]cell
}

func (d *debouncer) reset() {
	d.cells = [MaxRows][MaxCols]cell{}
}

// update debounces the first rows×cols cells of raw.
func (d *debouncer) update(raw *Grid, rows, cols int, now, window uint32) {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			d.cells[r][c].update(raw[r][c], now, window)
		}
	}
}

func (d *debouncer) stable(row, col int) bool {
	return d.cells[row][col].stable
}
