package Heat2D

import "math"

const (
	Noise         = 6.4 / 256 // Noise floor added to the neighbour average, 6.4 units of 8 bit resolution
	Threshold     = 0.5 / 256 // Mean adjustment per cell below which a run has converged
	MaxIterations = 5000
)

/*
	RelaxPass updates one colour of the checkerboard over rows [rowMin,rowMax).
	In row i (global index i+RowOffset) the first visited column is
	1 + ((i+1) XOR parity) & 1, then every second column. Cells of one colour
	only have neighbours of the other colour, and every write lands in place
	so the second pass sees the values produced by the first.

	For each cell:
		candidate = max(source, average of the 4 neighbours + noise)
		new       = old + conduction * (candidate - old)
	The summed absolute change is returned.
*/
func (g *Grid) RelaxPass(rowMin, rowMax, parity int, noise float64) (deltaSum float64) {
	var (
		W = g.Width
		c = g.Cells
	)
	for i := rowMin; i < rowMax; i++ {
		start := ((i + g.RowOffset + 1) ^ parity) & 1
		for ind := i*W + 1 + start; ind < (i+1)*W-1; ind += 2 {
			cell := &c[ind]
			avg := (c[ind-W].Temperature +
				c[ind-1].Temperature +
				c[ind+1].Temperature +
				c[ind+W].Temperature) / 4
			candidate := math.Max(cell.Source, avg+noise)
			delta := cell.Conduction * (candidate - cell.Temperature)
			cell.Temperature += delta
			deltaSum += math.Abs(delta)
		}
	}
	return
}

// Step is one full sweep, the even pass followed by the odd pass
func (g *Grid) Step(rowMin, rowMax int, noise float64) (deltaSum float64) {
	deltaSum = g.RelaxPass(rowMin, rowMax, 0, noise)
	deltaSum += g.RelaxPass(rowMin, rowMax, 1, noise)
	return
}

// Metric is the mean absolute change per cell of the whole grid
func Metric(deltaSum float64, cells int) float64 {
	return deltaSum / float64(cells)
}
