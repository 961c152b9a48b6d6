package Heat2D

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gorelax/types"
)

/*
	Grid is a dense Width x Height array of cells stored row major. The
	outermost ring of cells is a fixed boundary: relaxation reads it and never
	writes it.

	A worker slab is also a Grid, holding the worker's owned rows plus one ghost
	row above and one below. RowOffset is then the global index of local row 0,
	which keeps the checkerboard colouring aligned with the full grid.
*/
type Grid struct {
	Width, Height int
	RowOffset     int
	Cells         []types.Cell
}

func NewGrid(width, height int, cells []types.Cell) (g *Grid, err error) {
	if width < 3 || height < 3 {
		return nil, &types.DimensionError{Width: width, Height: height}
	}
	switch {
	case cells == nil:
		cells = make([]types.Cell, width*height)
	case len(cells) != width*height:
		return nil, fmt.Errorf("have %d cells for a %dx%d grid", len(cells), width, height)
	}
	for ind, c := range cells {
		if c.Source < 0 {
			return nil, fmt.Errorf("cell (%d,%d): negative source %g", ind/width, ind%width, c.Source)
		}
		if c.Conduction < 0 || c.Conduction > 1 {
			return nil, fmt.Errorf("cell (%d,%d): conduction %g outside [0,1]",
				ind/width, ind%width, c.Conduction)
		}
	}
	g = &Grid{
		Width:  width,
		Height: height,
		Cells:  cells,
	}
	return
}

// NewGridFromChannels builds a grid from three per-cell channels that have
// already been mapped to source, temperature and conduction.
func NewGridFromChannels(width, height int, source, temperature, conduction []float64) (g *Grid, err error) {
	if width < 3 || height < 3 {
		return nil, &types.DimensionError{Width: width, Height: height}
	}
	N := width * height
	if len(source) != N || len(temperature) != N || len(conduction) != N {
		return nil, fmt.Errorf("channel lengths %d, %d, %d do not match a %dx%d grid",
			len(source), len(temperature), len(conduction), width, height)
	}
	cells := make([]types.Cell, N)
	for i := range cells {
		cells[i] = types.Cell{
			Source:      source[i],
			Temperature: temperature[i],
			Conduction:  conduction[i],
		}
	}
	return NewGrid(width, height, cells)
}

func (g *Grid) index(row, col int) int {
	return row*g.Width + col
}

func (g *Grid) inside(row, col int) bool {
	return row >= 0 && row < g.Height && col >= 0 && col < g.Width
}

func (g *Grid) writable(row, col int) bool {
	return row >= 1 && row <= g.Height-2 && col >= 1 && col <= g.Width-2
}

func (g *Grid) At(row, col int) (c types.Cell, err error) {
	if !g.inside(row, col) {
		err = &types.IndexError{Row: row, Col: col, Width: g.Width, Height: g.Height}
		return
	}
	c = g.Cells[g.index(row, col)]
	return
}

func (g *Grid) Temperature(row, col int) (t float64, err error) {
	var c types.Cell
	if c, err = g.At(row, col); err != nil {
		return
	}
	t = c.Temperature
	return
}

// SetTemperature writes one interior cell, border cells are read only
func (g *Grid) SetTemperature(row, col int, value float64) error {
	if !g.writable(row, col) {
		return &types.IndexError{Row: row, Col: col, Width: g.Width, Height: g.Height, Write: true}
	}
	g.Cells[g.index(row, col)].Temperature = value
	return nil
}

// RowTemperatures copies the temperatures of one row into dst
func (g *Grid) RowTemperatures(row int, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, g.Width)
	}
	for j, c := range g.Cells[g.index(row, 0):g.index(row+1, 0)] {
		dst[j] = c.Temperature
	}
	return dst
}

// SetRowTemperatures overwrites the temperatures of one row, ghost rows included
func (g *Grid) SetRowTemperatures(row int, src []float64) {
	cells := g.Cells[g.index(row, 0):g.index(row+1, 0)]
	for j := range cells {
		cells[j].Temperature = src[j]
	}
}

func (g *Grid) Temperatures() (temps []float64) {
	temps = make([]float64, len(g.Cells))
	for i, c := range g.Cells {
		temps[i] = c.Temperature
	}
	return
}

// TemperatureField returns a Height x Width snapshot of the temperatures
func (g *Grid) TemperatureField() *mat.Dense {
	return mat.NewDense(g.Height, g.Width, g.Temperatures())
}

func (g *Grid) MinMax() (tmin, tmax float64) {
	temps := g.Temperatures()
	return floats.Min(temps), floats.Max(temps)
}

func (g *Grid) Clone() (gc *Grid) {
	gc = &Grid{
		Width:     g.Width,
		Height:    g.Height,
		RowOffset: g.RowOffset,
		Cells:     make([]types.Cell, len(g.Cells)),
	}
	copy(gc.Cells, g.Cells)
	return
}

// Slab copies global rows [rowMin-1, rowMax+1) into a new grid with RowOffset set
func (g *Grid) Slab(rowMin, rowMax int) (s *Grid) {
	if rowMin < 1 || rowMax > g.Height-1 || rowMin >= rowMax {
		panic(fmt.Sprintf("slab rows [%d,%d) outside interior [1,%d)", rowMin, rowMax, g.Height-1))
	}
	s = &Grid{
		Width:     g.Width,
		Height:    rowMax - rowMin + 2,
		RowOffset: g.RowOffset + rowMin - 1,
	}
	s.Cells = make([]types.Cell, s.Width*s.Height)
	copy(s.Cells, g.Cells[g.index(rowMin-1, 0):g.index(rowMax+1, 0)])
	return
}
