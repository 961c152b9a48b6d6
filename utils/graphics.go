package utils

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/crazy3lf/colorconv"
	"gonum.org/v1/gonum/mat"
)

// Palette maps a normalized temperature in [0,1] to a colour
type Palette interface {
	Color(t float64) color.RGBA
}

type PaletteName string

const (
	Bezier PaletteName = "bezier"
	Hue    PaletteName = "hue"
	Gray   PaletteName = "gray"
)

func NewPalette(name string) (p Palette, err error) {
	switch PaletteName(strings.ToLower(name)) {
	case Bezier, "":
		p = BezierPalette{}
	case Hue:
		p, err = NewHuePalette(256)
	case Gray:
		p = GrayPalette{}
	default:
		err = fmt.Errorf("unknown palette %q, have %q, %q or %q", name, Bezier, Hue, Gray)
	}
	return
}

// Control points of the gradient: black, blue, magenta, red, yellow, white
var bezierControl = [6][3]float64{
	{0, 0, 0},
	{0, 0, 255},
	{255, 0, 255},
	{255, 0, 0},
	{255, 255, 0},
	{255, 255, 255},
}

// BezierPalette evaluates the Bezier curve through the control colours
type BezierPalette struct{}

func (BezierPalette) Color(t float64) color.RGBA {
	pts := bezierControl
	for iter := 1; iter < len(pts); iter++ {
		for i := 0; i < len(pts)-iter; i++ {
			for n := 0; n < 3; n++ {
				pts[i][n] += t * (pts[i+1][n] - pts[i][n])
			}
		}
	}
	return color.RGBA{R: uint8(pts[0][0]), G: uint8(pts[0][1]), B: uint8(pts[0][2]), A: 255}
}

// HuePalette runs from blue (cold) to red (hot) through a precomputed table
type HuePalette struct {
	table []color.RGBA
}

func NewHuePalette(size int) (hp *HuePalette, err error) {
	if size < 2 {
		return nil, fmt.Errorf("hue palette needs at least 2 entries, have %d", size)
	}
	hp = &HuePalette{table: make([]color.RGBA, size)}
	for i := range hp.table {
		hue := 240 * (1 - float64(i)/float64(size-1))
		var r, g, b uint8
		if r, g, b, err = colorconv.HSVToRGB(hue, 1, 1); err != nil {
			return nil, err
		}
		hp.table[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return
}

func (hp *HuePalette) Color(t float64) color.RGBA {
	return hp.table[int(clamp01(t)*float64(len(hp.table)-1))]
}

type GrayPalette struct{}

func (GrayPalette) Color(t float64) color.RGBA {
	v := uint8(clamp01(t) * 255)
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

func clamp01(t float64) float64 {
	return math.Min(1, math.Max(0, t))
}

// Normalize maps temp into [0,1] relative to [tmin,tmax]. A flat field maps to 0.
func Normalize(temp, tmin, tmax float64) float64 {
	if tmax <= tmin {
		return 0
	}
	return (temp - tmin) / (tmax - tmin)
}

// RenderField colours a Height x Width field, row 0 at the top of the image
func RenderField(field *mat.Dense, tmin, tmax float64, p Palette) (img *image.RGBA) {
	var (
		rows, cols = field.Dims()
	)
	img = image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			img.SetRGBA(j, i, p.Color(Normalize(field.At(i, j), tmin, tmax)))
		}
	}
	return
}

const asciiRamp = " .:-=+*#%@"

// PreviewASCII writes a down-sampled character rendering of field, cols
// characters wide. Terminal cells are about twice as tall as wide, so rows
// are sampled at twice the column stride.
func PreviewASCII(w io.Writer, field *mat.Dense, tmin, tmax float64, cols int) (err error) {
	var (
		rows, width = field.Dims()
	)
	if cols < 1 {
		return fmt.Errorf("preview width must be positive, have %d", cols)
	}
	if cols > width {
		cols = width
	}
	var (
		stride = float64(width) / float64(cols)
		nRows  = int(float64(rows) / (2 * stride))
		sb     strings.Builder
	)
	if nRows < 1 {
		nRows = 1
	}
	for r := 0; r < nRows; r++ {
		i := int(float64(r) * 2 * stride)
		if i >= rows {
			i = rows - 1
		}
		for c := 0; c < cols; c++ {
			j := int(float64(c) * stride)
			t := clamp01(Normalize(field.At(i, j), tmin, tmax))
			sb.WriteByte(asciiRamp[int(t*float64(len(asciiRamp)-1))])
		}
		sb.WriteByte('\n')
	}
	_, err = io.WriteString(w, sb.String())
	return
}
