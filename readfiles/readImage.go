package readfiles

import (
	"bufio"
	"image"
	"image/color"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/notargets/gorelax/model_problems/Heat2D"
	"github.com/notargets/gorelax/types"
)

// ImageChannels holds the 8 bit colour channels of a seed image, row major
type ImageChannels struct {
	Width, Height    int
	Red, Green, Blue []float64
}

func ReadImage(filename string) (ic *ImageChannels, err error) {
	var (
		file *os.File
		img  image.Image
	)
	if file, err = os.Open(filename); err != nil {
		return nil, &types.IOError{Op: types.OpLoad, Filename: filename, Err: err}
	}
	defer file.Close()
	if img, _, err = image.Decode(bufio.NewReader(file)); err != nil {
		return nil, &types.FormatError{Filename: filename, Msg: err.Error()}
	}
	b := img.Bounds()
	W, H := b.Dx(), b.Dy()
	ic = &ImageChannels{
		Width:  W,
		Height: H,
		Red:    make([]float64, W*H),
		Green:  make([]float64, W*H),
		Blue:   make([]float64, W*H),
	}
	for i := 0; i < H; i++ {
		for j := 0; j < W; j++ {
			// Straight alpha, so transparent pixels keep their colour
			c := color.NRGBAModel.Convert(img.At(b.Min.X+j, b.Min.Y+i)).(color.NRGBA)
			ind := i*W + j
			ic.Red[ind] = float64(c.R)
			ic.Green[ind] = float64(c.G)
			ic.Blue[ind] = float64(c.B)
		}
	}
	return
}

/*
LoadGrid seeds a grid from an image:

	red   -> heat source
	green -> initial temperature
	blue  -> conduction, blue/256
*/
func LoadGrid(filename string) (g *Heat2D.Grid, err error) {
	var ic *ImageChannels
	if ic, err = ReadImage(filename); err != nil {
		return
	}
	conduction := make([]float64, len(ic.Blue))
	for i, b := range ic.Blue {
		conduction[i] = b / 256
	}
	return Heat2D.NewGridFromChannels(ic.Width, ic.Height, ic.Red, ic.Green, conduction)
}
