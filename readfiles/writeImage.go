package readfiles

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/notargets/gorelax/types"
)

type encoder func(w io.Writer, img image.Image) error

func encoderFor(filename string) (enc encoder, err error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".png", "":
		enc = png.Encode
	case ".bmp":
		enc = bmp.Encode
	case ".tif", ".tiff":
		enc = func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		err = fmt.Errorf("no encoder for extension %q", ext)
	}
	return
}

// WriteImage encodes img by the file extension: .png (also the default), .bmp, .tif or .tiff
func WriteImage(filename string, img image.Image) (err error) {
	var (
		file *os.File
		enc  encoder
	)
	defer func() {
		if err != nil {
			err = &types.IOError{Op: types.OpStore, Filename: filename, Err: err}
		}
	}()
	if enc, err = encoderFor(filename); err != nil {
		return
	}
	if file, err = os.Create(filename); err != nil {
		return
	}
	w := bufio.NewWriter(file)
	if err = enc(w, img); err == nil {
		err = w.Flush()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return
}
