// Package isbnscan reads the ISBN printed as an EAN-13 barcode on the back
// of a book.
package isbnscan

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

var (
	ErrNoBarcode = errors.New("no EAN-13 barcode found")
	ErrNotISBN   = errors.New("barcode is not an ISBN")
)

// Decode reads a PNG, JPEG or GIF image and returns the ISBN-13 in it.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return DecodeImage(img)
}

// DecodeImage returns the ISBN-13 of the first EAN-13 barcode in img. Only
// Bookland codes (978 and 979 prefixes) are ISBNs.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := oned.NewEAN13Reader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoBarcode, err)
	}

	code := res.GetText()
	if !strings.HasPrefix(code, "978") && !strings.HasPrefix(code, "979") {
		return "", fmt.Errorf("%w: %s", ErrNotISBN, code)
	}
	return code, nil
}
