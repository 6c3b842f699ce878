package vision

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"math/bits"
	"net/http"

	"github.com/chai2010/webp"
	"github.com/desertthunder/discx/internal/shared"
	"github.com/disintegration/imaging"
)

// Fingerprinter reduces a photo to a comparable hash.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, image []byte) ([]byte, error)
}

const (
	hashWidth  = 9
	hashHeight = 8
)

// DHasher computes 64-bit difference hashes: the photo is shrunk to 9x8 grayscale and each
// bit records whether a pixel is brighter than its right-hand neighbor.
type DHasher struct{}

// Fingerprint decodes a JPEG, PNG, GIF, BMP, TIFF or WebP image and returns its 8-byte hash.
func (DHasher) Fingerprint(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	return dhash(img), nil
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", shared.ErrParsing)
	}

	var (
		img image.Image
		err error
	)
	switch http.DetectContentType(data) {
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", shared.ErrParsing, err)
	}
	return img, nil
}

func dhash(img image.Image) []byte {
	small := imaging.Grayscale(imaging.Resize(img, hashWidth, hashHeight, imaging.Box))

	var hash uint64
	for y := range hashHeight {
		for x := range hashWidth - 1 {
			hash <<= 1
			if small.NRGBAAt(x, y).R > small.NRGBAAt(x+1, y).R {
				hash |= 1
			}
		}
	}

	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, hash)
	return out
}

// Distance is the number of differing bits between two hashes.
// Hashes of different lengths are infinitely far apart.
func Distance(a, b []byte) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	d := 0
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return float64(d)
}
