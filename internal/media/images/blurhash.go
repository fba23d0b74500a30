package images

import (
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

// blurHashEdge bounds the longer side of the thumbnail hashed. The hash only
// keeps a handful of frequency components, so larger inputs change nothing.
const blurHashEdge = 64

// ComputeBlurHash returns the BlurHash placeholder of img. Component counts
// follow the aspect ratio so panoramas and tall screenshots keep their shape.
func ComputeBlurHash(img image.Image) (string, error) {
	b := img.Bounds()
	if b.Empty() {
		return "", fmt.Errorf("encode blurhash: empty image")
	}
	x, y := blurHashComponents(b.Dx(), b.Dy())
	hash, err := blurhash.Encode(x, y, resizeForBlurHash(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// blurHashComponents picks 4 components along the longer side and 3 along
// the shorter one, dropping to 2 for ratios beyond 2:1.
func blurHashComponents(w, h int) (x, y int) {
	x, y = 4, 3
	if h > w {
		x, y = 3, 4
	}
	if w >= 2*h {
		y = 2
	}
	if h >= 2*w {
		x = 2
	}
	return x, y
}

// resizeForBlurHash scales img down so its longer side is blurHashEdge.
// Images already that small are returned unchanged.
func resizeForBlurHash(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= blurHashEdge && h <= blurHashEdge {
		return img
	}

	dw, dh := blurHashEdge, blurHashEdge
	if w > h {
		dh = max(1, h*blurHashEdge/w)
	} else {
		dw = max(1, w*blurHashEdge/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
