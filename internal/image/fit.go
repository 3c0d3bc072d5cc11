package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	// ErrDecode is returned when input bytes are not a decodable raster image.
	ErrDecode = errors.New("image decode failed")
	// ErrInvalidGeometry is returned for target rectangles without area.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// DefaultBlurRadius is the backdrop blur used by ScaleAndPad at 1080px wide templates.
const DefaultBlurRadius = 80.0

// blurDownscale is the factor the backdrop is shrunk by before blurring.
const blurDownscale = 8

// Region is a rectangle on the canvas.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Region) Point() image.Point { return image.Pt(r.X, r.Y) }

func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// Policy selects how a photo is fitted into its region.
type Policy int

const (
	// Stretch resizes to the region ignoring aspect ratio.
	Stretch Policy = iota
	// Cover scales to fill the region and crops the overflow around the center.
	Cover
	// ScaleAndPad scales to the region height and fills any horizontal gap
	// with a blurred backdrop.
	ScaleAndPad
)

func (p Policy) String() string {
	switch p {
	case Stretch:
		return "stretch"
	case Cover:
		return "cover"
	case ScaleAndPad:
		return "pad"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts "stretch", "cover" and "pad".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stretch":
		return Stretch, nil
	case "cover", "fill", "crop":
		return Cover, nil
	case "pad", "scale-and-pad", "blur":
		return ScaleAndPad, nil
	}
	return 0, fmt.Errorf("unknown fit policy %q", s)
}

// FitPhotoBytes decodes src (and pad when given) and fits it into region.
func FitPhotoBytes(src []byte, region Region, policy Policy, pad []byte, blurRadius float64) (*image.NRGBA, error) {
	if region.Empty() {
		return nil, fmt.Errorf("%w: region %s", ErrInvalidGeometry, region)
	}
	img, err := DecodeImage(src)
	if err != nil {
		return nil, err
	}
	var padImg image.Image
	if len(pad) > 0 {
		if padImg, err = DecodeImage(pad); err != nil {
			return nil, err
		}
	}
	return FitPhoto(img, region, policy, padImg, blurRadius)
}

// FitPhoto returns a new image of exactly region.Width x region.Height built
// from src under policy. pad is only consulted by ScaleAndPad when the scaled
// photo is narrower than the region; a nil pad falls back to src itself.
func FitPhoto(src image.Image, region Region, policy Policy, pad image.Image, blurRadius float64) (*image.NRGBA, error) {
	if region.Empty() {
		return nil, fmt.Errorf("%w: region %s", ErrInvalidGeometry, region)
	}
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrDecode)
	}
	w, h := region.Width, region.Height

	switch policy {
	case Stretch:
		return imaging.Resize(src, w, h, imaging.Lanczos), nil
	case Cover:
		return cover(src, w, h), nil
	case ScaleAndPad:
		return scaleAndPad(src, w, h, pad, blurRadius), nil
	}
	return nil, fmt.Errorf("unknown fit policy %v", policy)
}

func cover(src image.Image, w, h int) *image.NRGBA {
	b := src.Bounds()
	sw, sh := coverSize(b.Dx(), b.Dy(), w, h)
	scaled := imaging.Resize(src, sw, sh, imaging.Lanczos)
	return imaging.Crop(scaled, centerCrop(sw, sh, w, h))
}

func scaleAndPad(src image.Image, w, h int, pad image.Image, blurRadius float64) *image.NRGBA {
	b := src.Bounds()
	newW := scaledWidth(b.Dx(), b.Dy(), h)
	scaled := imaging.Resize(src, newW, h, imaging.Lanczos)
	if newW >= w {
		return imaging.Crop(scaled, centerCrop(newW, h, w, h))
	}

	if pad == nil {
		pad = src
	}
	backdrop := blurredBackdrop(pad, w, h, blurRadius)
	return imaging.Overlay(backdrop, scaled, image.Pt((w-newW)/2, 0), 1.0)
}

// blurredBackdrop cover-fits pad into w x h and blurs it. The blur runs on a
// copy shrunk by blurDownscale with the radius scaled to match.
func blurredBackdrop(pad image.Image, w, h int, radius float64) *image.NRGBA {
	if radius <= 0 {
		return cover(pad, w, h)
	}
	sw, sh := max(1, w/blurDownscale), max(1, h/blurDownscale)
	small := imaging.Blur(cover(pad, sw, sh), radius/blurDownscale)
	return imaging.Resize(small, w, h, imaging.Linear)
}

// scaledWidth is the width of a srcW x srcH image scaled to height h.
func scaledWidth(srcW, srcH, h int) int {
	return max(1, int(math.Round(float64(h)*float64(srcW)/float64(srcH))))
}

// coverSize is the smallest uniform scale of srcW x srcH covering w x h.
func coverSize(srcW, srcH, w, h int) (int, int) {
	scale := math.Max(float64(w)/float64(srcW), float64(h)/float64(srcH))
	sw := int(math.Ceil(float64(srcW)*scale - 1e-6))
	sh := int(math.Ceil(float64(srcH)*scale - 1e-6))
	return max(sw, w), max(sh, h)
}

// centerCrop is the w x h rectangle centered in an sw x sh image.
func centerCrop(sw, sh, w, h int) image.Rectangle {
	x := (sw - w) / 2
	y := (sh - h) / 2
	return image.Rect(x, y, x+w, y+h)
}
