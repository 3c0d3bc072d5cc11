package textlayout

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// Draw renders the laid out lines onto a copy of dst and returns it.
func Draw(dst image.Image, res *Result, col color.Color) image.Image {
	dc := gg.NewContextForImage(dst)
	dc.SetFontFace(res.face)
	dc.SetColor(col)
	for _, l := range res.Lines {
		dc.DrawString(l.Text, float64(l.X), float64(l.Y+res.Ascent))
	}
	return dc.Image()
}
