package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/youruser/cardapp/internal/textlayout"
)

// ErrTemplate is returned when the background template cannot be loaded.
var ErrTemplate = errors.New("template unavailable")

// Template describes a card design: the background, where the photo goes and
// how it is fitted, and where and how the title is set.
type Template struct {
	BackgroundPath string
	Photo          Region
	Policy         Policy
	BlurRadius     float64

	Text      textlayout.Box
	TextColor color.Color
	FontPath  string
	Layout    textlayout.Options

	// QR is where a QR code for the card link goes; empty disables it.
	QR Region
}

// Card is one request's input.
type Card struct {
	Photo []byte
	Title string
	Link  string
}

// Render loads the background from disk and composes card onto it.
func (t Template) Render(card Card) (image.Image, error) {
	bg, err := imaging.Open(t.BackgroundPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	photo, err := DecodeImage(card.Photo)
	if err != nil {
		return nil, err
	}
	return t.Compose(bg, photo, card.Title, card.Link)
}

// Compose builds the card: fitted photo pasted at the photo region, title
// laid out and drawn in the text box, optional QR badge.
func (t Template) Compose(bg, photo image.Image, title, link string) (image.Image, error) {
	res, err := textlayout.Layout(title, t.Text, textlayout.NewFontLoader(t.FontPath), t.Layout)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	fitted, err := FitPhoto(photo, t.Photo, t.Policy, bg, t.BlurRadius)
	if err != nil {
		return nil, err
	}
	canvas := imaging.Overlay(bg, fitted, t.Photo.Point(), 1.0)

	col := t.TextColor
	if col == nil {
		col = color.White
	}
	out := textlayout.Draw(canvas, res, col)

	logrus.WithFields(logrus.Fields{
		"font_size": res.FontSize,
		"lines":     len(res.Lines),
		"overflow":  res.Overflow,
		"policy":    t.Policy.String(),
	}).Debug("Composed card")

	if link == "" || t.QR.Empty() {
		return out, nil
	}
	qr, err := GenerateQRImage(link, max(t.QR.Width, t.QR.Height))
	if err != nil {
		logrus.WithError(err).WithField("link", link).Warn("Skipping QR badge")
		return out, nil
	}
	qr = imaging.Resize(qr, t.QR.Width, t.QR.Height, imaging.NearestNeighbor)
	return imaging.Paste(out, qr, t.QR.Point()), nil
}
