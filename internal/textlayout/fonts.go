package textlayout

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// FontLoader produces faces of one font family at a requested point size.
type FontLoader interface {
	Face(size float64) (font.Face, error)
}

// OpenTypeLoader serves faces from a parsed TTF/OTF file.
type OpenTypeLoader struct {
	parsed   *opentype.Font
	path     string
	degraded bool
}

// NewFontLoader parses the font at path. A missing or unparsable file is not
// an error: the embedded Go Bold font is substituted and Degraded reports true.
// An empty path selects the embedded font directly.
func NewFontLoader(path string) *OpenTypeLoader {
	l := &OpenTypeLoader{path: path}
	if path != "" {
		parsed, err := parseFontFile(path)
		if err == nil {
			l.parsed = parsed
			return l
		}
		logrus.WithError(err).WithField("font", path).Warn("Font unavailable, using built-in default")
		l.degraded = true
	}

	parsed, err := opentype.Parse(gobold.TTF)
	if err != nil {
		// gobold ships with x/image; failing here means a broken build.
		panic(fmt.Errorf("parse embedded font: %w", err))
	}
	l.parsed = parsed
	return l
}

func parseFontFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(data)
}

// Degraded reports whether the requested font was replaced by the default.
func (l *OpenTypeLoader) Degraded() bool { return l.degraded }

func (l *OpenTypeLoader) Face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(l.parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face at %.1fpt: %w", size, err)
	}
	return face, nil
}
