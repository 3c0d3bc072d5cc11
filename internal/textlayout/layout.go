// Package textlayout fits a title into a fixed box: greedy word wrap, the
// largest font size that fits, and per-line centering.
package textlayout

import (
	"errors"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
)

// ErrEmptyTitle is returned when the title has no words.
var ErrEmptyTitle = errors.New("title is empty")

const (
	DefaultMaxFontSize = 100
	DefaultMinFontSize = 10
	DefaultMaxLines    = 4
	DefaultLineSpacing = 0.25
)

// referenceGlyphs gives the line height: one ascender and one descender.
const referenceGlyphs = "Ay"

// Box is the rectangle the title must be drawn in.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Options struct {
	MaxFontSize int
	MinFontSize int
	MaxLines    int
	// LineSpacing is the gap between lines as a fraction of the line height.
	LineSpacing float64
}

// DefaultOptions returns the settings used by the stock template.
func DefaultOptions() Options {
	return Options{
		MaxFontSize: DefaultMaxFontSize,
		MinFontSize: DefaultMinFontSize,
		MaxLines:    DefaultMaxLines,
		LineSpacing: DefaultLineSpacing,
	}
}

func (o Options) normalized() Options {
	if o.MinFontSize <= 0 {
		o.MinFontSize = DefaultMinFontSize
	}
	if o.MaxFontSize < o.MinFontSize {
		o.MaxFontSize = o.MinFontSize
	}
	if o.MaxLines <= 0 {
		o.MaxLines = DefaultMaxLines
	}
	if o.LineSpacing < 0 {
		o.LineSpacing = 0
	}
	return o
}

// Line is one wrapped line and the top-left corner it is drawn at.
type Line struct {
	Text  string `json:"text"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Width int    `json:"width"`
}

type Result struct {
	FontSize    int     `json:"font_size"`
	LineHeight  int     `json:"line_height"`
	Ascent      int     `json:"ascent"`
	TotalHeight float64 `json:"total_height"`
	Lines       []Line  `json:"lines"`
	// Overflow is set when even the minimum size did not fit the box.
	Overflow bool `json:"overflow"`

	face font.Face
}

// Face is the face the lines were measured with.
func (r *Result) Face() font.Face { return r.face }

// Texts returns the line strings in reading order.
func (r *Result) Texts() []string {
	out := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = l.Text
	}
	return out
}

func (r *Result) Close() error {
	if r.face == nil {
		return nil
	}
	return r.face.Close()
}

type attempt struct {
	size       int
	face       font.Face
	lines      []string
	lineHeight int
	ascent     int
	total      float64
	fits       bool
}

// Layout picks the largest size in [MinFontSize, MaxFontSize] at which the
// wrapped title fits box and MaxLines, then centers every line. When nothing
// fits, the wrap at MinFontSize is returned with Overflow set.
func Layout(text string, box Box, loader FontLoader, opts Options) (*Result, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, ErrEmptyTitle
	}
	opts = opts.normalized()

	try := func(size int) *attempt {
		face := loadFace(loader, size)
		a := &attempt{size: size, face: face}
		a.lines = wrap(words, face, box.Width)
		a.ascent, a.lineHeight = lineMetrics(face)
		a.total = blockHeight(len(a.lines), a.lineHeight, opts.LineSpacing)
		a.fits = a.total <= float64(box.Height) && len(a.lines) <= opts.MaxLines
		return a
	}

	// Fit only gets harder as the size grows, so the largest fitting size
	// can be found by bisection.
	var best *attempt
	lo, hi := opts.MinFontSize, opts.MaxFontSize
	for lo <= hi {
		mid := lo + (hi-lo)/2
		a := try(mid)
		if !a.fits {
			a.face.Close()
			hi = mid - 1
			continue
		}
		if best != nil {
			best.face.Close()
		}
		best = a
		lo = mid + 1
	}

	overflow := false
	if best == nil {
		best = try(opts.MinFontSize)
		overflow = true
		logrus.WithFields(logrus.Fields{
			"size":   best.size,
			"lines":  len(best.lines),
			"height": best.total,
			"box":    box,
		}).Warn("Title does not fit text box at minimum font size")
	}

	return place(best, box, opts, overflow), nil
}

func place(a *attempt, box Box, opts Options, overflow bool) *Result {
	res := &Result{
		FontSize:    a.size,
		LineHeight:  a.lineHeight,
		Ascent:      a.ascent,
		TotalHeight: a.total,
		Overflow:    overflow,
		face:        a.face,
	}

	top := float64(box.Y)
	if a.total < float64(box.Height) {
		top += (float64(box.Height) - a.total) / 2
	}
	step := float64(a.lineHeight) * (1 + opts.LineSpacing)

	for i, text := range a.lines {
		w := measure(a.face, text)
		res.Lines = append(res.Lines, Line{
			Text:  text,
			X:     box.X + (box.Width-w)/2,
			Y:     int(math.Floor(top + float64(i)*step)),
			Width: w,
		})
	}
	return res
}

// wrap packs words greedily into lines no wider than width. A word wider
// than width gets a line of its own.
func wrap(words []string, face font.Face, width int) []string {
	var lines []string
	cur := ""
	for _, w := range words {
		if cur == "" {
			cur = w
			continue
		}
		candidate := cur + " " + w
		if measure(face, candidate) <= width {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}

func blockHeight(n, lineHeight int, spacing float64) float64 {
	gaps := float64(max(0, n-1)) * float64(lineHeight) * spacing
	return float64(n*lineHeight) + gaps
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// lineMetrics returns the ascent and full height of the reference glyphs.
func lineMetrics(face font.Face) (ascent, height int) {
	bounds, _ := font.BoundString(face, referenceGlyphs)
	ascent = (-bounds.Min.Y).Ceil()
	height = ascent + bounds.Max.Y.Ceil()
	if height <= 0 {
		m := face.Metrics()
		return m.Ascent.Ceil(), m.Height.Ceil()
	}
	return ascent, height
}

// loadFace asks loader for a face and falls back to the built-in font when
// the loader fails.
func loadFace(loader FontLoader, size int) font.Face {
	if loader != nil {
		face, err := loader.Face(float64(size))
		if err == nil {
			return face
		}
		logrus.WithError(err).WithField("size", size).Warn("Font face unavailable, using built-in default")
	}
	face, err := defaultLoader().Face(float64(size))
	if err != nil {
		panic(err)
	}
	return face
}

func defaultLoader() *OpenTypeLoader { return NewFontLoader("") }
