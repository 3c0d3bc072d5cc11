// Package config reads the service settings from the environment.
package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	imagepkg "github.com/youruser/cardapp/internal/image"
	"github.com/youruser/cardapp/internal/storage"
	"github.com/youruser/cardapp/internal/textlayout"
)

type Config struct {
	Port string

	Template     imagepkg.Template
	OutputFormat string

	FetchTimeout  time.Duration
	MaxImageBytes int64

	Storage storage.Options
}

// Load reads the environment. Unset variables take the defaults of the stock
// template; malformed values are errors.
func Load() (*Config, error) {
	var err error
	cfg := &Config{
		Port:         getenv("PORT", "8000"),
		OutputFormat: strings.ToLower(getenv("OUTPUT_FORMAT", "png")),
		Storage: storage.Options{
			Type:          getenv("STORAGE_TYPE", "none"),
			LocalPath:     getenv("LOCAL_STORAGE_PATH", "./data"),
			PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
			S3Bucket:      os.Getenv("S3_BUCKET_NAME"),
			S3Prefix:      os.Getenv("S3_PREFIX"),
			S3PublicURL:   os.Getenv("S3_PUBLIC_URL"),
		},
	}

	tpl := &cfg.Template
	tpl.BackgroundPath = getenv("TEMPLATE_PATH", "plantilla_base.jpg")
	tpl.FontPath = getenv("FONT_PATH", "Roboto-Bold.ttf")

	if tpl.Photo, err = regionEnv("PHOTO_REGION", "0,0,1080,844"); err != nil {
		return nil, err
	}
	if tpl.Photo.Empty() {
		return nil, fmt.Errorf("PHOTO_REGION %s has no area", tpl.Photo)
	}
	if tpl.Policy, err = imagepkg.ParsePolicy(getenv("FIT_POLICY", "pad")); err != nil {
		return nil, err
	}
	if tpl.BlurRadius, err = floatEnv("BLUR_RADIUS", imagepkg.DefaultBlurRadius); err != nil {
		return nil, err
	}

	box, err := regionEnv("TEXT_BOX", "62,873,951,331")
	if err != nil {
		return nil, err
	}
	if box.Empty() {
		return nil, fmt.Errorf("TEXT_BOX %s has no area", box)
	}
	tpl.Text = textlayout.Box{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}
	if tpl.TextColor, err = ParseColor(getenv("TEXT_COLOR", "#FFFFFF")); err != nil {
		return nil, fmt.Errorf("TEXT_COLOR: %w", err)
	}

	lo := &tpl.Layout
	if lo.MaxFontSize, err = intEnv("MAX_FONT_SIZE", textlayout.DefaultMaxFontSize); err != nil {
		return nil, err
	}
	if lo.MinFontSize, err = intEnv("MIN_FONT_SIZE", textlayout.DefaultMinFontSize); err != nil {
		return nil, err
	}
	if lo.MaxLines, err = intEnv("MAX_LINES", textlayout.DefaultMaxLines); err != nil {
		return nil, err
	}
	if lo.LineSpacing, err = floatEnv("LINE_SPACING", textlayout.DefaultLineSpacing); err != nil {
		return nil, err
	}
	if lo.MinFontSize <= 0 || lo.MaxFontSize < lo.MinFontSize {
		return nil, fmt.Errorf("font size range %d..%d is invalid", lo.MinFontSize, lo.MaxFontSize)
	}

	if tpl.QR, err = regionEnv("QR_REGION", ""); err != nil {
		return nil, err
	}

	if cfg.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", 12*time.Second); err != nil {
		return nil, err
	}
	maxBytes, err := intEnv("MAX_IMAGE_BYTES", 20<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxImageBytes = int64(maxBytes)

	switch cfg.OutputFormat {
	case "png", "jpeg", "jpg":
	default:
		return nil, fmt.Errorf("OUTPUT_FORMAT %q must be png or jpeg", cfg.OutputFormat)
	}
	return cfg, nil
}

// ParseRegion parses "x,y,width,height". An empty string is the zero region.
func ParseRegion(s string) (imagepkg.Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return imagepkg.Region{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return imagepkg.Region{}, fmt.Errorf("region %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return imagepkg.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return imagepkg.Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

// ParseColor parses #RGB, #RRGGBB and #RRGGBBAA.
func ParseColor(s string) (color.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return nil, fmt.Errorf("color %q: want #RRGGBB", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func regionEnv(key, def string) (imagepkg.Region, error) {
	r, err := ParseRegion(getenv(key, def))
	if err != nil {
		return r, fmt.Errorf("%s: %w", key, err)
	}
	return r, nil
}

func intEnv(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
