package imagepkg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/youruser/cardapp/internal/util"
)

// DownloadImage fetches the raw bytes behind url. Decoding is left to the caller.
func DownloadImage(ctx context.Context, f *util.Fetcher, url string) ([]byte, error) {
	b, err := f.GetBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty body from %s", util.ErrFetch, url)
	}
	return b, nil
}

// DecodeImage decodes b honoring EXIF orientation.
func DecodeImage(b []byte) (image.Image, error) {
	img, err := imaging.Decode(bytesReader(b), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// EncodeImage flattens img into the named format ("png", "jpeg"/"jpg") and
// returns the bytes with their content type.
func EncodeImage(img image.Image, format string) ([]byte, string, error) {
	f, err := imaging.FormatFromExtension(strings.ToLower(format))
	if err != nil {
		return nil, "", fmt.Errorf("output format %q: %w", format, err)
	}
	var contentType string
	switch f {
	case imaging.PNG:
		contentType = "image/png"
	case imaging.JPEG:
		contentType = "image/jpeg"
	default:
		return nil, "", fmt.Errorf("output format %q not supported", format)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, f, imaging.JPEGQuality(90)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), contentType, nil
}

// helper to convert []byte to io.Reader accepted by imaging.Decode
func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
