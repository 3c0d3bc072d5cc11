package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/youruser/cardapp/internal/storage/filesystem"
	"github.com/youruser/cardapp/internal/storage/s3"
)

// ErrDisabled is returned by the no-op uploader.
var ErrDisabled = errors.New("upload storage is not configured")

// Uploader stores an encoded card and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Options struct {
	// Type is one of "none", "filesystem" or "s3".
	Type string

	LocalPath     string
	PublicBaseURL string

	S3Bucket    string
	S3Prefix    string
	S3PublicURL string
}

// New builds the uploader selected by opts.Type. It is called once at
// startup and the result is handed to the HTTP handlers.
func New(ctx context.Context, opts Options) (Uploader, error) {
	fields := logrus.Fields{"storageType": opts.Type}
	var up Uploader

	switch strings.ToLower(opts.Type) {
	case "filesystem":
		fs, err := filesystem.NewStore(opts.LocalPath, opts.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		fields["basePath"] = opts.LocalPath
		up = fs
	case "s3":
		if opts.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME must be set for s3 storage")
		}
		st, err := s3.NewStore(ctx, opts.S3Bucket, opts.S3Prefix, opts.S3PublicURL)
		if err != nil {
			return nil, err
		}
		fields["bucketName"] = opts.S3Bucket
		up = st
	case "", "none":
		fields["storageType"] = "none"
		up = Disabled{}
	default:
		return nil, fmt.Errorf("unknown storage type %q", opts.Type)
	}

	logrus.WithFields(fields).Info("Use storage")
	return up, nil
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", ErrDisabled
}

// Enabled reports whether up can actually store anything.
func Enabled(up Uploader) bool {
	if up == nil {
		return false
	}
	_, disabled := up.(Disabled)
	return !disabled
}

// NewKey returns a unique, time-sortable object key with the given extension.
func NewKey(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return ulid.Make().String()
	}
	return ulid.Make().String() + "." + ext
}
