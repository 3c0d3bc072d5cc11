package filesystem

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/youruser/cardapp/internal/util"
)

type fsStore struct {
	basePath      string
	publicBaseURL string
}

// NewStore creates a store writing under basePath. Returned locations are
// publicBaseURL joined with the key, or the file path when no base URL is set.
func NewStore(basePath, publicBaseURL string) (*fsStore, error) {
	if basePath == "" {
		basePath = "./data"
	}
	if err := util.EnsureDir(basePath); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

func (s *fsStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	filePath, err := util.SafeJoin(s.basePath, key)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{
		"key":       key,
		"file_path": filePath,
		"bytes":     len(data),
	})

	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		log.WithError(err).Error("Failed to write card")
		return "", err
	}
	log.Info("Card stored")

	if s.publicBaseURL == "" {
		return filePath, nil
	}
	return s.publicBaseURL + "/" + url.PathEscape(key), nil
}
