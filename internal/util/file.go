package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// SafeJoin joins name under base and rejects names that escape it.
func SafeJoin(base, name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid name %q", name)
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(filepath.Join(base, name))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(full, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path %q: outside %s", name, base)
	}
	return full, nil
}
