// Package archive retains staged files of failed uploads so operators can
// re-drive them later. Keys are flat names scoped by job id.
package archive

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys that would escape the archive root.
var ErrInvalidKey = errors.New("invalid archive key")

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
