package uploads

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateKey builds a fresh object key "<prefix><owner>/<uuid><ext>".
func GenerateKey(prefix, ownerID, contentType string, filename *string) (string, error) {
	ext, ok := ExtForContentType(contentType)
	if !ok {
		return "", ErrInvalidContentType
	}

	if filename != nil {
		fExt := strings.ToLower(filepath.Ext(*filename))
		if fExt == ".jpeg" {
			fExt = ".jpg"
		}
		if fExt != "" && fExt != ext {
			return "", ErrExtensionMismatch
		}
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new key id: %w", err)
	}

	return prefix + safeSegment(ownerID) + "/" + u.String() + ext, nil
}

// ValidateKey accepts only keys below prefix without path traversal.
func ValidateKey(prefix, key string) error {
	if key == "" || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") || strings.Contains(key, "//") {
		return ErrInvalidKey
	}
	return nil
}

func safeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
