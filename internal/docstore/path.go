package docstore

import (
	"fmt"
	"path"
	"strings"
)

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// IsCollection reports whether p names a collection (odd segment count).
func IsCollection(p string) bool {
	return len(segments(p))%2 == 1
}

// SplitDoc splits a document path into its collection path and id.
func SplitDoc(docPath string) (collection, id string, err error) {
	segs := segments(docPath)
	if len(segs) == 0 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document", ErrInvalidPath, docPath)
	}
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, docPath)
		}
	}
	return path.Join(segs[:len(segs)-1]...), segs[len(segs)-1], nil
}

// CheckCollection validates a collection path and returns it cleaned.
func CheckCollection(collectionPath string) (string, error) {
	segs := segments(collectionPath)
	if len(segs)%2 != 1 {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, collectionPath)
	}
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, collectionPath)
		}
	}
	return path.Join(segs...), nil
}
