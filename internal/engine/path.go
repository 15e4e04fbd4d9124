package engine

import "strings"

// ValidatePath rejects keys that are not already in canonical slash form:
// empty keys, keys containing NUL, and keys with an empty, "." or ".."
// segment. A leading, trailing or doubled "/" produces an empty segment.
// Every accepted key is its own path.Clean form, so two distinct keys never
// name the same blob in any driver.
func ValidatePath(path string) error {
	if path == "" || strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".", "..":
			return ErrInvalidPath
		}
	}
	return nil
}
