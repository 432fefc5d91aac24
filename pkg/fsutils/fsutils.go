package fsutils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// CreateDir creates a directory (and parents) if it doesn't exist.
func CreateDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// WriteFileAtomic writes content to path through a temp file in the same
// directory followed by a rename, so readers never observe a partial file.
func WriteFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file %q: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move %q into place: %w", path, err)
	}
	return nil
}

// FileExists checks if a path exists and is a regular file (not a directory).
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsSafeFilename reports whether name can be used as a single path segment
// inside a directory: non-empty, local, no separators and no leading dot.
func IsSafeFilename(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`+"\x00") {
		return false
	}
	return filepath.IsLocal(name)
}

// disallowedRegex matches anything that is not a lowercase letter, digit,
// underscore, hyphen or period.
var disallowedRegex = regexp.MustCompile(`[^a-z0-9_.-]+`)
var collapseUnderscoreRegex = regexp.MustCompile(`_+`)

// SanitizeFilename converts a string into a safe single path segment.
// It lowercases, replaces spaces and disallowed characters with underscores,
// collapses consecutive underscores and never yields "", "." or "..".
func SanitizeFilename(name string) string {
	trimmed := strings.TrimSpace(strings.ToLower(name))
	noSpaces := strings.ReplaceAll(trimmed, " ", "_")
	sanitized := disallowedRegex.ReplaceAllString(noSpaces, "_")
	collapsed := collapseUnderscoreRegex.ReplaceAllString(sanitized, "_")

	switch collapsed {
	case "", ".", "..":
		if name == "" {
			return ""
		}
		return "_"
	}
	return collapsed
}
