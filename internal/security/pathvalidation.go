// Package security guards file paths that arrive from API requests.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned when a path resolves outside every
// permitted directory.
var ErrOutsideDirectory = errors.New("path escapes allowed directory")

// canonical resolves symlinks on the longest existing prefix of an
// absolute path and re-appends the part that does not exist yet.
func canonical(abs string) string {
	rest := ""
	for p := abs; ; p = filepath.Dir(p) {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return abs
		}
		rest = filepath.Join(filepath.Base(p), rest)
	}
}

// ValidatePathWithinDirectory rejects filePath when, after cleaning and
// symlink resolution, it is not dir or a descendant of dir. dir must exist.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	realDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	rel, err := filepath.Rel(realDir, canonical(absPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is outside %s", ErrOutsideDirectory, filePath, dir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath if it lies in any of dirs.
func ValidatePathWithinAllowedDirs(filePath string, dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("%w: no directories configured", ErrOutsideDirectory)
	}
	for _, d := range dirs {
		if ValidatePathWithinDirectory(filePath, d) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not under any of %v", ErrOutsideDirectory, filePath, dirs)
}

const maxFilenameLen = 128

// SanitizeFilename reduces s to ASCII letters, digits, '.', '_' and '-',
// replacing each run of other characters with one underscore. Leading and
// trailing dots and underscores are trimmed; an empty result becomes
// "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			pending = true
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
