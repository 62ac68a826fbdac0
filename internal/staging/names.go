package staging

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

// ValidateSessionID rejects identifiers that cannot be used as a single directory name.
func ValidateSessionID(sessionID string) error {
	switch {
	case sessionID == "", sessionID == ".", sessionID == "..":
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	case strings.ContainsAny(sessionID, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return nil
}

// SanitizeFilename reduces an uploaded filename to a safe base name: directory components
// are dropped, whitespace becomes '_', anything outside [A-Za-z0-9._-] is removed and
// leading/trailing dots and underscores are trimmed.
func SanitizeFilename(filename string) (string, error) {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))

	var sb strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune('_')
		}
	}

	name := strings.Trim(sb.String(), "._")
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return name, nil
}

const fallbackUploadStem = "upload"

// UploadName sanitizes filename and guarantees the result still ends in ext. Names whose stem
// is dropped entirely, such as ones written only in non-ASCII letters, become "upload"+ext.
func UploadName(filename, ext string) string {
	name, err := SanitizeFilename(filename)
	if err != nil || len(name) <= len(ext) || !hasSuffixFold(name, ext) {
		return fallbackUploadStem + ext
	}
	return name
}

// UniqueName returns name, or name with a "-2", "-3", ... counter before its extension when
// name is already taken.
func UniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
