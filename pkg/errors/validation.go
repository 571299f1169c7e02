package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// ValidatePath validates a manifest path for safety.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// branchLabelRegex matches labels usable in "label@head" style identifiers.
var branchLabelRegex = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// ValidateBranchLabel validates a branch label before it is written to a
// manifest. Labels may not contain '@', '+' or '-' since those delimit
// qualified and relative identifiers.
func ValidateBranchLabel(label string) error {
	if label == "" {
		return New(ErrCodeInvalidInput, "branch label cannot be empty")
	}
	if len(label) > 128 {
		return New(ErrCodeInvalidInput, "branch label too long (max 128 characters)")
	}
	switch label {
	case "head", "heads", "base":
		return New(ErrCodeInvalidInput, "branch label %q is a reserved word", label)
	}
	if !branchLabelRegex.MatchString(label) {
		return New(ErrCodeInvalidInput, "invalid branch label: %q", label)
	}
	return nil
}

// storeSchemes lists the version store URL schemes that can be opened.
var storeSchemes = map[string]bool{
	"file":    true,
	"sqlite":  true,
	"redis":   true,
	"mongodb": true,
	"memory":  true,
}

// ValidateStoreURL validates a version store URL.
// It ensures the URL parses and uses a supported scheme.
func ValidateStoreURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "store URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid store URL")
	}
	if !storeSchemes[u.Scheme] {
		return New(ErrCodeUnsupported, "unsupported store scheme %q (want file, sqlite, redis, mongodb or memory)", u.Scheme)
	}
	if (u.Scheme == "file" || u.Scheme == "sqlite") && u.Host == "" && u.Path == "" && u.Opaque == "" {
		return New(ErrCodeInvalidInput, "store URL %q has no path", rawURL)
	}
	return nil
}
