package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// idRegex matches identifiers accepted for layers and nodes.
// The '#' is allowed because auto-generated node ids take the form "Kind#n".
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.#:-]*$`)

// ValidateID validates a layer or node identifier.
//
// Identifiers appear in broadcast tags ("layer/label/node") and in HTTP
// routes, so the rules are conservative:
//   - No empty ids
//   - Maximum length of 128 characters
//   - No '/' (reserved as the tag separator)
//   - Must start with a letter or digit
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "id cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "id too long (max 128 characters)")
	}
	if strings.Contains(id, "/") {
		return New(ErrCodeInvalidInput, "id %q cannot contain '/'", id)
	}
	if !idRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid id: %q", id)
	}
	return nil
}

// ValidatePath validates an output file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
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

	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	return nil
}

// ValidateShape validates a raster shape.
func ValidateShape(nx, ny int) error {
	if nx < 2 || ny < 2 {
		return New(ErrCodeInvalidInput, "shape must be at least 2x2, got %dx%d", nx, ny)
	}
	const maxSide = 1 << 14
	if nx > maxSide || ny > maxSide {
		return New(ErrCodeInvalidInput, "shape %dx%d exceeds %d per side", nx, ny, maxSide)
	}
	return nil
}
