package attributes

import (
	"fmt"
	"math"
	"strings"

	"matrixscreen/internal/services"
)

// MinDigits is the minimum zero-padded width of a tag value.
const MinDigits = 2

// ParseError reports tag text that is present but cannot be read as a value.
type ParseError struct {
	Key    Key
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse attribute %s in %q: %s", e.Key, e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return services.ErrValidation }

// Parse returns every recognised attribute found in path. When a key occurs
// more than once the last occurrence wins, so the file's own tags override the
// tags of its parent folders.
func Parse(path string) (Set, error) {
	var s Set
	for i := 0; i+2 < len(path); i++ {
		if path[i] != '-' || path[i+1] != '-' {
			continue
		}
		k, ok := keyForLetter(path[i+2])
		if !ok {
			continue
		}
		v, width, isTag, err := readValue(path, i+3, k)
		if err != nil {
			return Set{}, err
		}
		if !isTag {
			continue
		}
		s.values[k] = v
		s.present[k] = true
		i += 2 + width
	}
	return s, nil
}

// Lookup returns the last value of a single key in path. Tags of other keys
// are not inspected, so they cannot make the lookup fail.
func Lookup(path string, k Key) (int, bool, error) {
	tag := k.Tag()
	value, found := 0, false
	for offset := 0; offset < len(path); {
		idx := strings.Index(path[offset:], tag)
		if idx < 0 {
			break
		}
		start := offset + idx + len(tag)
		v, width, isTag, err := readValue(path, start, k)
		if err != nil {
			return 0, false, err
		}
		if isTag {
			value, found = v, true
		}
		offset = start + width
	}
	return value, found, nil
}

// readValue reads the digit run that starts at path[start]. isTag is false
// when the key letter is followed by a letter, i.e. the dashes belong to an
// ordinary word.
func readValue(path string, start int, k Key) (v, width int, isTag bool, err error) {
	rest := path[start:]
	if rest != "" && !isDigit(rest[0]) && !isDelimiter(rest[0]) {
		return 0, 0, false, nil
	}
	for width < len(rest) && isDigit(rest[width]) {
		width++
	}
	switch {
	case width == 0:
		return 0, 0, true, &ParseError{Key: k, Path: path, Reason: "tag has no digits"}
	case width < MinDigits:
		return 0, 0, true, &ParseError{Key: k, Path: path, Reason: fmt.Sprintf("value %q is narrower than %d digits", rest[:width], MinDigits)}
	}
	v, err = parseUint(rest[:width])
	if err != nil {
		return 0, 0, true, &ParseError{Key: k, Path: path, Reason: err.Error()}
	}
	return v, width, true, nil
}

func parseUint(digits string) (int, error) {
	v := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[i] - '0')
		if v > (math.MaxInt32-d)/10 {
			return 0, fmt.Errorf("value %q overflows int32", digits)
		}
		v = v*10 + d
	}
	return v, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isDelimiter(b byte) bool {
	switch b {
	case '-', '_', '.', '/', '\\', ' ':
		return true
	}
	return false
}
