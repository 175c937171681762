package attributes

import (
	"fmt"
	"strings"
)

// Key identifies one coordinate in the naming convention.
type Key uint8

const (
	// S is the slide index.
	S Key = iota
	// U is the well column.
	U
	// V is the well row.
	V
	// X is the field column within a well.
	X
	// Y is the field row within a well.
	Y
	// Z is the z-stack plane.
	Z
	// C is the detection channel.
	C

	numKeys = int(C) + 1
)

// Keys lists every key in canonical order.
var Keys = [numKeys]Key{S, U, V, X, Y, Z, C}

var keyLetters = [numKeys]byte{'S', 'U', 'V', 'X', 'Y', 'Z', 'C'}

func (k Key) valid() bool { return int(k) < numKeys }

// Letter returns the single upper-case letter of the key.
func (k Key) Letter() byte {
	if !k.valid() {
		return '?'
	}
	return keyLetters[k]
}

func (k Key) String() string {
	return string(k.Letter())
}

// Tag returns the tag as it appears in names, e.g. "--S".
func (k Key) Tag() string {
	return "--" + k.String()
}

// ParseKey resolves a key from its letter, case-insensitively.
func ParseKey(value string) (Key, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if len(trimmed) == 1 {
		if k, ok := keyForLetter(trimmed[0]); ok {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute key %q", value)
}

func keyForLetter(b byte) (Key, bool) {
	for i, letter := range keyLetters {
		if letter == b {
			return Key(i), true
		}
	}
	return 0, false
}

// Format renders k and v as a name tag with the minimum zero-padded width,
// e.g. Format(U, 3) == "--U03".
func Format(k Key, v int) string {
	return fmt.Sprintf("%s%0*d", k.Tag(), MinDigits, v)
}
