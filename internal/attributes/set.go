package attributes

import (
	"fmt"
	"strings"
)

// Set maps every key to an optional non-negative integer.
// The zero value is an empty set.
type Set struct {
	values  [numKeys]int
	present [numKeys]bool
}

// NewSet builds a set from explicit values.
func NewSet(values map[Key]int) Set {
	var s Set
	for k, v := range values {
		if k.valid() {
			s.values[k] = v
			s.present[k] = true
		}
	}
	return s
}

// Get returns the value stored for k and whether it is present.
func (s Set) Get(k Key) (int, bool) {
	if !k.valid() || !s.present[k] {
		return 0, false
	}
	return s.values[k], true
}

// Has reports whether k is present.
func (s Set) Has(k Key) bool {
	return k.valid() && s.present[k]
}

// Value returns the value for k or -1 when absent.
func (s Set) Value(k Key) int {
	if v, ok := s.Get(k); ok {
		return v
	}
	return -1
}

// Missing returns the keys among want that are absent, in the order given.
func (s Set) Missing(want ...Key) []Key {
	var missing []Key
	for _, k := range want {
		if !s.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Len returns the number of present keys.
func (s Set) Len() int {
	n := 0
	for _, ok := range s.present {
		if ok {
			n++
		}
	}
	return n
}

func (s Set) String() string {
	parts := make([]string, 0, numKeys)
	for _, k := range Keys {
		if v, ok := s.Get(k); ok {
			parts = append(parts, fmt.Sprintf("%s%0*d", k, MinDigits, v))
		}
	}
	return strings.Join(parts, " ")
}
