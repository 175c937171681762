// Package experiment indexes an exported matrix scan into an immutable
// slide → well → field → (channel, z) hierarchy and answers queries over it.
//
// Build is a pure function over a list of paths; Open scans a directory and
// then builds. Every collection is sorted ascending on its numeric
// coordinates so enumeration never depends on filesystem traversal order.
// Data-integrity problems (duplicate coordinates, holes in a field grid,
// uneven channel or z counts) are collected as IntegrityWarning values next to
// the best-effort result instead of failing the build.
package experiment
