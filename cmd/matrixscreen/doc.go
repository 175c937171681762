// Package main hosts the matrixscreen CLI entrypoint and command graph.
//
// The Cobra-based command tree indexes MatrixScreener exports on disk, lists
// their wells, fields and images, drives Fiji stitching and recompresses
// TIFF images. It centralizes configuration resolution and logging setup so
// subcommands can focus on output instead of wiring.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through dedicated commands or flags here.
package main
