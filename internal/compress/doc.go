// Package compress recompresses exported TIFF images to PNG without losing
// pixel data, and reverses the process.
//
// Each PNG gets a JSON sidecar holding the TIFF tags of the source and, for
// paletted images, the colour map. Paletted rasters are stored as 8-bit gray
// indices so every pixel value survives; Decompress reattaches the palette.
// Batch fans a list of files out across workers and reports one Result per
// input without retrying failures.
package compress
