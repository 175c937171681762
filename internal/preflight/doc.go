// Package preflight provides readiness checks for the filesystem paths and
// external tools matrixscreen depends on.
//
// These checks run in two contexts:
//   - The stitch and compress commands call RunAll before starting a batch.
//     If any required check fails, the batch is not started.
//   - The CLI "matrixscreen status" command displays every result.
package preflight
