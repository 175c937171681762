// Package services defines shared utilities consumed by the indexing, stitching
// and compression packages and by the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch run IDs, stage names, well labels and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is regardless of which package produced them.
//   - ExitCode, which turns a classified error into the CLI exit status.
//
// Use these helpers when wiring new collaborator logic so operational
// behaviour (error classification, observability) stays uniform.
package services
