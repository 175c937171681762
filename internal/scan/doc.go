// Package scan walks an exported experiment directory and returns the files
// that belong to it.
//
// Only files with a recognised extension are kept, and the exporter's
// auxiliary metadata folder is skipped wholesale. Unreadable entries below the
// root are recorded as warnings rather than aborting the walk; an unreadable
// root is reported as a *ScanError.
package scan
