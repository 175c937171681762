// Package stitch turns the fields of a well into per-slice mosaic plans and
// hands them to an external stitching tool.
//
// Planner places each field on a regular grid from its X/Y index, the tile
// size and the overlap fraction; it never looks at pixels. FijiStitcher runs
// the Grid/Collection plugin headless against a plan, and Driver fans plans
// out across wells with skip-existing semantics.
package stitch
