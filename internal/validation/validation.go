// Package validation defines the interface boundary for C6, the edge
// validation pipeline. Its implementation is external to this module's
// depth (spec'd as interface-only); C9 depends on this interface to drive
// revalidation without knowing how scoring actually happens.
package validation

import "github.com/edgecore/quantedge/internal/edge"

// Dataset is a held-out dataset handle passed through to the pipeline
// implementation. Len is exposed so callers (e.g. the revalidation runner)
// can enforce a minimum-row-count gate without knowing the dataset's
// internal structure.
type Dataset interface {
	Len() int
}

// Result is what a revalidation attempt produces for one edge.
type Result struct {
	NewStatus edge.Status
	Score     float64
}

// Pipeline scores a single edge against a held-out dataset and reports the
// status it should transition to.
type Pipeline interface {
	Revalidate(e *edge.Edge, dataset Dataset) (Result, error)
}
