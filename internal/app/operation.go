package app

import "havit-go/internal/catalog"

// Request is one CLI invocation that walks files. Only requests with add
// roots change the catalog; those are recorded in the run history and
// trigger a snapshot upload.
type Request struct {
	Adds   []string
	Checks []string
}

// NewRequest creates a request for the given roots.
func NewRequest(adds, checks []string) *Request {
	return &Request{Adds: adds, Checks: checks}
}

// Operation names the request in the run history: "add", "check" or
// "add+check".
func (r *Request) Operation() string {
	switch {
	case len(r.Adds) > 0 && len(r.Checks) > 0:
		return "add+check"
	case len(r.Adds) > 0:
		return "add"
	default:
		return "check"
	}
}

// Mutates returns true if the request inserts records.
func (r *Request) Mutates() bool {
	return len(r.Adds) > 0
}

// Batch converts the request for catalog.Service.Run.
func (r *Request) Batch() catalog.Batch {
	return catalog.Batch{Operation: r.Operation(), Adds: r.Adds, Checks: r.Checks}
}
