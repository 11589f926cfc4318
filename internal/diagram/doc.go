// Package diagram renders the step diagrams attached to assistant replies.
//
// # Catalog
//
// A diagram reference is an opaque token carried on a message. The Catalog
// resolves it to a raw payload:
//
//	catalog := diagram.NewCatalog()
//	payload := catalog.Payload(diagram.SampleFlowchart)
//
// References that were never registered resolve to their own bytes, so a
// message may carry an inline JSON payload as its reference.
//
// # Viewer
//
// Each open diagram gets a Viewer with its own loading timer:
//
//	loading --(render delay)--> ready
//
// While loading, Render returns only a loading view. Once ready it parses the
// payload into ordered steps, or returns an error view when the payload is
// malformed. Parse failures never escape the viewer.
//
// # Export
//
// Export produces a downloadable artifact holding the raw payload verbatim,
// named medical-flowchart-<unix-millis>.json. Export works in any phase.
package diagram
