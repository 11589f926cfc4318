// ABOUTME: Catalog mapping diagram references to their raw payloads
// ABOUTME: Ships the built-in six-stage clinical reasoning flowchart

package diagram

import (
	"encoding/json"
	"sort"
	"sync"
)

// SampleFlowchart is the reference attached to canned replies that carry a diagram.
const SampleFlowchart = "sample-flowchart-data"

// Step is a single stage of a flowchart.
type Step struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Flowchart is the parsed form of a diagram payload.
type Flowchart struct {
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// sampleFlowchart is the clinical reasoning path shown for every canned diagram.
var sampleFlowchart = Flowchart{
	Title: "Clinical Reasoning Pathway",
	Steps: []Step{
		{Title: "History Taking", Detail: "Presenting complaint, onset, associated symptoms, risk factors"},
		{Title: "Physical Examination", Detail: "Vital signs and a focused systems examination"},
		{Title: "Differential Diagnosis", Detail: "Rank the likely causes against the findings"},
		{Title: "Additional Tests", Detail: "Bloods, imaging, and bedside investigations"},
		{Title: "Final Diagnosis", Detail: "Confirm the working diagnosis"},
		{Title: "Treatment Plan", Detail: "Management, follow-up, and patient education"},
	},
}

// Catalog resolves diagram references to raw payloads. Safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	payloads map[string][]byte
}

// NewCatalog creates a catalog with SampleFlowchart registered.
func NewCatalog() *Catalog {
	c := &Catalog{payloads: make(map[string][]byte)}
	// Static value, cannot fail to marshal.
	data, _ := json.MarshalIndent(sampleFlowchart, "", "  ")
	c.payloads[SampleFlowchart] = data
	return c
}

// Register stores payload under ref, replacing any previous entry.
func (c *Catalog) Register(ref string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[ref] = append([]byte(nil), payload...)
}

// Payload returns a copy of the raw payload for ref. An unregistered
// reference is treated as an inline payload and returned as its own bytes.
func (c *Catalog) Payload(ref string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if data, ok := c.payloads[ref]; ok {
		return append([]byte(nil), data...)
	}
	return []byte(ref)
}

// Refs lists the registered references in sorted order.
func (c *Catalog) Refs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	refs := make([]string, 0, len(c.payloads))
	for ref := range c.payloads {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
