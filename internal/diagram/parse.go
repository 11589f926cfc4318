// ABOUTME: Strict parser for diagram payloads
// ABOUTME: Rejects payloads without an ordered, titled list of steps

package diagram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a payload cannot be interpreted as a flowchart.
var ErrMalformed = errors.New("malformed diagram payload")

// Parse decodes payload into a Flowchart. Step order is preserved exactly.
func Parse(payload []byte) (*Flowchart, error) {
	var fc Flowchart
	if err := json.Unmarshal(payload, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(fc.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrMalformed)
	}
	for i, step := range fc.Steps {
		if strings.TrimSpace(step.Title) == "" {
			return nil, fmt.Errorf("%w: step %d has no title", ErrMalformed, i+1)
		}
	}
	return &fc, nil
}
