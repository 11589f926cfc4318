// ABOUTME: Tests for the diagram viewer, catalog, and export
// ABOUTME: Covers loading timer, expand toggle, malformed payloads, and verbatim export

package diagram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(delay time.Duration) *Renderer {
	fixed := time.UnixMilli(1700000000123)
	return NewRenderer(NewCatalog(), Options{
		Delay: delay,
		Now:   func() time.Time { return fixed },
	})
}

func TestViewer_SampleFlowchartRendersSixStagesInOrder(t *testing.T) {
	r := newTestRenderer(0)
	v := r.Open(SampleFlowchart)
	defer v.Close()

	require.Equal(t, PhaseReady, v.Phase())
	view := v.Render()
	require.Equal(t, ViewRendered, view.Status)

	titles := make([]string, 0, len(view.Steps))
	for _, s := range view.Steps {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{
		"History Taking",
		"Physical Examination",
		"Differential Diagnosis",
		"Additional Tests",
		"Final Diagnosis",
		"Treatment Plan",
	}, titles)
}

func TestViewer_LoadingViewHasNoContent(t *testing.T) {
	r := newTestRenderer(time.Hour)
	v := r.Open(SampleFlowchart)
	defer v.Close()

	view := v.Render()
	assert.Equal(t, ViewLoading, view.Status)
	assert.Empty(t, view.Steps)
	assert.Empty(t, view.Error)
	assert.Equal(t, PhaseLoading, v.Phase())
}

func TestViewer_BecomesReadyAfterDelay(t *testing.T) {
	r := newTestRenderer(10 * time.Millisecond)
	v := r.Open(SampleFlowchart)
	defer v.Close()

	select {
	case <-v.Ready():
	case <-time.After(time.Second):
		t.Fatal("viewer never became ready")
	}
	assert.Equal(t, PhaseReady, v.Phase())
	assert.Equal(t, ViewRendered, v.Render().Status)
}

func TestViewer_IndependentTimers(t *testing.T) {
	slow := newTestRenderer(time.Hour)
	fast := newTestRenderer(0)

	a := slow.Open(SampleFlowchart)
	defer a.Close()
	b := fast.Open(SampleFlowchart)
	defer b.Close()

	assert.Equal(t, PhaseLoading, a.Phase())
	assert.Equal(t, PhaseReady, b.Phase())
}

func TestViewer_CloseStopsTimer(t *testing.T) {
	r := newTestRenderer(20 * time.Millisecond)
	v := r.Open(SampleFlowchart)
	v.Close()
	v.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, PhaseLoading, v.Phase())
}

func TestViewer_ToggleTwiceRestoresSize(t *testing.T) {
	r := newTestRenderer(0)
	v := r.Open(SampleFlowchart)
	defer v.Close()

	before := v.Expanded()
	assert.True(t, v.ToggleExpanded())
	assert.False(t, v.ToggleExpanded())
	assert.Equal(t, before, v.Expanded())
}

func TestViewer_MalformedPayloadRendersErrorView(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{"not json", "{not json"},
		{"no steps", `{"title":"x","steps":[]}`},
		{"untitled step", `{"steps":[{"title":""}]}`},
		{"wrong shape", `{"steps":"History Taking"}`},
		{"plain token", "unregistered-ref"},
	}

	r := newTestRenderer(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := r.Open(tt.ref)
			defer v.Close()

			var view View
			require.NotPanics(t, func() { view = v.Render() })
			assert.Equal(t, ViewError, view.Status)
			assert.Equal(t, RenderErrorMessage, view.Error)
			assert.ErrorIs(t, view.Cause, ErrMalformed)
			assert.Empty(t, view.Steps)
		})
	}
}

func TestViewer_InlinePayloadRenders(t *testing.T) {
	r := newTestRenderer(0)
	v := r.Open(`{"title":"Mini","steps":[{"title":"One"},{"title":"Two"}]}`)
	defer v.Close()

	view := v.Render()
	require.Equal(t, ViewRendered, view.Status)
	assert.Equal(t, "Mini", view.Title)
	require.Len(t, view.Steps, 2)
	assert.Equal(t, "Two", view.Steps[1].Title)
}

func TestExport_ContentEqualsPayloadInAnyPhase(t *testing.T) {
	r := newTestRenderer(time.Hour)
	payload := r.Catalog().Payload(SampleFlowchart)

	v := r.Open(SampleFlowchart)
	defer v.Close()
	require.Equal(t, PhaseLoading, v.Phase())

	art := v.Export()
	assert.Equal(t, payload, art.Content)
	assert.Equal(t, "text/plain", art.ContentType)
	assert.Equal(t, "medical-flowchart-1700000000123.json", art.Name)
	assert.Equal(t, PhaseLoading, v.Phase())

	ready := newTestRenderer(0).Open(SampleFlowchart)
	defer ready.Close()
	assert.Equal(t, payload, ready.Export().Content)
}

func TestExport_MalformedPayloadIsVerbatim(t *testing.T) {
	r := newTestRenderer(0)
	art := r.Export("{broken")
	assert.Equal(t, []byte("{broken"), art.Content)
}

func TestCatalog_RegisterAndCopy(t *testing.T) {
	c := NewCatalog()
	payload := []byte(`{"steps":[{"title":"A"}]}`)
	c.Register("custom", payload)
	payload[0] = 'X'

	got := c.Payload("custom")
	assert.Equal(t, byte('{'), got[0])
	got[0] = 'Y'
	assert.Equal(t, byte('{'), c.Payload("custom")[0])
	assert.Equal(t, []string{"custom", SampleFlowchart}, c.Refs())
}
