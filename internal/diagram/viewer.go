// ABOUTME: Lazy-loading diagram viewer with an expand toggle and export
// ABOUTME: Each viewer runs its own loading timer and never panics on bad payloads

package diagram

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultRenderDelay is how long a viewer stays in the loading phase.
const DefaultRenderDelay = 800 * time.Millisecond

// RenderErrorMessage is shown in place of a diagram whose payload is malformed.
const RenderErrorMessage = "Error rendering flowchart. Please check the data format."

// Phase is the loading state of a Viewer.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// ViewStatus describes what a rendered View contains.
type ViewStatus string

const (
	ViewLoading  ViewStatus = "loading"
	ViewRendered ViewStatus = "rendered"
	ViewError    ViewStatus = "error"
)

// View is the output of Viewer.Render.
type View struct {
	Ref      string     `json:"ref"`
	Status   ViewStatus `json:"status"`
	Expanded bool       `json:"expanded"`
	Title    string     `json:"title,omitempty"`
	Steps    []Step     `json:"steps,omitempty"`
	Error    string     `json:"error,omitempty"`
	Cause    error      `json:"-"`
}

// Artifact is a named, downloadable blob.
type Artifact struct {
	Name        string
	ContentType string
	Content     []byte
}

// Options configures a Renderer.
type Options struct {
	// Delay is the loading time before a viewer becomes ready.
	// Zero or negative makes viewers ready as soon as they open.
	Delay  time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// Renderer opens viewers and exports payloads from a Catalog.
type Renderer struct {
	catalog *Catalog
	delay   time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewRenderer creates a renderer over catalog.
func NewRenderer(catalog *Catalog, opts Options) *Renderer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Renderer{
		catalog: catalog,
		delay:   opts.Delay,
		now:     opts.Now,
		logger:  opts.Logger.With("component", "diagram"),
	}
}

// Catalog returns the catalog backing this renderer.
func (r *Renderer) Catalog() *Catalog {
	return r.catalog
}

// Open starts a viewer for ref in the loading phase.
func (r *Renderer) Open(ref string) *Viewer {
	v := &Viewer{
		renderer: r,
		ref:      ref,
		payload:  r.catalog.Payload(ref),
		phase:    PhaseLoading,
		ready:    make(chan struct{}),
		logger:   r.logger,
	}
	if r.delay <= 0 {
		v.markReady()
		return v
	}
	v.mu.Lock()
	v.timer = time.AfterFunc(r.delay, v.markReady)
	v.mu.Unlock()
	return v
}

// Export packages the raw payload for ref as a text/plain artifact. The
// content is byte-identical to the payload; nothing is reformatted.
func (r *Renderer) Export(ref string) Artifact {
	return r.artifact(r.catalog.Payload(ref))
}

func (r *Renderer) artifact(payload []byte) Artifact {
	return Artifact{
		Name:        fmt.Sprintf("medical-flowchart-%d.json", r.now().UnixMilli()),
		ContentType: "text/plain",
		Content:     append([]byte(nil), payload...),
	}
}

// Viewer is the presentation state of one open diagram.
type Viewer struct {
	renderer *Renderer
	ref      string
	payload  []byte
	logger   *slog.Logger

	mu       sync.Mutex
	phase    Phase
	expanded bool
	timer    *time.Timer
	ready    chan struct{}
	closed   bool
}

func (v *Viewer) markReady() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.phase == PhaseReady {
		return
	}
	v.phase = PhaseReady
	close(v.ready)
}

// Ref returns the diagram reference this viewer was opened with.
func (v *Viewer) Ref() string {
	return v.ref
}

// Phase returns the current loading phase.
func (v *Viewer) Phase() Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phase
}

// Ready is closed when the viewer leaves the loading phase. It never closes
// for a viewer that was closed while still loading.
func (v *Viewer) Ready() <-chan struct{} {
	return v.ready
}

// Expanded reports the presentation size.
func (v *Viewer) Expanded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded
}

// ToggleExpanded flips the presentation size and returns the new value.
func (v *Viewer) ToggleExpanded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded = !v.expanded
	return v.expanded
}

// Render returns the loading view until the viewer is ready, then the parsed
// steps or an error view.
func (v *Viewer) Render() (view View) {
	v.mu.Lock()
	phase, expanded := v.phase, v.expanded
	v.mu.Unlock()

	view = View{Ref: v.ref, Expanded: expanded}
	if phase == PhaseLoading {
		view.Status = ViewLoading
		return view
	}

	defer func() {
		if rec := recover(); rec != nil {
			view.Status = ViewError
			view.Title, view.Steps = "", nil
			view.Error = RenderErrorMessage
			view.Cause = fmt.Errorf("%w: %v", ErrMalformed, rec)
			v.logger.Error("diagram render panicked", "ref", v.ref, "panic", rec)
		}
	}()

	fc, err := Parse(v.payload)
	if err != nil {
		v.logger.Warn("diagram payload rejected", "ref", v.ref, "error", err)
		view.Status = ViewError
		view.Error = RenderErrorMessage
		view.Cause = err
		return view
	}
	view.Status = ViewRendered
	view.Title = fc.Title
	view.Steps = fc.Steps
	return view
}

// Export packages the payload this viewer was opened with. Works in any phase.
func (v *Viewer) Export() Artifact {
	return v.renderer.artifact(v.payload)
}

// Close stops the loading timer. Safe to call more than once.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.timer != nil {
		v.timer.Stop()
	}
}
