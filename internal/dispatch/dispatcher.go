// ABOUTME: Dispatch flow turning a submitted question into recorded user and assistant turns
// ABOUTME: Validates, records the user message first, then awaits the Responder off the caller's path

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/mediflow/internal/dedupe"
	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/responder"
	"github.com/2389/mediflow/internal/session"
	"github.com/2389/mediflow/internal/store"
)

// Status describes how a submission was handled.
type Status string

const (
	StatusNothingToSend Status = "nothing_to_send"
	StatusDuplicate     Status = "duplicate"
	StatusReplied       Status = "replied"
)

// Notices shown to the user.
var (
	NoticeCredentialRequired = session.Notice{
		Kind:   session.NoticeCredentialRequired,
		Title:  "API Key Required",
		Detail: "Please enter your API key to use the chat.",
	}
	NoticeResponseFailed = session.Notice{
		Kind:   session.NoticeResponseFailed,
		Title:  "Error",
		Detail: "Failed to get a response. Please try again.",
	}
)

// Request is one submission.
type Request struct {
	Text string
	// IdempotencyKey, if set, makes a retried submission a no-op while the
	// key is remembered.
	IdempotencyKey string
}

// Result is the outcome of a completed dispatch.
type Result struct {
	Status           Status           `json:"status"`
	DispatchID       string           `json:"dispatch_id,omitempty"`
	UserMessage      *session.Message `json:"user_message,omitempty"`
	AssistantMessage *session.Message `json:"assistant_message,omitempty"`
}

// Options configures a Dispatcher.
type Options struct {
	Responder responder.Responder
	// Usage and DailyLimit enforce the basic plan quota. A nil Usage or a
	// DailyLimit of zero disables it.
	Usage      store.UsageStore
	DailyLimit int
	// Dedupe remembers idempotency keys. Nil disables idempotency.
	Dedupe *dedupe.Cache
	// Diagrams receives flowcharts that replies carry inline. Nil gives the
	// dispatcher a private catalog.
	Diagrams *diagram.Catalog
	Now      func() time.Time
	Logger   *slog.Logger
}

// Dispatcher runs the dispatch flow against one session.
type Dispatcher struct {
	session    *session.Store
	responder  responder.Responder
	usage      store.UsageStore
	dailyLimit int
	dedupe     *dedupe.Cache
	diagrams   *diagram.Catalog
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[string]*Dispatch
	wg       sync.WaitGroup
}

// New creates a Dispatcher. opts.Responder is required.
func New(sess *session.Store, opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Diagrams == nil {
		opts.Diagrams = diagram.NewCatalog()
	}
	return &Dispatcher{
		session:    sess,
		responder:  opts.Responder,
		usage:      opts.Usage,
		dailyLimit: opts.DailyLimit,
		dedupe:     opts.Dedupe,
		diagrams:   opts.Diagrams,
		now:        opts.Now,
		logger:     opts.Logger.With("component", "dispatch"),
		inflight:   make(map[string]*Dispatch),
	}
}

// Dispatch is a submission that passed validation. Its outcome is available
// once Done is closed.
type Dispatch struct {
	ID string

	done   chan struct{}
	result *Result
	err    error
	cancel context.CancelFunc
}

func completed(res *Result) *Dispatch {
	d := &Dispatch{ID: res.DispatchID, done: make(chan struct{}), result: res}
	close(d.done)
	return d
}

// Done is closed when the dispatch has finished.
func (d *Dispatch) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the dispatch finishes or ctx ends. Abandoning the wait
// does not stop the dispatch; use Dispatcher.Cancel for that.
func (d *Dispatch) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// outcome blocks until the dispatch has settled, including the return to idle.
func (d *Dispatch) outcome() (*Result, error) {
	<-d.done
	return d.result, d.err
}

// Submit runs the whole flow and waits for the reply. The dispatch is bound
// to ctx, so cancelling ctx ends it through the failure path and Submit
// returns the resulting *FailedError once the session is idle again.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (*Result, error) {
	disp, err := d.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return disp.outcome()
}

// Start validates req, records the user message, and begins awaiting the
// Responder in the background. Validation failures are returned directly and
// leave the session untouched. The returned Dispatch is bound to ctx.
func (d *Dispatcher) Start(ctx context.Context, req Request) (*Dispatch, error) {
	if strings.TrimSpace(req.Text) == "" {
		return completed(&Result{Status: StatusNothingToSend}), nil
	}

	credential := d.session.Credential()
	if credential == "" {
		d.session.Notify(NoticeCredentialRequired)
		return nil, ErrCredentialRequired
	}

	claimed := false
	if req.IdempotencyKey != "" && d.dedupe != nil {
		if !d.dedupe.Claim(req.IdempotencyKey) {
			d.logger.Info("duplicate submission ignored", "idempotency_key", req.IdempotencyKey)
			return completed(&Result{Status: StatusDuplicate}), nil
		}
		claimed = true
	}
	release := func() {
		if claimed {
			d.dedupe.Release(req.IdempotencyKey)
		}
	}

	day := store.DayKey(d.now())
	if err := d.checkQuota(ctx, day); err != nil {
		release()
		return nil, err
	}

	if !d.session.TryBeginDispatch() {
		release()
		return nil, ErrDispatchInFlight
	}

	// Record first: the user turn is kept even if the Responder fails.
	userMsg := d.session.Append(req.Text, session.RoleUser, "", "")
	history := d.session.Messages()
	d.countQuestion(ctx, day)

	d.logger.Debug("user message recorded", "message_id", userMsg.ID, "history_len", len(history))
	return d.launch(ctx, history, credential, &userMsg, release), nil
}

// Regenerate asks the Responder again for the last user message and appends
// the new reply after the existing history. Nothing is removed or edited.
func (d *Dispatcher) Regenerate(ctx context.Context) (*Result, error) {
	credential := d.session.Credential()
	if credential == "" {
		d.session.Notify(NoticeCredentialRequired)
		return nil, ErrCredentialRequired
	}
	if !d.session.TryBeginDispatch() {
		return nil, ErrDispatchInFlight
	}

	// One copy: a concurrent Clear must not shift the index under us.
	msgs := d.session.Messages()
	idx := session.LastIndex(msgs, session.RoleUser)
	if idx < 0 {
		d.session.EndDispatch()
		return nil, ErrNoUserMessage
	}
	history := msgs[:idx+1]
	userMsg := history[idx]

	return d.launch(ctx, history, credential, &userMsg, nil).outcome()
}

// launch must be called after a successful TryBeginDispatch; the dispatch
// goroutine owns ending it. release, if set, forgets the submission's
// idempotency key when the Responder fails so the caller can retry.
func (d *Dispatcher) launch(ctx context.Context, history []session.Message, credential string, userMsg *session.Message, release func()) *Dispatch {
	dctx, cancel := context.WithCancel(ctx)
	disp := &Dispatch{
		ID:     uuid.New().String(),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	d.mu.Lock()
	d.inflight[disp.ID] = disp
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(dctx, disp, history, credential, userMsg, release)
	return disp
}

func (d *Dispatcher) run(ctx context.Context, disp *Dispatch, history []session.Message, credential string, userMsg *session.Message, release func()) {
	defer d.wg.Done()
	defer close(disp.done)
	defer d.session.EndDispatch()
	defer func() {
		disp.cancel()
		d.mu.Lock()
		delete(d.inflight, disp.ID)
		d.mu.Unlock()
	}()

	start := d.now()
	reply, err := d.respond(ctx, history, credential)
	if err != nil {
		d.logger.Warn("responder failed",
			"dispatch_id", disp.ID,
			"kind", responder.KindOf(err),
			"error", err)
		if release != nil {
			release()
		}
		d.session.Notify(NoticeResponseFailed)
		disp.err = &FailedError{DispatchID: disp.ID, Err: err}
		return
	}

	prefs := d.session.Preferences()
	if !prefs.ShowImages {
		reply.ImageURL = ""
	}
	if !prefs.ShowDiagrams {
		reply.Diagram = ""
		reply.DiagramPayload = ""
	}
	if reply.DiagramPayload != "" {
		reply.Diagram = d.registerDiagram(reply.DiagramPayload)
	}
	assistant := d.session.Append(reply.Text, session.RoleAssistant, reply.Diagram, reply.ImageURL)

	d.logger.Info("reply recorded",
		"dispatch_id", disp.ID,
		"message_id", assistant.ID,
		"has_diagram", assistant.HasDiagram(),
		"has_image", assistant.ImageURL != "",
		"duration", d.now().Sub(start))

	disp.result = &Result{
		Status:           StatusReplied,
		DispatchID:       disp.ID,
		UserMessage:      userMsg,
		AssistantMessage: &assistant,
	}
}

// registerDiagram stores an inline flowchart under a fresh reference that is
// safe to use as a URL path segment.
func (d *Dispatcher) registerDiagram(payload string) string {
	ref := "flowchart-" + uuid.New().String()
	d.diagrams.Register(ref, []byte(payload))
	return ref
}

// respond calls the Responder, turning a panic into an ordinary failure so
// the session always returns to idle.
func (d *Dispatcher) respond(ctx context.Context, history []session.Message, credential string) (reply responder.Reply, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("responder panicked: %v", rec)
		}
	}()
	return d.responder.Respond(ctx, history, credential)
}

// Cancel stops the in-flight dispatch with the given ID. It reports whether
// such a dispatch was running.
func (d *Dispatcher) Cancel(dispatchID string) bool {
	d.mu.Lock()
	disp, ok := d.inflight[dispatchID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	disp.cancel()
	d.logger.Info("dispatch cancelled", "dispatch_id", dispatchID)
	return true
}

// InFlight returns the ID of the running dispatch, if any.
func (d *Dispatcher) InFlight() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.inflight {
		return id, true
	}
	return "", false
}

// Close cancels any running dispatch and waits for it to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for _, disp := range d.inflight {
		disp.cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}
