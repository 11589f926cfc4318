// ABOUTME: The chat command: an interactive REPL over the session engine
// ABOUTME: Slash commands manage settings, diagrams, and exports; other input is a question

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/dispatch"
	"github.com/2389/mediflow/internal/responder"
	"github.com/2389/mediflow/internal/session"
	"github.com/2389/mediflow/internal/transcript"
)

const chatHelp = `Commands:
  /key KEY            save your API key
  /premium [on|off]   switch plan (toggles without an argument)
  /images on|off      show or hide images on replies
  /diagrams on|off    show or hide flowcharts on replies
  /regen              ask again for the last question
  /diagram N          show the flowchart on message N
  /export N           save the flowchart on message N to a file
  /transcript [md|html]  save the conversation (premium)
  /status             show plan and remaining questions
  /clear              start a new conversation
  /quit               leave`

func newChatCmd(configPath func() (string, bool)) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive study session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, explicit := configPath()
			cfg, err := loadConfig(path, explicit)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging, os.Stderr)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return newREPL(a, cmd.InOrStdin(), cmd.OutOrStdout(), outDir).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for exported files")
	return cmd
}

// repl reads commands and questions line by line.
type repl struct {
	app    *app
	in     *bufio.Scanner
	out    io.Writer
	outDir string

	notices <-chan session.Event
	subID   string

	accent *color.Color
	dim    *color.Color
	warn   *color.Color
	bad    *color.Color
}

func newREPL(a *app, in io.Reader, out io.Writer, outDir string) *repl {
	return &repl{
		app:    a,
		in:     bufio.NewScanner(in),
		out:    out,
		outDir: outDir,
		accent: color.New(color.FgCyan, color.Bold),
		dim:    color.New(color.FgHiBlack),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed),
	}
}

// Run processes input until EOF, /quit, or ctx ends.
func (r *repl) Run(ctx context.Context) error {
	r.notices, r.subID = r.app.session.Subscribe(ctx)
	defer r.app.session.Unsubscribe(r.subID)

	r.accent.Fprintln(r.out, "MediFlow")
	r.dim.Fprintln(r.out, "Ask a medical question, or /help for commands.")
	if r.app.session.Credential() == "" {
		r.warn.Fprintln(r.out, "No API key saved yet. Use /key KEY first.")
	}
	r.printHistory()
	if r.app.session.Len() == 0 {
		r.dim.Fprintln(r.out, "Try one of:")
		for _, s := range responder.Suggestions {
			r.dim.Fprintf(r.out, "  • %s\n", s)
		}
	}

	for {
		fmt.Fprint(r.out, "\n> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := r.handle(ctx, r.in.Text()); quit {
			return nil
		}
		r.drainNotices()
	}
}

func (r *repl) handle(ctx context.Context, line string) (quit bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		r.ask(ctx, line)
		return false
	}

	fields := strings.Fields(trimmed)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/clear":
		r.app.session.Clear()
		r.dim.Fprintln(r.out, "Conversation cleared.")
	case "/key":
		r.setKey(strings.Join(args, " "))
	case "/premium":
		r.setPremium(args)
	case "/images", "/diagrams":
		r.setPreference(cmd, args)
	case "/regen":
		r.regenerate(ctx)
	case "/diagram":
		r.showDiagram(ctx, args)
	case "/export":
		r.exportDiagram(args)
	case "/transcript":
		r.exportTranscript(args)
	case "/status":
		r.status(ctx)
	default:
		r.bad.Fprintf(r.out, "Unknown command %s. Try /help.\n", cmd)
	}
	return false
}

func (r *repl) ask(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.dim.Fprintln(r.out, "thinking…")
	res, err := r.app.dispatcher.Submit(ctx, dispatch.Request{Text: text})
	if err != nil {
		r.reportError(err)
		return
	}
	if res.AssistantMessage != nil {
		r.printMessage(r.app.session.Len(), *res.AssistantMessage)
	}
}

func (r *repl) regenerate(ctx context.Context) {
	r.dim.Fprintln(r.out, "regenerating…")
	res, err := r.app.dispatcher.Regenerate(ctx)
	if err != nil {
		r.reportError(err)
		return
	}
	r.printMessage(r.app.session.Len(), *res.AssistantMessage)
}

// reportError prints rejections that carry no notice of their own.
// Notices are printed by drainNotices.
func (r *repl) reportError(err error) {
	switch {
	case errors.Is(err, dispatch.ErrCredentialRequired),
		errors.Is(err, dispatch.ErrQuotaExceeded),
		errors.Is(err, dispatch.ErrResponseFailed):
	case errors.Is(err, dispatch.ErrNoUserMessage):
		r.warn.Fprintln(r.out, "Nothing to regenerate yet.")
	default:
		r.bad.Fprintf(r.out, "Error: %v\n", err)
	}
}

func (r *repl) drainNotices() {
	for {
		select {
		case ev, ok := <-r.notices:
			if !ok {
				return
			}
			if ev.Type == session.EventNotice && ev.Notice != nil {
				r.bad.Fprintf(r.out, "%s: ", ev.Notice.Title)
				fmt.Fprintln(r.out, ev.Notice.Detail)
			}
		default:
			return
		}
	}
}

func (r *repl) setKey(key string) {
	if strings.TrimSpace(key) == "" {
		r.warn.Fprintln(r.out, "credential required: /key KEY")
		return
	}
	r.app.session.SetCredential(key)
	r.dim.Fprintln(r.out, "API key saved.")
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "yes":
		return true, true
	case "off", "false", "no":
		return false, true
	default:
		return false, false
	}
}

func (r *repl) setPremium(args []string) {
	premium := !r.app.session.Premium()
	if len(args) > 0 {
		v, ok := parseOnOff(args[0])
		if !ok {
			r.warn.Fprintln(r.out, "usage: /premium [on|off]")
			return
		}
		premium = v
	}
	r.app.session.SetPremium(premium)
	if premium {
		r.dim.Fprintln(r.out, "Premium plan active.")
	} else {
		r.dim.Fprintln(r.out, "Basic plan active.")
	}
}

func (r *repl) setPreference(cmd string, args []string) {
	if len(args) != 1 {
		r.warn.Fprintf(r.out, "usage: %s on|off\n", cmd)
		return
	}
	v, ok := parseOnOff(args[0])
	if !ok {
		r.warn.Fprintf(r.out, "usage: %s on|off\n", cmd)
		return
	}
	prefs := r.app.session.Preferences()
	if cmd == "/images" {
		prefs.ShowImages = v
	} else {
		prefs.ShowDiagrams = v
	}
	r.app.session.SetPreferences(prefs)
	r.dim.Fprintf(r.out, "images: %t, diagrams: %t\n", prefs.ShowImages, prefs.ShowDiagrams)
}

func (r *repl) status(ctx context.Context) {
	snap := r.app.session.Snapshot()
	plan := "basic"
	if snap.Premium {
		plan = "premium"
	}
	fmt.Fprintf(r.out, "plan: %s, messages: %d, api key: %t\n", plan, len(snap.Messages), snap.HasCredential)
	remaining, err := r.app.dispatcher.Remaining(ctx)
	switch {
	case err != nil:
		r.warn.Fprintf(r.out, "remaining today: unknown (%v)\n", err)
	case remaining >= 0:
		fmt.Fprintf(r.out, "remaining today: %d\n", remaining)
	}
}

// messageDiagram returns the diagram reference on message number arg (1-based).
func (r *repl) messageDiagram(args []string) (string, bool) {
	if len(args) != 1 {
		r.warn.Fprintln(r.out, "usage: a message number, e.g. /diagram 2")
		return "", false
	}
	n, err := strconv.Atoi(args[0])
	msgs := r.app.session.Messages()
	if err != nil || n < 1 || n > len(msgs) {
		r.warn.Fprintf(r.out, "No message %s.\n", args[0])
		return "", false
	}
	if !msgs[n-1].HasDiagram() {
		r.warn.Fprintf(r.out, "Message %d has no flowchart.\n", n)
		return "", false
	}
	return msgs[n-1].Diagram, true
}

func (r *repl) showDiagram(ctx context.Context, args []string) {
	ref, ok := r.messageDiagram(args)
	if !ok {
		return
	}
	viewer := r.app.renderer.Open(ref)
	defer viewer.Close()

	if viewer.Phase() == diagram.PhaseLoading {
		r.dim.Fprintln(r.out, "Loading flowchart…")
		select {
		case <-viewer.Ready():
		case <-ctx.Done():
			return
		}
	}
	viewer.ToggleExpanded()
	r.printView(viewer.Render())
}

func (r *repl) printView(view diagram.View) {
	if view.Status == diagram.ViewError {
		r.bad.Fprintln(r.out, view.Error)
		return
	}
	r.accent.Fprintln(r.out, view.Title)
	for i, step := range view.Steps {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, step.Title)
		if step.Detail != "" {
			r.dim.Fprintf(r.out, "     %s\n", step.Detail)
		}
		if i < len(view.Steps)-1 {
			r.dim.Fprintln(r.out, "     ↓")
		}
	}
}

func (r *repl) exportDiagram(args []string) {
	ref, ok := r.messageDiagram(args)
	if !ok {
		return
	}
	r.writeArtifact(r.app.renderer.Export(ref))
}

func (r *repl) exportTranscript(args []string) {
	format := ""
	if len(args) > 0 {
		format = args[0]
	}
	f, err := transcript.ParseFormat(format)
	if err != nil {
		r.warn.Fprintln(r.out, "usage: /transcript [md|html]")
		return
	}
	art, err := r.app.exporter.Export(r.app.session.Snapshot(), f)
	if errors.Is(err, transcript.ErrPremiumRequired) {
		r.warn.Fprintln(r.out, "Downloading the conversation is a premium feature. Use /premium on.")
		return
	}
	if err != nil {
		r.bad.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.writeArtifact(art)
}

func (r *repl) writeArtifact(art diagram.Artifact) {
	path := filepath.Join(r.outDir, art.Name)
	if err := os.WriteFile(path, art.Content, 0o644); err != nil {
		r.bad.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.dim.Fprintf(r.out, "Saved %s\n", path)
}

func (r *repl) printHistory() {
	for i, m := range r.app.session.Messages() {
		r.printMessage(i+1, m)
	}
}

func (r *repl) printMessage(n int, m session.Message) {
	speaker := r.accent.Sprint("MediFlow")
	if m.Role == session.RoleUser {
		speaker = "You"
	}
	fmt.Fprintf(r.out, "\n[%d] %s %s\n", n, speaker, r.dim.Sprint(m.Timestamp.Format("15:04")))
	fmt.Fprintln(r.out, m.Content)
	if m.ImageURL != "" {
		r.dim.Fprintf(r.out, "image: %s\n", m.ImageURL)
	}
	if m.HasDiagram() {
		r.dim.Fprintf(r.out, "flowchart attached: /diagram %d, /export %d\n", n, n)
	}
}
