// ABOUTME: Tests for the chat REPL
// ABOUTME: Scripts a full session against an in-memory store and the stub responder

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mediflow/internal/config"
	"github.com/2389/mediflow/internal/responder"
	"github.com/2389/mediflow/internal/store"
)

func newTestApp(t *testing.T) (*app, *store.MockStore) {
	t.Helper()
	color.NoColor = true

	cfg := config.Default(t.TempDir())
	cfg.Credentials.EncryptionKey = "test"
	cfg.Diagram.RenderDelay = 5 * time.Millisecond

	kv := store.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stub := responder.NewStub(responder.StubOptions{Intn: func(int) int { return 0 }, Logger: logger})

	a := wireApp(context.Background(), cfg, kv, stub, logger)
	t.Cleanup(func() { _ = a.Close() })
	return a, kv
}

func runScript(t *testing.T, a *app, outDir string, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, newREPL(a, in, &out, outDir).Run(context.Background()))
	return out.String()
}

func TestREPL_Session(t *testing.T) {
	a, kv := newTestApp(t)
	outDir := t.TempDir()

	out := runScript(t, a, outDir,
		"What causes heart failure?",
		"/key sk-test",
		"How do I examine the heart?",
		"/diagram 2",
		"/export 2",
		"/transcript",
		"/premium on",
		"/transcript html",
		"/quit",
		"never reached",
	)

	assert.Contains(t, out, "No API key saved yet")
	assert.Contains(t, out, responder.Suggestions[0])
	assert.Contains(t, out, "API Key Required: Please enter your API key to use the chat.")
	assert.Contains(t, out, "API key saved.")
	assert.Contains(t, out, "[2] MediFlow")
	assert.Contains(t, out, "Cardiovascular examination")
	assert.Contains(t, out, "flowchart attached: /diagram 2, /export 2")
	assert.Contains(t, out, "Loading flowchart")
	assert.Contains(t, out, "1. History Taking")
	assert.Contains(t, out, "6. Treatment Plan")
	assert.Contains(t, out, "premium feature")
	assert.Contains(t, out, "Premium plan active.")

	assert.Equal(t, 2, a.session.Len(), "the rejected question was never recorded")
	saved, err := kv.GetSecret(context.Background(), "credential")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", saved)

	flowcharts, err := filepath.Glob(filepath.Join(outDir, "medical-flowchart-*.json"))
	require.NoError(t, err)
	require.Len(t, flowcharts, 1)
	data, err := os.ReadFile(flowcharts[0])
	require.NoError(t, err)
	assert.Equal(t, a.renderer.Catalog().Payload("sample-flowchart-data"), data)

	transcripts, err := filepath.Glob(filepath.Join(outDir, "mediflow-transcript-*.html"))
	require.NoError(t, err)
	assert.Len(t, transcripts, 1)
}

func TestREPL_Commands(t *testing.T) {
	a, _ := newTestApp(t)
	a.session.SetCredential("sk-test")

	out := runScript(t, a, t.TempDir(),
		"/regen",
		"/key   ",
		"/images off",
		"/diagrams maybe",
		"Tell me about lungs",
		"/diagram 2",
		"/diagram 9",
		"/regen",
		"/status",
		"/clear",
		"/bogus",
	)

	assert.Contains(t, out, "Nothing to regenerate yet.")
	assert.Contains(t, out, "credential required")
	assert.Contains(t, out, "images: false, diagrams: true")
	assert.Contains(t, out, "usage: /diagrams on|off")
	assert.Contains(t, out, "respiratory assessment")
	assert.Contains(t, out, "Message 2 has no flowchart.")
	assert.Contains(t, out, "No message 9.")
	assert.Contains(t, out, "[3] MediFlow")
	assert.Contains(t, out, "plan: basic, messages: 3, api key: true")
	assert.Contains(t, out, "remaining today: 4")
	assert.Contains(t, out, "Conversation cleared.")
	assert.Contains(t, out, "Unknown command /bogus")
	assert.Zero(t, a.session.Len())
}
