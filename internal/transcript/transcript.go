// ABOUTME: Conversation transcript export as Markdown or HTML
// ABOUTME: Premium-only; diagrams are expanded to their steps through the catalog

package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/session"
)

// ErrPremiumRequired is returned when a basic plan session asks for an export.
var ErrPremiumRequired = errors.New("transcript export requires premium")

// ErrUnknownFormat is returned by ParseFormat for anything but md or html.
var ErrUnknownFormat = errors.New("unknown transcript format")

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat accepts "md", "markdown", "html" and the empty string (Markdown).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

const title = "MediFlow Conversation"

// Exporter builds transcript artifacts.
type Exporter struct {
	catalog *diagram.Catalog
	now     func() time.Time
	md      goldmark.Markdown
}

// NewExporter creates an Exporter. A nil catalog leaves diagrams unexpanded;
// a nil now uses time.Now.
func NewExporter(catalog *diagram.Catalog, now func() time.Time) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{
		catalog: catalog,
		now:     now,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Export renders snap in the given format. Only premium sessions may export.
func (e *Exporter) Export(snap session.Snapshot, format Format) (diagram.Artifact, error) {
	if !snap.Premium {
		return diagram.Artifact{}, ErrPremiumRequired
	}

	at := e.now()
	md := e.markdown(snap.Messages, at)
	name := fmt.Sprintf("mediflow-transcript-%d", at.UnixMilli())

	switch format {
	case FormatMarkdown:
		return diagram.Artifact{
			Name:        name + ".md",
			ContentType: "text/markdown; charset=utf-8",
			Content:     md,
		}, nil
	case FormatHTML:
		var body bytes.Buffer
		if err := e.md.Convert(md, &body); err != nil {
			return diagram.Artifact{}, fmt.Errorf("converting transcript: %w", err)
		}
		var doc bytes.Buffer
		fmt.Fprintf(&doc, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
		doc.Write(body.Bytes())
		doc.WriteString("</body>\n</html>\n")
		return diagram.Artifact{
			Name:        name + ".html",
			ContentType: "text/html; charset=utf-8",
			Content:     doc.Bytes(),
		}, nil
	default:
		return diagram.Artifact{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (e *Exporter) markdown(msgs []session.Message, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "_Exported %s_\n\n", at.UTC().Format(time.RFC3339))

	if len(msgs) == 0 {
		b.WriteString("_No messages._\n")
		return []byte(b.String())
	}

	for _, m := range msgs {
		speaker := "You"
		if m.Role == session.RoleAssistant {
			speaker = "MediFlow"
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n", speaker, m.Timestamp.UTC().Format("2006-01-02 15:04:05"))
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n\n")

		if m.ImageURL != "" {
			fmt.Fprintf(&b, "![Medical illustration](%s)\n\n", m.ImageURL)
		}
		if m.HasDiagram() {
			e.writeDiagram(&b, m.Diagram)
		}
	}
	return []byte(b.String())
}

func (e *Exporter) writeDiagram(b *strings.Builder, ref string) {
	if e.catalog == nil {
		fmt.Fprintf(b, "_Flowchart: %s_\n\n", ref)
		return
	}
	chart, err := diagram.Parse(e.catalog.Payload(ref))
	if err != nil {
		fmt.Fprintf(b, "_Flowchart: %s (unavailable)_\n\n", ref)
		return
	}
	fmt.Fprintf(b, "**Flowchart: %s**\n\n", chart.Title)
	for i, step := range chart.Steps {
		fmt.Fprintf(b, "%d. **%s**", i+1, step.Title)
		if step.Detail != "" {
			fmt.Fprintf(b, ": %s", step.Detail)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
