// Package render turns a message and its nested reply/forward structure
// into the annotated text block submitted to the model.
package render

import (
	"log/slog"
	"strings"

	"github.com/st4s1k/stas-gpt/internal/vk"
)

const (
	indentUnit    = "  "
	contextHeader = "[context]:"

	// maxDepth guards against malformed payloads with pathological
	// nesting; well-formed input is bounded by history traversal.
	maxDepth = 64
)

// NameResolver supplies display names for rendered context lines.
type NameResolver interface {
	GetName(id int64) (string, error)
}

type Renderer struct {
	names  NameResolver
	logger *slog.Logger
}

func NewRenderer(log *slog.Logger, names NameResolver) *Renderer {
	return &Renderer{
		names:  names,
		logger: log.With(slog.String("service", "render")),
	}
}

// Render produces the text block for one message tree.
func (r *Renderer) Render(msg *vk.Message) string {
	return r.render(msg, 0, false, 0)
}

func (r *Renderer) render(msg *vk.Message, indent int, inContext bool, depth int) string {
	if msg == nil || depth > maxDepth {
		return ""
	}
	indentStr := strings.Repeat(indentUnit, indent)
	var b strings.Builder

	if msg.Text != "" {
		text := msg.Text
		if inContext {
			text = `"` + text + `"`
		}
		b.WriteString(indentLines(text, indentStr))
	}

	if msg.ReplyMessage != nil || len(msg.FwdMessages) > 0 {
		if !inContext {
			b.WriteString(indentStr + "\n" + contextHeader + "\n")
			inContext = true
		}
	}

	if reply := msg.ReplyMessage; reply != nil {
		b.WriteString(indentStr + annotation("Replying to", r.resolveName(reply.FromID)) + "\n")
		b.WriteString(r.render(reply, indent+1, inContext, depth+1))
	}

	if len(msg.FwdMessages) > 0 {
		fwdIndent := strings.Repeat(indentUnit, indent+1)
		for _, fwd := range msg.FwdMessages {
			b.WriteString(fwdIndent + annotation("Forwarded message from", r.resolveName(fwd.FromID)) + "\n")
			b.WriteString(r.render(fwd, indent+2, inContext, depth+1))
		}
	}

	return b.String()
}

// resolveName returns the display name, or empty when the author cannot be
// resolved. A missing name is a gap in the annotation, not a render failure.
func (r *Renderer) resolveName(id int64) string {
	name, err := r.names.GetName(id)
	if err != nil {
		r.logger.Warn("name lookup failed during render",
			slog.Int64("user_id", id),
			slog.Any("error", err),
		)
		return ""
	}
	return name
}

func annotation(prefix, name string) string {
	if name == "" {
		return prefix + ":"
	}
	return prefix + " " + name + ":"
}

func indentLines(text, indentStr string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = indentStr + line
	}
	return strings.Join(lines, "\n") + "\n"
}
