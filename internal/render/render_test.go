package render

import (
	"log/slog"
	"testing"

	"github.com/st4s1k/stas-gpt/internal/directory"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

type fakeNames map[int64]string

func (f fakeNames) GetName(id int64) (string, error) {
	name, ok := f[id]
	if !ok {
		return "", directory.ErrNameNotFound
	}
	return name, nil
}

func TestRender_PlainMessage(t *testing.T) {
	r := NewRenderer(slog.Default(), fakeNames{})
	got := r.Render(&vk.Message{FromID: 1, Text: "hello"})
	if want := "hello\n"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_ReplyQuotedUnderHeader(t *testing.T) {
	names := fakeNames{2: "A"}
	trigger := &vk.Message{
		FromID: 1,
		Text:   "hi",
		ReplyMessage: &vk.Message{
			FromID: 2,
			Text:   "yo",
		},
	}

	r := NewRenderer(slog.Default(), names)
	got := r.Render(trigger)
	want := "hi\n\n[context]:\nReplying to A:\n  \"yo\"\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_HeaderEmittedOncePerPath(t *testing.T) {
	names := fakeNames{2: "A", 3: "B"}
	trigger := &vk.Message{
		FromID: 1,
		Text:   "hi",
		ReplyMessage: &vk.Message{
			FromID: 2,
			Text:   "yo",
			ReplyMessage: &vk.Message{
				FromID: 3,
				Text:   "base",
			},
		},
	}

	r := NewRenderer(slog.Default(), names)
	got := r.Render(trigger)
	want := "hi\n" +
		"\n[context]:\n" +
		"Replying to A:\n" +
		"  \"yo\"\n" +
		"  Replying to B:\n" +
		"    \"base\"\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_ForwardedSiblings(t *testing.T) {
	names := fakeNames{2: "A", 3: "B"}
	trigger := &vk.Message{
		FromID: 1,
		Text:   "look",
		FwdMessages: []*vk.Message{
			{FromID: 2, Text: "one"},
			{FromID: 3, Text: "two"},
		},
	}

	r := NewRenderer(slog.Default(), names)
	got := r.Render(trigger)
	want := "look\n" +
		"\n[context]:\n" +
		"  Forwarded message from A:\n" +
		"    \"one\"\n" +
		"  Forwarded message from B:\n" +
		"    \"two\"\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_MissingNameLeavesGap(t *testing.T) {
	trigger := &vk.Message{
		FromID: 1,
		Text:   "hi",
		ReplyMessage: &vk.Message{
			FromID: 42,
			Text:   "yo",
		},
	}

	r := NewRenderer(slog.Default(), fakeNames{})
	got := r.Render(trigger)
	want := "hi\n\n[context]:\nReplying to:\n  \"yo\"\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_MultilineTextIndented(t *testing.T) {
	names := fakeNames{2: "A"}
	trigger := &vk.Message{
		FromID: 1,
		Text:   "hi",
		ReplyMessage: &vk.Message{
			FromID: 2,
			Text:   "line one\nline two",
		},
	}

	r := NewRenderer(slog.Default(), names)
	got := r.Render(trigger)
	want := "hi\n\n[context]:\nReplying to A:\n  \"line one\n  line two\"\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_NilMessage(t *testing.T) {
	r := NewRenderer(slog.Default(), fakeNames{})
	if got := r.Render(nil); got != "" {
		t.Errorf("Render(nil) = %q, want empty", got)
	}
}
