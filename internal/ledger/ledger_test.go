package ledger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/st4s1k/stas-gpt/internal/store"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name      string
		peerID    int64
		messageID int64
		want      string
	}{
		{"direct chat", 123, 5, "m_123_5"},
		{"group chat", vk.GroupChatThreshold + 1, 5, "c_2000000001_5"},
		{"same ids different kind do not alias", vk.GroupChatThreshold, 5, "m_2000000000_5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.peerID, tt.messageID); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLedger_MarkAndReload(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	led := New(slog.Default(), kv)
	if err := led.Load(ctx); err != nil {
		t.Fatalf("Load() on empty store: %v", err)
	}

	key := Key(100, 7)
	if led.IsAnswered(key) {
		t.Fatal("fresh ledger should not contain the key")
	}
	led.MarkAnswered(key)
	if !led.IsAnswered(key) {
		t.Fatal("mark did not stick")
	}
	if err := led.Persist(ctx); err != nil {
		t.Fatalf("Persist(): %v", err)
	}

	// A second invocation loads the shared store and must reject the key.
	reloaded := New(slog.Default(), kv)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() after persist: %v", err)
	}
	if !reloaded.IsAnswered(key) {
		t.Error("persisted key lost across invocations")
	}
	if reloaded.IsAnswered(Key(100, 8)) {
		t.Error("unexpected key reported as answered")
	}
}

func TestLedger_LoadCorruptBlob(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	if err := kv.Put(ctx, storeKey, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	led := New(slog.Default(), kv)
	if err := led.Load(ctx); err != nil {
		t.Fatalf("Load() should tolerate a corrupt blob: %v", err)
	}
	if led.IsAnswered(Key(1, 1)) {
		t.Error("corrupt blob should yield an empty ledger")
	}
}
