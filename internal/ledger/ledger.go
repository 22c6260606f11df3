// Package ledger tracks which messages have already been answered, giving
// at-most-one reply per logical message id across duplicate webhook
// deliveries.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/st4s1k/stas-gpt/internal/store"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

// storeKey names the persisted set in the KV store.
const storeKey = "answeredMessages"

// Key derives the idempotency key for a message. The prefix separates the
// two id numbering schemes so group and direct ids cannot alias.
func Key(peerID, messageID int64) string {
	prefix := "m_"
	if peerID > vk.GroupChatThreshold {
		prefix = "c_"
	}
	return prefix + strconv.FormatInt(peerID, 10) + "_" + strconv.FormatInt(messageID, 10)
}

// Ledger is invocation-scoped state over the shared persistent set.
// Concurrent invocations race on the read-modify-write; duplicate
// deliveries are rare and at-most-one-reply is best effort.
type Ledger struct {
	kv     store.KV
	logger *slog.Logger
	keys   map[string]struct{}
}

func New(log *slog.Logger, kv store.KV) *Ledger {
	return &Ledger{
		kv:     kv,
		logger: log.With(slog.String("service", "ledger")),
		keys:   make(map[string]struct{}),
	}
}

// Load reads the persisted set. An absent key means an empty ledger.
func (l *Ledger) Load(ctx context.Context) error {
	raw, err := l.kv.Get(ctx, storeKey)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger load: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		// A corrupt blob would otherwise wedge the bot permanently.
		l.logger.Warn("ledger blob is corrupt, starting empty", slog.Any("error", err))
		return nil
	}
	for _, key := range keys {
		l.keys[key] = struct{}{}
	}
	return nil
}

func (l *Ledger) IsAnswered(key string) bool {
	_, ok := l.keys[key]
	return ok
}

func (l *Ledger) MarkAnswered(key string) {
	l.keys[key] = struct{}{}
}

// Persist writes the set back as a serialized list.
func (l *Ledger) Persist(ctx context.Context) error {
	keys := make([]string, 0, len(l.keys))
	for key := range l.keys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	raw, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("ledger persist: %w", err)
	}
	if err := l.kv.Put(ctx, storeKey, raw); err != nil {
		return fmt.Errorf("ledger persist: %w", err)
	}
	return nil
}
