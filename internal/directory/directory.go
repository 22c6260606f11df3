// Package directory maps platform user ids to display names, backed by the
// persistent store so names survive restarts and are fetched at most once.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/st4s1k/stas-gpt/internal/store"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

const storeKey = "userNames"

var ErrNameNotFound = errors.New("directory: name not found")

// UserFetcher batch-resolves user ids to profiles.
type UserFetcher interface {
	GetUsers(ctx context.Context, ids []int64) ([]vk.User, error)
}

// Directory is invocation-scoped state over the shared persisted mapping.
// Entries are never invalidated in-band; a platform display-name change
// only shows up if the entry is evicted out-of-band.
type Directory struct {
	kv       store.KV
	fetcher  UserFetcher
	identity vk.Identity
	mention  string
	logger   *slog.Logger
	names    map[int64]string
}

func New(log *slog.Logger, kv store.KV, fetcher UserFetcher, identity vk.Identity, mention string) *Directory {
	return &Directory{
		kv:       kv,
		fetcher:  fetcher,
		identity: identity,
		mention:  mention,
		logger:   log.With(slog.String("service", "directory")),
		names:    make(map[int64]string),
	}
}

// Load reads the persisted mapping. An absent key means an empty directory.
func (d *Directory) Load(ctx context.Context) error {
	raw, err := d.kv.Get(ctx, storeKey)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("directory load: %w", err)
	}
	if err := json.Unmarshal(raw, &d.names); err != nil {
		d.logger.Warn("directory blob is corrupt, starting empty", slog.Any("error", err))
		d.names = make(map[int64]string)
	}
	return nil
}

// ResolveNames collects every distinct non-bot author id in the message's
// reply/forward tree, batch-fetches the unknown ones and persists the
// merged mapping.
func (d *Directory) ResolveNames(ctx context.Context, msg *vk.Message) error {
	ids := CollectUserIDs(msg, d.identity)

	unknown := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := d.names[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	users, err := d.fetcher.GetUsers(ctx, unknown)
	if err != nil {
		return fmt.Errorf("directory resolve: %w", err)
	}
	for _, user := range users {
		if name := user.DisplayName(); name != "" {
			d.names[user.ID] = name
		}
	}

	if err := d.persist(ctx); err != nil {
		return err
	}
	d.logger.Debug("directory updated", slog.Int("fetched", len(users)))
	return nil
}

// GetName returns the display name for a user id. The bot's own id
// short-circuits to the configured mention token.
func (d *Directory) GetName(id int64) (string, error) {
	if d.identity.IsBot(id) {
		return d.mention, nil
	}
	name, ok := d.names[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNameNotFound, id)
	}
	return name, nil
}

func (d *Directory) persist(ctx context.Context) error {
	raw, err := json.Marshal(d.names)
	if err != nil {
		return fmt.Errorf("directory persist: %w", err)
	}
	if err := d.kv.Put(ctx, storeKey, raw); err != nil {
		return fmt.Errorf("directory persist: %w", err)
	}
	return nil
}

// CollectUserIDs walks the reply/forward tree and returns the distinct
// non-bot author ids, sorted for deterministic fetches.
func CollectUserIDs(msg *vk.Message, identity vk.Identity) []int64 {
	seen := make(map[int64]struct{})
	accumulateUserIDs(msg, identity, seen)
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func accumulateUserIDs(msg *vk.Message, identity vk.Identity, seen map[int64]struct{}) {
	if msg == nil {
		return
	}
	if msg.FromID > 0 && !identity.IsBot(msg.FromID) {
		seen[msg.FromID] = struct{}{}
	}
	accumulateUserIDs(msg.ReplyMessage, identity, seen)
	for _, fwd := range msg.FwdMessages {
		accumulateUserIDs(fwd, identity, seen)
	}
}
