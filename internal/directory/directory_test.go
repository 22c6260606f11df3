package directory

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/st4s1k/stas-gpt/internal/store"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

type fakeFetcher struct {
	users map[int64]vk.User
	calls [][]int64
	err   error
}

func (f *fakeFetcher) GetUsers(_ context.Context, ids []int64) ([]vk.User, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]vk.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func TestCollectUserIDs(t *testing.T) {
	identity := vk.Identity{GroupID: 999}
	msg := &vk.Message{
		FromID: 1,
		ReplyMessage: &vk.Message{
			FromID: 2,
			FwdMessages: []*vk.Message{
				{FromID: 3},
				{FromID: 1}, // duplicate
			},
		},
		FwdMessages: []*vk.Message{
			{FromID: -999},                           // the bot itself
			{FromID: 4, ReplyMessage: &vk.Message{FromID: 5}}, // nested reply inside a forward
		},
	}
	got := CollectUserIDs(msg, identity)
	want := []int64{1, 2, 3, 4, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectUserIDs() = %v, want %v", got, want)
	}
}

func TestDirectory_ResolveNames(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	identity := vk.Identity{GroupID: 999}
	fetcher := &fakeFetcher{users: map[int64]vk.User{
		1: {ID: 1, ScreenName: "alice"},
		2: {ID: 2, FirstName: "Bob"},
	}}

	dir := New(slog.Default(), kv, fetcher, identity, "@stas_gpt")
	if err := dir.Load(ctx); err != nil {
		t.Fatal(err)
	}

	msg := &vk.Message{FromID: 1, ReplyMessage: &vk.Message{FromID: 2}}
	if err := dir.ResolveNames(ctx, msg); err != nil {
		t.Fatalf("ResolveNames(): %v", err)
	}
	if len(fetcher.calls) != 1 || !reflect.DeepEqual(fetcher.calls[0], []int64{1, 2}) {
		t.Fatalf("expected one batch fetch for [1 2], got %v", fetcher.calls)
	}

	name, err := dir.GetName(1)
	if err != nil || name != "@alice" {
		t.Errorf("GetName(1) = %q, %v; want @alice", name, err)
	}
	name, err = dir.GetName(2)
	if err != nil || name != "Bob" {
		t.Errorf("GetName(2) = %q, %v; want Bob", name, err)
	}

	// Already-known names must not be fetched again, even by a new
	// invocation over the same store.
	second := New(slog.Default(), kv, fetcher, identity, "@stas_gpt")
	if err := second.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := second.ResolveNames(ctx, msg); err != nil {
		t.Fatalf("ResolveNames() second invocation: %v", err)
	}
	if len(fetcher.calls) != 1 {
		t.Errorf("expected persisted cache to absorb the second resolve, got %d fetches", len(fetcher.calls))
	}
}

func TestDirectory_GetName(t *testing.T) {
	identity := vk.Identity{GroupID: 999}
	dir := New(slog.Default(), store.NewMemory(), &fakeFetcher{}, identity, "@stas_gpt")

	// The bot's own id short-circuits to the mention token, negated form
	// included.
	for _, id := range []int64{999, -999} {
		name, err := dir.GetName(id)
		if err != nil || name != "@stas_gpt" {
			t.Errorf("GetName(%d) = %q, %v; want mention token", id, name, err)
		}
	}

	if _, err := dir.GetName(123); !errors.Is(err, ErrNameNotFound) {
		t.Errorf("GetName(unknown) error = %v, want ErrNameNotFound", err)
	}
}

func TestDirectory_ResolveNamesFetchFailure(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{err: errors.New("api down")}
	dir := New(slog.Default(), store.NewMemory(), fetcher, vk.Identity{GroupID: 999}, "@stas_gpt")
	if err := dir.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := dir.ResolveNames(ctx, &vk.Message{FromID: 1}); err == nil {
		t.Error("ResolveNames() should surface the fetch failure")
	}
}
