// Package history reconstructs the conversation context shown to the model
// for a triggering message.
package history

import (
	"context"
	"log/slog"

	"github.com/st4s1k/stas-gpt/internal/vk"
)

// Fetcher is the platform surface the resolver needs.
type Fetcher interface {
	GetHistory(ctx context.Context, peerID int64, count int) ([]*vk.Message, error)
	GetByConversationMessageID(ctx context.Context, peerID, cmid int64) (*vk.Message, error)
}

// Resolver produces the ordered context sequence for a trigger message,
// oldest first.
type Resolver struct {
	fetcher Fetcher
	limit   int
	logger  *slog.Logger
}

func NewResolver(log *slog.Logger, fetcher Fetcher, limit int) *Resolver {
	if limit <= 0 {
		limit = 1
	}
	return &Resolver{
		fetcher: fetcher,
		limit:   limit,
		logger:  log.With(slog.String("service", "history")),
	}
}

// Resolve selects the traversal policy by chat kind and payload shape.
// The returned sequence always reads oldest to newest.
func (r *Resolver) Resolve(ctx context.Context, msg *vk.Message) ([]*vk.Message, error) {
	if !msg.IsGroupChat() {
		return r.directHistory(ctx, msg.PeerID)
	}
	if len(msg.FwdMessages) > 0 {
		return forwardContext(msg), nil
	}
	if msg.ConversationMessageID != 0 {
		return r.replyChain(ctx, msg), nil
	}
	return []*vk.Message{msg}, nil
}

// directHistory fetches linear private-chat history. The platform returns
// newest first; a fetch failure here is terminal for the invocation.
func (r *Resolver) directHistory(ctx context.Context, peerID int64) ([]*vk.Message, error) {
	items, err := r.fetcher.GetHistory(ctx, peerID, r.limit)
	if err != nil {
		return nil, err
	}
	reverse(items)
	return items, nil
}

// forwardContext treats the forward batch as the context, with the trigger
// message last. The batch is embedded in the payload in delivery order,
// oldest first.
func forwardContext(msg *vk.Message) []*vk.Message {
	out := make([]*vk.Message, 0, len(msg.FwdMessages)+1)
	out = append(out, msg.FwdMessages...)
	out = append(out, msg)
	return out
}

// replyChain walks upward from the trigger, one fetch per hop, following
// each fetched message's own reply pointer. The walk is bounded by the
// history limit; a failed hop ends the walk with whatever accumulated (a
// partial chain is acceptable, not an error).
func (r *Resolver) replyChain(ctx context.Context, msg *vk.Message) []*vk.Message {
	chain := make([]*vk.Message, 0, r.limit)
	cmid := msg.ConversationMessageID
	for len(chain) < r.limit && cmid != 0 {
		fetched, err := r.fetcher.GetByConversationMessageID(ctx, msg.PeerID, cmid)
		if err != nil {
			r.logger.Warn("reply chain walk stopped",
				slog.Int64("peer_id", msg.PeerID),
				slog.Int64("cmid", cmid),
				slog.Int("accumulated", len(chain)),
				slog.Any("error", err),
			)
			break
		}
		chain = append(chain, fetched)
		cmid = 0
		if fetched.ReplyMessage != nil {
			cmid = fetched.ReplyMessage.ConversationMessageID
		}
	}
	if len(chain) == 0 {
		// Even a fully failed walk leaves the trigger itself to answer.
		return []*vk.Message{msg}
	}
	reverse(chain)
	return chain
}

func reverse(msgs []*vk.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
