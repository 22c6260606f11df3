// Package bot wires admission, context assembly, completion and reply
// sending into the per-invocation message flow.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/st4s1k/stas-gpt/internal/chat"
	"github.com/st4s1k/stas-gpt/internal/directory"
	"github.com/st4s1k/stas-gpt/internal/ledger"
	"github.com/st4s1k/stas-gpt/internal/render"
	"github.com/st4s1k/stas-gpt/internal/store"
	"github.com/st4s1k/stas-gpt/internal/vk"
)

// Platform is the outbound messaging surface the service needs directly.
type Platform interface {
	directory.UserFetcher
	SendMessage(ctx context.Context, peerID, contextID int64, text string) error
}

// ContextResolver produces the oldest-first context sequence for a trigger.
type ContextResolver interface {
	Resolve(ctx context.Context, msg *vk.Message) ([]*vk.Message, error)
}

// Completer generates one raw completion for an ordered turn sequence.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Message) (string, error)
}

type Service struct {
	platform  Platform
	history   ContextResolver
	completer Completer
	extractor chat.Extractor
	kv        store.KV
	identity  vk.Identity
	mention   string
	logger    *slog.Logger
}

func NewService(
	log *slog.Logger,
	platform Platform,
	history ContextResolver,
	completer Completer,
	extractor chat.Extractor,
	kv store.KV,
	identity vk.Identity,
	mention string,
) *Service {
	return &Service{
		platform:  platform,
		history:   history,
		completer: completer,
		extractor: extractor,
		kv:        kv,
		identity:  identity,
		mention:   mention,
		logger:    log.With(slog.String("service", "bot")),
	}
}

// HandleMessage runs one webhook delivery end to end. Validation and
// admission rejections return nil with no side effects; upstream failures
// are terminal and leave no ledger entry, so a platform retry can succeed.
func (s *Service) HandleMessage(ctx context.Context, msg *vk.Message) error {
	if err := msg.Validate(); err != nil {
		s.logger.Warn("message ignored", slog.Any("reason", err))
		return nil
	}

	led := ledger.New(s.logger, s.kv)
	if err := led.Load(ctx); err != nil {
		return err
	}
	if !s.ShouldAnswer(msg, led) {
		return nil
	}

	dir := directory.New(s.logger, s.kv, s.platform, s.identity, s.mention)
	if err := dir.Load(ctx); err != nil {
		return err
	}
	if err := dir.ResolveNames(ctx, msg); err != nil {
		return err
	}

	contextMsgs, err := s.history.Resolve(ctx, msg)
	if err != nil {
		return err
	}
	// Reply-chain ancestors can introduce authors absent from the trigger
	// tree; warm their names before rendering.
	for _, contextMsg := range contextMsgs {
		if err := dir.ResolveNames(ctx, contextMsg); err != nil {
			return err
		}
	}
	turns := s.buildTurns(contextMsgs, dir)

	raw, err := s.completer.Complete(ctx, turns)
	if err != nil {
		return err
	}
	answer := s.extractor.Extract(raw)

	if err := s.platform.SendMessage(ctx, msg.PeerID, msg.ContextID(), answer); err != nil {
		return err
	}

	// The mark must land after a successful send, and must survive the
	// caller abandoning the invocation: marking before sending would
	// swallow a legitimate reply on a transient send failure.
	led.MarkAnswered(ledger.Key(msg.PeerID, msg.ContextID()))
	if err := led.Persist(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("ledger persist failed after send", slog.Any("error", err))
	}
	return nil
}

// ShouldAnswer is the reply-admission gate. Direct chats are always
// eligible; group chats require the bot to be explicitly addressed, either
// by the mention token or by a reply to one of the bot's own messages.
func (s *Service) ShouldAnswer(msg *vk.Message, led *ledger.Ledger) bool {
	key := ledger.Key(msg.PeerID, msg.ContextID())
	if led.IsAnswered(key) {
		s.logger.Debug("message already answered", slog.String("key", key))
		return false
	}
	if !msg.IsGroupChat() {
		return true
	}
	if strings.Contains(msg.Text, s.mention) {
		return true
	}
	if msg.ReplyMessage != nil && s.identity.IsBot(msg.ReplyMessage.FromID) {
		return true
	}
	s.logger.Debug("message not addressed to bot",
		slog.Int64("peer_id", msg.PeerID),
		slog.Int64("context_id", msg.ContextID()),
	)
	return false
}

// buildTurns assigns roles over the oldest-first context sequence: the
// bot's own past messages become assistant turns, everything else user.
func (s *Service) buildTurns(msgs []*vk.Message, dir *directory.Directory) []chat.Message {
	renderer := render.NewRenderer(s.logger, dir)
	turns := make([]chat.Message, 0, len(msgs))
	for _, msg := range msgs {
		role := chat.RoleUser
		if s.identity.IsBot(msg.FromID) {
			role = chat.RoleAssistant
		}
		turns = append(turns, chat.Message{
			Role:    role,
			Content: renderer.Render(msg),
		})
	}
	return turns
}
