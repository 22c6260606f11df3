package vk

import (
	"context"
	"log/slog"
)

// Identity is the bot's own community id, resolved once per process.
// Community-authored messages carry the negated id in from_id, so ownership
// checks compare absolute values.
type Identity struct {
	GroupID int64
}

// IsBot reports whether userID belongs to the bot itself.
func (id Identity) IsBot(userID int64) bool {
	if userID == 0 || id.GroupID == 0 {
		return false
	}
	if userID < 0 {
		userID = -userID
	}
	return userID == id.GroupID
}

// ResolveIdentity uses the configured group id when present and falls back
// to discovering it from the API.
func ResolveIdentity(ctx context.Context, log *slog.Logger, client *Client, configured int64) (Identity, error) {
	if configured != 0 {
		return Identity{GroupID: configured}, nil
	}
	groupID, err := client.GetGroupID(ctx)
	if err != nil {
		return Identity{}, err
	}
	log.Info("bot identity discovered", slog.Int64("group_id", groupID))
	return Identity{GroupID: groupID}, nil
}
