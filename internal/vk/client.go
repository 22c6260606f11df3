package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/st4s1k/stas-gpt/internal/config"
)

// ancestorCacheSize bounds the reply-chain fetch cache. Ancestors are
// immutable once posted, so entries never need invalidation.
const ancestorCacheSize = 256

var ErrMessageNotFound = errors.New("vk: message not found")

// Client calls the VK community API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	version       string
	logger        *slog.Logger
	ancestorCache *lru.Cache[string, *Message]
}

func NewClient(log *slog.Logger, cfg config.VKConfig) (*Client, error) {
	cache, err := lru.New[string, *Message](ancestorCacheSize)
	if err != nil {
		return nil, fmt.Errorf("vk ancestor cache: %w", err)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultVKBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = config.DefaultVKAPIVersion
	}
	return &Client{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		baseURL:       baseURL,
		token:         cfg.Token,
		version:       version,
		logger:        log.With(slog.String("service", "vk")),
		ancestorCache: cache,
	}, nil
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type apiEnvelope struct {
	Response json.RawMessage `json:"response"`
	Error    *apiError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("access_token", c.token)
	query.Set("v", c.version)

	endpoint := c.baseURL + "/" + method + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("vk %s: %w", method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vk %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("vk %s: read body: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vk %s: status %d", method, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("vk %s: decode: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("vk %s: code=%d msg=%s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if envelope.Response == nil {
		return fmt.Errorf("vk %s: empty response", method)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return fmt.Errorf("vk %s: decode response: %w", method, err)
	}
	return nil
}

// GetHistory fetches the most recent count messages for a peer, in the
// platform's native order (newest first).
func (c *Client) GetHistory(ctx context.Context, peerID int64, count int) ([]*Message, error) {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("count", strconv.Itoa(count))

	var result struct {
		Items []*Message `json:"items"`
	}
	if err := c.call(ctx, "messages.getHistory", params, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// GetByConversationMessageID fetches a single message by its
// per-conversation id. Responses are cached: reply-chain ancestors are
// re-requested across unrelated trigger messages.
func (c *Client) GetByConversationMessageID(ctx context.Context, peerID, cmid int64) (*Message, error) {
	cacheKey := strconv.FormatInt(peerID, 10) + "_" + strconv.FormatInt(cmid, 10)
	if cached, ok := c.ancestorCache.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("conversation_message_ids", strconv.FormatInt(cmid, 10))

	var result struct {
		Items []*Message `json:"items"`
	}
	if err := c.call(ctx, "messages.getByConversationMessageId", params, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, ErrMessageNotFound
	}
	c.ancestorCache.Add(cacheKey, result.Items[0])
	return result.Items[0], nil
}

// GetUsers batch-resolves user ids to profiles.
func (c *Client) GetUsers(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("user_ids", strings.Join(parts, ","))
	params.Set("fields", "screen_name")

	var users []User
	if err := c.call(ctx, "users.get", params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

type forwardRef struct {
	PeerID                 int64   `json:"peer_id"`
	ConversationMessageIDs []int64 `json:"conversation_message_ids"`
	IsReply                bool    `json:"is_reply"`
}

// SendMessage sends text to a peer as a reply-forward of the message
// identified by contextID.
func (c *Client) SendMessage(ctx context.Context, peerID, contextID int64, text string) error {
	forward, err := json.Marshal(forwardRef{
		PeerID:                 peerID,
		ConversationMessageIDs: []int64{contextID},
		IsReply:                true,
	})
	if err != nil {
		return fmt.Errorf("vk messages.send: %w", err)
	}

	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(peerID, 10))
	params.Set("message", text)
	params.Set("forward", string(forward))
	params.Set("random_id", strconv.FormatUint(uint64(uuid.New().ID()), 10))

	if err := c.call(ctx, "messages.send", params, nil); err != nil {
		return err
	}
	c.logger.Info("message sent",
		slog.Int64("peer_id", peerID),
		slog.Int64("context_id", contextID),
	)
	return nil
}

// GetGroupID resolves the community the access token belongs to.
func (c *Client) GetGroupID(ctx context.Context) (int64, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "groups.getById", url.Values{}, &raw); err != nil {
		return 0, err
	}

	type groupInfo struct {
		ID int64 `json:"id"`
	}
	// Older API versions return a bare array, newer ones wrap it.
	var groups []groupInfo
	if err := json.Unmarshal(raw, &groups); err != nil {
		var wrapped struct {
			Groups []groupInfo `json:"groups"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return 0, fmt.Errorf("vk groups.getById: decode: %w", err)
		}
		groups = wrapped.Groups
	}
	if len(groups) == 0 || groups[0].ID == 0 {
		return 0, fmt.Errorf("vk groups.getById: no group in response")
	}
	return groups[0].ID, nil
}
