package vk

import "fmt"

// GroupChatThreshold partitions the peer id space: peers above it are
// multi-party conversations, peers at or below it are direct chats.
const GroupChatThreshold int64 = 2_000_000_000

// Message is one node of a possibly nested reply/forward tree as delivered
// by the platform. It is immutable once decoded.
type Message struct {
	ID                    int64      `json:"id,omitempty"`
	ConversationMessageID int64      `json:"conversation_message_id,omitempty"`
	PeerID                int64      `json:"peer_id,omitempty"`
	FromID                int64      `json:"from_id,omitempty"`
	Date                  int64      `json:"date,omitempty"`
	Text                  string     `json:"text,omitempty"`
	ReplyMessage          *Message   `json:"reply_message,omitempty"`
	FwdMessages           []*Message `json:"fwd_messages,omitempty"`
}

// IsGroupChat reports whether the message belongs to a multi-party
// conversation.
func (m *Message) IsGroupChat() bool {
	return m.PeerID > GroupChatThreshold
}

// ContextID is the message identity relevant for the chat kind: group chats
// number messages per conversation, direct chats use the global message id.
func (m *Message) ContextID() int64 {
	if m.IsGroupChat() {
		return m.ConversationMessageID
	}
	return m.ID
}

// Validate checks the structural shape an answerable message must have.
// A failure names the first missing field.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message is nil")
	}
	if m.Text == "" {
		return fmt.Errorf("message text is empty")
	}
	if m.PeerID == 0 {
		return fmt.Errorf("message peer_id is missing")
	}
	if m.FromID == 0 {
		return fmt.Errorf("message from_id is missing")
	}
	if m.ID == 0 && m.ConversationMessageID == 0 {
		return fmt.Errorf("message has neither id nor conversation_message_id")
	}
	return nil
}

// User is a directory entry as returned by users.get.
type User struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// DisplayName is the platform-formatted name stored in the directory.
func (u User) DisplayName() string {
	if u.ScreenName != "" {
		return "@" + u.ScreenName
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

// CallbackEvent is the webhook payload envelope, discriminated by Type.
type CallbackEvent struct {
	Type    string `json:"type"`
	GroupID int64  `json:"group_id,omitempty"`
	Object  struct {
		Message *Message `json:"message"`
	} `json:"object"`
}

const (
	EventTypeConfirmation = "confirmation"
	EventTypeMessageNew   = "message_new"
)
