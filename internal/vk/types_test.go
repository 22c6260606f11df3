package vk

import "testing"

func TestMessage_IsGroupChat(t *testing.T) {
	tests := []struct {
		name   string
		peerID int64
		want   bool
	}{
		{"direct user", 123456, false},
		{"threshold itself", GroupChatThreshold, false},
		{"just above threshold", GroupChatThreshold + 1, true},
		{"group chat", 2_000_000_042, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Message{PeerID: tt.peerID}
			if got := m.IsGroupChat(); got != tt.want {
				t.Errorf("IsGroupChat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage_ContextID(t *testing.T) {
	direct := &Message{PeerID: 100, ID: 7, ConversationMessageID: 3}
	if got := direct.ContextID(); got != 7 {
		t.Errorf("direct ContextID() = %d, want 7", got)
	}
	group := &Message{PeerID: GroupChatThreshold + 1, ID: 7, ConversationMessageID: 3}
	if got := group.ContextID(); got != 3 {
		t.Errorf("group ContextID() = %d, want 3", got)
	}
}

func TestMessage_Validate(t *testing.T) {
	valid := Message{ID: 1, PeerID: 100, FromID: 42, Text: "hello"}
	tests := []struct {
		name    string
		mutate  func(m *Message)
		wantErr bool
	}{
		{"valid direct", func(m *Message) {}, false},
		{"valid group id only", func(m *Message) { m.ID = 0; m.ConversationMessageID = 5 }, false},
		{"missing text", func(m *Message) { m.Text = "" }, true},
		{"missing peer", func(m *Message) { m.PeerID = 0 }, true},
		{"missing author", func(m *Message) { m.FromID = 0 }, true},
		{"missing both ids", func(m *Message) { m.ID = 0; m.ConversationMessageID = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			if err := m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	var nilMsg *Message
	if err := nilMsg.Validate(); err == nil {
		t.Error("Validate() on nil message should fail")
	}
}

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"screen name preferred", User{ScreenName: "stas", FirstName: "Stas", LastName: "K"}, "@stas"},
		{"full name fallback", User{FirstName: "Stas", LastName: "K"}, "Stas K"},
		{"first name only", User{FirstName: "Stas"}, "Stas"},
		{"last name only", User{LastName: "K"}, "K"},
		{"empty", User{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentity_IsBot(t *testing.T) {
	id := Identity{GroupID: 222}
	tests := []struct {
		name   string
		userID int64
		want   bool
	}{
		{"positive match", 222, true},
		{"negated community id", -222, true},
		{"other user", 111, false},
		{"zero", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := id.IsBot(tt.userID); got != tt.want {
				t.Errorf("IsBot(%d) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}

	unresolved := Identity{}
	if unresolved.IsBot(222) {
		t.Error("unresolved identity must not claim any user id")
	}
}
