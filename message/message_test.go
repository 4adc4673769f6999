package message

import "testing"

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "hello")

	if msg.Role != RoleUser {
		t.Errorf("expected role %s, got %s", RoleUser, msg.Role)
	}
	if msg.Content != "hello" {
		t.Errorf("expected content 'hello', got %s", msg.Content)
	}
	if msg.ID == "" {
		t.Errorf("expected non-empty message ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}
}

func TestText(t *testing.T) {
	msg := NewMessage(RoleSystem, "prompt body")
	if msg.Text() != "prompt body" {
		t.Errorf("Text mismatch: %s", msg.Text())
	}

	var nilMsg *Message
	if nilMsg.Text() != "" {
		t.Errorf("nil message Text should be empty")
	}
}

func TestClone(t *testing.T) {
	msg := NewMessage(RoleAssistant, "answer")
	msg.Metadata["model"] = "gpt-4o-mini"

	cloned := Clone(msg)
	if cloned == msg {
		t.Fatalf("Clone returned the same pointer")
	}
	cloned.Metadata["model"] = "other"
	if msg.Metadata["model"] != "gpt-4o-mini" {
		t.Errorf("Clone shares metadata with original")
	}

	if Clone(nil) != nil {
		t.Errorf("Clone(nil) should return nil")
	}
}
