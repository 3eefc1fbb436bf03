package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// WelcomeMessageID identifies the greeting every transcript starts with.
const WelcomeMessageID = "welcome"

const welcomeText = "Hello! I'm OmniGen. I can help you write scripts, code, stories, summaries, and more. How can I assist you today?"

// ChatErrorText is shown in the transcript when a chat turn fails upstream.
const ChatErrorText = "I encountered an error processing your request. Please try again."

// ChatMessage captures a single turn of a chat transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"is_error,omitempty"`
}

// NewChatMessage stamps a message with a fresh id and the current time.
func NewChatMessage(role Role, text string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorMessage builds the error-flagged model reply appended when a turn fails.
func NewErrorMessage() *ChatMessage {
	msg := NewChatMessage(RoleModel, ChatErrorText)
	msg.IsError = true
	return msg
}

// WelcomeMessage returns the greeting a new transcript starts with.
func WelcomeMessage() *ChatMessage {
	return &ChatMessage{
		ID:        WelcomeMessageID,
		Role:      RoleModel,
		Text:      welcomeText,
		Timestamp: time.Now().UTC(),
	}
}
