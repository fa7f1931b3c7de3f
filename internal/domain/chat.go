package domain

import "time"

const AssistantID = "assistant"

type ChatMessage struct {
	ID             string    `bson:"message_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"-"`
	SenderID       string    `bson:"sender_id" json:"user_id"`
	Message        string    `bson:"message" json:"message"`
	IsAdmin        bool      `bson:"is_admin" json:"is_admin"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
}
