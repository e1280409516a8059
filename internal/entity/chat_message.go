package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
)

// ChatMessage represents one stored chat turn for data transfer between layers.
type ChatMessage struct {
	ID          uuid.UUID             `json:"id"`
	UserID      string                `json:"user_id"`
	Role        constants.Role        `json:"role"`
	Content     string                `json:"content"`
	MessageType constants.MessageKind `json:"message_type"`
	FileName    *string               `json:"file_name,omitempty"`
	StoragePath *string               `json:"storage_path,omitempty"`
	ContentType *string               `json:"content_type,omitempty"`
	FileSize    *int64                `json:"file_size,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// HasAttachment reports whether the message references a stored object.
func (m *ChatMessage) HasAttachment() bool {
	return m.StoragePath != nil && *m.StoragePath != ""
}
