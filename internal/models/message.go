package models

import "time"

/*
|--------------------------------------------------------------------------
| DATABASE MODEL
|--------------------------------------------------------------------------
| Messages are append-only: once stored they are never edited or
| reordered. Attachment holds a public path ("/public/uploads/...")
| served by the static route; AttachmentType is the declared MIME type.
*/
type Message struct {
	ID             int64     `json:"id"`
	TicketID       int64     `json:"ticket_id"`
	SenderRole     string    `json:"sender_role"`
	Message        string    `json:"message"`
	Attachment     *string   `json:"attachment,omitempty"`
	AttachmentType *string   `json:"attachment_type,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type SendMessageRequest struct {
	Message string `json:"message"`
}

type SetTypingRequest struct {
	Typing bool `json:"typing"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE DTO
|--------------------------------------------------------------------------
| TypingSnapshot and MessagesSnapshot together form the poll payload:
| one fetch returns both, so the client can replace its local state
| atomically.
*/
type TypingSnapshot struct {
	User  bool `json:"user"`
	Admin bool `json:"admin"`
}

type MessagesSnapshot struct {
	Messages []Message      `json:"messages"`
	Typing   TypingSnapshot `json:"typing"`
}
