package models

const (
	EventTypeInsert = "INSERT"
	MessagesTable   = "messages"
)

type Message struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	RoomID    string    `json:"room_id" db:"room_id"`
	Content   string    `json:"content" db:"content"`
	// CreatedAt is kept as sent; timestamp columns may arrive without an offset.
	CreatedAt string `json:"created_at" db:"created_at"`
}

// MessageEvent is the body a database webhook posts after a row change.
type MessageEvent struct {
	Type   string   `json:"type"`
	Table  string   `json:"table"`
	Schema string   `json:"schema"`
	Record *Message `json:"record"`
}
