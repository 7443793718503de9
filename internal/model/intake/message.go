package intake

import "time"

// Message persists individual turns for audit and for the language layer's history.
type Message struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)
