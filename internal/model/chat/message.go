package chat

import "time"

// Message authors. Anything outside this set is rendered with the bot
// label rather than rejected.
const (
	AuthorUser = "user"
	AuthorBot  = "bot"
)

// Message is one authored turn inside a session. Timestamps are
// monotonically non-decreasing within a session.
type Message struct {
	Author    string    `json:"author" bson:"author"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
