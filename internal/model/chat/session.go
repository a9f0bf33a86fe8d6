package chat

import "time"

// DefaultTitle is the placeholder assigned to a session until enough
// content exists to synthesize a real one.
const DefaultTitle = "Conversa Sem Título"

// Session captures one continuous conversation with the bot.
//
// Messages is append-only: entries are never reordered or removed, and
// insertion order is chronological. StartTime is set once when the first
// exchange arrives; EndTime tracks the timestamp of the last append.
type Session struct {
	ID        string    `json:"sessionId" bson:"sessionId"`
	BotID     string    `json:"botId,omitempty" bson:"botId,omitempty"`
	StartTime time.Time `json:"startTime" bson:"startTime"`
	EndTime   time.Time `json:"endTime" bson:"endTime"`
	Title     string    `json:"title" bson:"title"`
	Messages  []Message `json:"messages" bson:"messages"`
}

// SessionSummary is the listing projection served to the history sidebar.
type SessionSummary struct {
	ID        string    `json:"sessionId" bson:"sessionId"`
	StartTime time.Time `json:"startTime" bson:"startTime"`
	Title     string    `json:"title" bson:"title"`
}

// Summary projects the session onto its listing fields.
func (s Session) Summary() SessionSummary {
	return SessionSummary{ID: s.ID, StartTime: s.StartTime, Title: s.Title}
}
