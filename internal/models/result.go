package models

// RetrievalResult is one retrieved chunk with its relevance score.
type RetrievalResult struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single utterance in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Answer is the generated reply and the ordered sources of the chunks supplied to the model.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// TopSources returns at most n sources. n <= 0 returns all of them.
func (a *Answer) TopSources(n int) []string {
	if a == nil {
		return nil
	}
	if n <= 0 || len(a.Sources) <= n {
		return a.Sources
	}
	return a.Sources[:n]
}
