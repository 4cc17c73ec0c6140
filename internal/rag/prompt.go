package rag

import (
	"fmt"
	"strings"

	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/models"
)

// DefaultInstructions returns the assistant persona for domain.
func DefaultInstructions(domain string) string {
	return fmt.Sprintf(`You are a helpful, concise assistant specialized in %s.
- Answer using the context documents below. Give clear, actionable, and simple explanations.
- When you use facts from a context document, cite its filename in brackets, e.g. [sample_faq.txt].
- When the question lacks necessary details or the context does not cover it, ask one short clarifying question.
- If the question is outside %s, say you cannot provide professional advice and suggest general resources.`, domain, domain)
}

const noContext = "(no relevant documents found)"

// BuildPrompt assembles the chat messages for one turn: a system message with the
// instructions and the retrieved chunks labelled by source, then the history in order,
// then the query as the final user message. It has no side effects.
func BuildPrompt(instructions string, history []models.Turn, chunks []*models.RetrievalResult, query string) []llm.Message {
	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(instructions))
	sys.WriteString("\n\nContext documents:\n")
	if len(chunks) == 0 {
		sys.WriteString(noContext)
	}
	for i, r := range chunks {
		if i > 0 {
			sys.WriteString("\n\n")
		}
		fmt.Fprintf(&sys, "[%s]\n%s", r.Chunk.Source, r.Chunk.Content)
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sys.String()})
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: query})
	return msgs
}

// Sources returns the distinct sources of chunks in retrieval order.
func Sources(chunks []*models.RetrievalResult) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, r := range chunks {
		if _, ok := seen[r.Chunk.Source]; ok {
			continue
		}
		seen[r.Chunk.Source] = struct{}{}
		out = append(out, r.Chunk.Source)
	}
	return out
}
