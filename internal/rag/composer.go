// Package rag composes answers from retrieved chunks, conversation memory and a chat model.
package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/memory"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

const logQueryLen = 80

// Retriever finds the chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, strategy string) ([]*models.RetrievalResult, error)
}

// Composer answers questions with retrieval-augmented generation.
type Composer struct {
	retriever    Retriever
	completer    llm.Completer
	instructions string
	options      llm.Options
	k            int
	strategy     string
	logger       *zap.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// WithInstructions replaces the system instructions.
func WithInstructions(instructions string) Option {
	return func(c *Composer) { c.instructions = instructions }
}

// WithCompletionOptions sets temperature and token limits for every completion.
func WithCompletionOptions(opts llm.Options) Option {
	return func(c *Composer) { c.options = opts }
}

// WithRetrieval sets k and the strategy passed to the retriever. Zero values defer to
// the retriever's defaults.
func WithRetrieval(k int, strategy string) Option {
	return func(c *Composer) {
		c.k = k
		c.strategy = strategy
	}
}

// NewComposer creates a composer. Instructions default to the persona for "personal finance".
func NewComposer(retriever Retriever, completer llm.Completer, opts ...Option) *Composer {
	c := &Composer{
		retriever:    retriever,
		completer:    completer,
		instructions: DefaultInstructions("personal finance"),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask validates query, retrieves context and composes the answer.
func (c *Composer) Ask(ctx context.Context, mem *memory.Memory, query string) (*models.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.ErrEmptyQuery
	}
	chunks, err := c.retriever.Retrieve(ctx, query, c.k, c.strategy)
	if err != nil {
		return nil, err
	}
	return c.Compose(ctx, mem, query, chunks)
}

// Compose asks the model to answer query from chunks and the history in mem. Only a
// successful completion is recorded in mem, as a user turn followed by an assistant turn.
// mem may be nil for stateless calls.
func (c *Composer) Compose(ctx context.Context, mem *memory.Memory, query string, chunks []*models.RetrievalResult) (*models.Answer, error) {
	var history []models.Turn
	if mem != nil {
		history = mem.History()
	}
	msgs := BuildPrompt(c.instructions, history, chunks, query)

	start := time.Now()
	text, err := c.completer.Complete(ctx, msgs, c.options)
	if err != nil {
		c.logger.Warn("completion failed", zap.String("query", logQuery(query)), zap.Error(err))
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &models.CapabilityError{
			Capability: models.ErrLLMUnavailable,
			Op:         "create chat completion",
			Err:        errors.New("empty answer"),
		}
	}

	// A caller that already gave up must not find the exchange in memory later.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mem != nil {
		mem.AppendExchange(query, text)
	}
	answer := &models.Answer{Text: text, Sources: Sources(chunks)}
	c.logger.Debug("answer composed",
		zap.String("query", logQuery(query)),
		zap.Int("chunks", len(chunks)),
		zap.Int("history_turns", len(history)),
		zap.Strings("sources", answer.Sources),
		zap.Duration("took", time.Since(start)))
	return answer, nil
}

func logQuery(q string) string {
	return utils.Truncate(utils.SingleLine(q), logQueryLen)
}
