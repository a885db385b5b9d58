package agent

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
)

const apologyText = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// ProcessMessage runs one conversation turn: sanitize, persist the user
// message, retrieve memories, assemble the prompt, call inference with
// retry and fallback, and persist the assistant reply. Inference failure
// degrades to a fixed apology; persistence failure is fatal.
func (a *Agent) ProcessMessage(ctx context.Context, content, userID string) (*model.Message, error) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	return a.process(ctx, content, userID, false)
}

// ProcessMessageStream is the streaming variant of ProcessMessage. The
// response is published as ordered token events to every attached
// consumer, followed by one complete event; a pipeline failure publishes
// one error event instead. The persisted assistant message always holds
// the full concatenated content.
func (a *Agent) ProcessMessageStream(ctx context.Context, content, userID string) (*model.Message, error) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	msg, err := a.process(ctx, content, userID, true)
	if err != nil {
		a.broker.Publish(model.NewErrorEvent("", err.Error()))
	}
	return msg, err
}

func (a *Agent) process(ctx context.Context, content, userID string, publish bool) (*model.Message, error) {
	logger := logging.From(ctx).With("conversation_id", a.id)

	sanitized := sanitize(content)
	if sanitized == "" {
		return nil, goerr.Wrap(model.ErrValidation, "message is empty after sanitization")
	}

	userMsg := &model.Message{
		ID:             model.NewMessageID(),
		ConversationID: a.id,
		Role:           model.RoleUser,
		Content:        sanitized,
		CreatedAt:      a.nextTimestamp(),
		Meta:           model.MessageMeta{UserID: userID},
	}
	if err := a.repo.PutMessage(ctx, userMsg); err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to persist user message",
			goerr.V("conversation_id", a.id), goerr.V("cause", err.Error()))
	}

	a.mu.Lock()
	a.state.History = append(a.state.History, userMsg)
	history := append([]*model.Message(nil), a.state.History[:len(a.state.History)-1]...)
	a.mu.Unlock()

	a.writeMemory(ctx, sanitized, "conversation/user")

	memories := a.retrieveMemories(ctx, sanitized)

	segments := BuildContext(sanitized, history, memories, a.config.SystemPrompt, a.config.ContextBudget)
	segments = a.runTools(ctx, segments)

	turnID := model.NewMessageID()
	started := time.Now()
	reply := a.generate(ctx, segments, turnID, publish)
	latency := time.Since(started).Milliseconds()

	assistantMsg := &model.Message{
		ID:             turnID,
		ConversationID: a.id,
		Role:           model.RoleAssistant,
		Content:        reply,
		CreatedAt:      a.nextTimestamp(),
		Meta: model.MessageMeta{
			LatencyMs:     latency,
			TokenEstimate: model.EstimateTokens(reply),
		},
	}
	if err := a.repo.PutMessage(ctx, assistantMsg); err != nil {
		return nil, goerr.Wrap(model.ErrPersistence, "failed to persist assistant message",
			goerr.V("conversation_id", a.id), goerr.V("cause", err.Error()))
	}

	a.mu.Lock()
	a.state.History = append(a.state.History, assistantMsg)
	if n := len(a.state.History); n > a.config.HistoryWindow {
		a.state.History = a.state.History[n-a.config.HistoryWindow:]
	}
	historySize := len(a.state.History)
	a.mu.Unlock()

	a.writeMemory(ctx, reply, "conversation/assistant")

	if err := a.putState(ctx); err != nil {
		return nil, err
	}

	if publish {
		a.broker.Publish(model.NewCompleteEvent(turnID, reply, latency, assistantMsg.Meta.TokenEstimate))
	}

	logger.Debug("processed message turn",
		"turn_id", turnID,
		"latency_ms", latency,
		"history_size", historySize,
	)

	return assistantMsg, nil
}

// generate calls inference with bounded retry against the primary model,
// then once against the fallback model, and finally degrades to a fixed
// apology. It never returns an error. When publishing, an attempt's
// increments are buffered and flushed as token events only after the
// attempt succeeds, so the stream never carries output from a failed
// attempt and the token concatenation always equals the final content.
func (a *Agent) generate(ctx context.Context, segments []model.Segment, turnID model.MessageID, publish bool) string {
	logger := logging.From(ctx).With("conversation_id", a.id)

	flush := func(chunks []string) {
		for _, chunk := range chunks {
			a.broker.Publish(model.NewTokenEvent(turnID, chunk))
		}
	}

	attempt := func(modelName string) (string, error) {
		opts := adapter.GenerateOptions{Model: modelName}
		if !publish {
			return a.llm.Generate(ctx, segments, opts)
		}

		var chunks []string
		reply, err := a.llm.GenerateStream(ctx, segments, opts, func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		if err != nil {
			return "", err
		}
		flush(chunks)
		return reply, nil
	}

	for i := 0; i < a.config.RetryAttempts; i++ {
		if i > 0 {
			a.sleep(a.config.RetryBase << (i - 1))
		}
		reply, err := attempt(a.config.PrimaryModel)
		if err == nil {
			return reply
		}
		logger.Warn("inference attempt failed", "attempt", i+1, "error", err)
	}

	reply, err := attempt(a.config.FallbackModel)
	if err == nil {
		logger.Info("fell back to secondary model", "model", a.config.FallbackModel)
		return reply
	}
	logger.Error("inference failed on all models, degrading to apology", "error", err)

	if publish {
		flush(adapter.ChunkWords(apologyText))
	}
	return apologyText
}

// writeMemory embeds the content and stores it as a conversation memory
// entry. Best effort: failures are logged and never fatal.
func (a *Agent) writeMemory(ctx context.Context, content, tag string) {
	embedding, err := a.embedder.Embedding(ctx, content)
	if err != nil {
		logging.From(ctx).Warn("failed to embed memory content", "conversation_id", a.id, "error", err)
		return
	}

	entry := &model.MemoryEntry{
		ID:             model.NewMemoryID(),
		Type:           model.MemoryConversation,
		Content:        content,
		Embedding:      firestore.Vector32(embedding),
		ConversationID: a.id,
		Importance:     0.5,
		Tags:           []string{tag},
		CreatedAt:      time.Now(),
	}
	if err := a.repo.PutMemory(ctx, entry); err != nil {
		logging.From(ctx).Warn("failed to store memory entry", "conversation_id", a.id, "error", err)
	}
}

// retrieveMemories returns the nearest memory entries for the content.
// Best effort: any failure yields an empty set.
func (a *Agent) retrieveMemories(ctx context.Context, content string) []*model.MemoryMatch {
	embedding, err := a.embedder.Embedding(ctx, content)
	if err != nil {
		logging.From(ctx).Warn("failed to embed query", "conversation_id", a.id, "error", err)
		return nil
	}

	matches, err := a.repo.SearchMemories(ctx, a.id, embedding, a.config.MemoryTopK)
	if err != nil {
		logging.From(ctx).Warn("memory search failed", "conversation_id", a.id, "error", err)
		return nil
	}
	return matches
}

// sanitize trims the input and strips control characters and
// angle-bracket markup characters
func sanitize(content string) string {
	var sb strings.Builder
	sb.Grow(len(content))
	for _, r := range content {
		switch {
		case r == '<' || r == '>':
		case r == '\n' || r == '\t':
			sb.WriteRune(r)
		case r < 0x20 || r == 0x7f:
		default:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
