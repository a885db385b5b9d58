package agent

import (
	"context"
	_ "embed"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/repository"
	"github.com/thatamjad/cf-ai-amjad/pkg/stream"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
)

//go:embed prompt/system.md
var defaultSystemPrompt string

const (
	defaultContextBudget = 4000
	defaultHistoryWindow = 50
	defaultMemoryTopK    = 5
	defaultRetryAttempts = 3
	defaultRetryBase     = 500 * time.Millisecond
)

// Config tunes one conversation agent. Zero values fall back to defaults.
type Config struct {
	SystemPrompt  string
	PrimaryModel  string
	FallbackModel string
	ContextBudget int
	HistoryWindow int
	MemoryTopK    int
	RetryAttempts int
	RetryBase     time.Duration
}

func (c *Config) fillDefaults() {
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.ContextBudget <= 0 {
		c.ContextBudget = defaultContextBudget
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = defaultHistoryWindow
	}
	if c.MemoryTopK <= 0 {
		c.MemoryTopK = defaultMemoryTopK
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = defaultRetryBase
	}
}

// Agent is the sole writer of one conversation's state. Mutating
// operations are serialized on turnMu; mu guards the state fields and is
// never held across a collaborator call, so reads like LastActivity and
// Workflows stay responsive during an in-flight turn. The hosting
// Manager guarantees at most one instance per conversation id
// in-process.
type Agent struct {
	id       model.ConversationID
	repo     repository.Repository
	llm      adapter.LLM
	embedder adapter.Embedder
	tools    *tool.Registry
	config   Config

	turnMu    sync.Mutex
	mu        sync.Mutex
	state     *model.AgentState
	broker    *stream.Broker
	lastStamp time.Time

	sleep func(time.Duration)
}

// NewInput contains the collaborators for creating an agent. Tools is
// optional; when set and the LLM supports function calling, registered
// tools are offered to the model each turn.
type NewInput struct {
	Repo           repository.Repository
	LLM            adapter.LLM
	Embedder       adapter.Embedder
	Tools          *tool.Registry
	ConversationID model.ConversationID
	Config         Config
}

// New creates an agent for the conversation, rebuilding its state and
// history cache from the repository when the conversation already exists
func New(ctx context.Context, input NewInput) (*Agent, error) {
	input.Config.fillDefaults()

	a := &Agent{
		id:       input.ConversationID,
		repo:     input.Repo,
		llm:      input.LLM,
		embedder: input.Embedder,
		tools:    input.Tools,
		config:   input.Config,
		broker:   stream.NewBroker(),
		sleep:    time.Sleep,
	}

	state, err := input.Repo.GetState(ctx, input.ConversationID)
	switch {
	case err == nil:
		a.state = state
	case errors.Is(err, model.ErrNotFound):
		a.state = &model.AgentState{
			ConversationID: input.ConversationID,
			LastActivity:   time.Now(),
		}
	default:
		return nil, goerr.Wrap(err, "failed to load agent state", goerr.V("conversation_id", input.ConversationID))
	}

	history, err := input.Repo.ListMessages(ctx, input.ConversationID, a.config.HistoryWindow)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to rebuild history cache", goerr.V("conversation_id", input.ConversationID))
	}
	a.state.History = history
	if n := len(history); n > 0 {
		a.lastStamp = history[n-1].CreatedAt
	}

	return a, nil
}

// ID returns the conversation ID this agent owns
func (a *Agent) ID() model.ConversationID { return a.id }

// LastActivity returns the time of the agent's last state mutation
func (a *Agent) LastActivity() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.LastActivity
}

// Attach registers a live output consumer. No effect on conversation state.
func (a *Agent) Attach() *stream.Conn {
	return a.broker.Attach()
}

// Detach unregisters a consumer. Safe mid-stream; other consumers keep
// receiving events.
func (a *Agent) Detach(id string) {
	a.broker.Detach(id)
}

// Close shuts down the agent's streaming broker
func (a *Agent) Close() {
	a.broker.Close()
}

// GetHistory returns the most recent `limit` messages in chronological
// order from the durable log. A non-positive limit returns the full log.
func (a *Agent) GetHistory(ctx context.Context, limit int) ([]*model.Message, error) {
	return a.repo.ListMessages(ctx, a.id, limit)
}

// ClearHistory deletes the conversation's entire durable message log and
// resets the in-memory cache. Irreversible.
func (a *Agent) ClearHistory(ctx context.Context) error {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	if err := a.repo.DeleteMessages(ctx, a.id); err != nil {
		return goerr.Wrap(err, "failed to delete message log", goerr.V("conversation_id", a.id))
	}

	a.mu.Lock()
	a.state.History = nil
	a.mu.Unlock()
	return a.putState(ctx)
}

// ContextPreview assembles the prompt that would be sent for the given
// input, without any side effects
func (a *Agent) ContextPreview(ctx context.Context, input string) ([]model.Segment, error) {
	sanitized := sanitize(input)
	if sanitized == "" {
		return nil, goerr.Wrap(model.ErrValidation, "message is empty after sanitization")
	}

	memories := a.retrieveMemories(ctx, sanitized)

	a.mu.Lock()
	history := append([]*model.Message(nil), a.state.History...)
	a.mu.Unlock()

	return BuildContext(sanitized, history, memories, a.config.SystemPrompt, a.config.ContextBudget), nil
}

// putState writes the agent state through to the repository, stamping
// LastActivity. Callers hold the turn mutex.
func (a *Agent) putState(ctx context.Context) error {
	a.mu.Lock()
	a.state.LastActivity = time.Now()
	a.mu.Unlock()

	if err := a.repo.PutState(ctx, a.state); err != nil {
		return goerr.Wrap(err, "failed to persist agent state", goerr.V("conversation_id", a.id))
	}
	return nil
}

// nextTimestamp returns a strictly increasing timestamp for this agent's
// messages so the ordering key never ties
func (a *Agent) nextTimestamp() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if !now.After(a.lastStamp) {
		now = a.lastStamp.Add(time.Microsecond)
	}
	a.lastStamp = now
	return now
}
