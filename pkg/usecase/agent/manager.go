package agent

import (
	"context"
	"sync"
	"time"

	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/repository"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
)

// Manager is the keyed agent pool. It guarantees at most one agent
// instance per conversation id in-process and rebuilds agent state from
// the repository on first access.
type Manager struct {
	repo     repository.Repository
	llm      adapter.LLM
	embedder adapter.Embedder
	tools    *tool.Registry
	config   Config

	mu     sync.Mutex
	agents map[model.ConversationID]*Agent
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithTools equips every managed agent with the tool registry
func WithTools(r *tool.Registry) ManagerOption {
	return func(m *Manager) {
		m.tools = r
	}
}

// NewManager creates an empty agent pool sharing the given collaborators
func NewManager(repo repository.Repository, llm adapter.LLM, embedder adapter.Embedder, config Config, opts ...ManagerOption) *Manager {
	config.fillDefaults()
	m := &Manager{
		repo:     repo,
		llm:      llm,
		embedder: embedder,
		config:   config,
		agents:   make(map[model.ConversationID]*Agent),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Get returns the agent for the conversation, creating it on first access
func (m *Manager) Get(ctx context.Context, id model.ConversationID) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.agents[id]; ok {
		return a, nil
	}

	a, err := New(ctx, NewInput{
		Repo:           m.repo,
		LLM:            m.llm,
		Embedder:       m.embedder,
		Tools:          m.tools,
		ConversationID: id,
		Config:         m.config,
	})
	if err != nil {
		return nil, err
	}

	m.agents[id] = a
	logging.From(ctx).Debug("agent created", "conversation_id", id, "pool_size", len(m.agents))
	return a, nil
}

// Peek returns the agent if it is already resident, without creating one
func (m *Manager) Peek(id model.ConversationID) (*Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	return a, ok
}

// Size returns the number of resident agents
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents)
}

// EvictIdle removes agents whose last activity is older than maxIdle,
// closing their stream brokers. The durable state is untouched; an
// evicted conversation is rebuilt on next access. Returns the number of
// evicted agents.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	evicted := 0
	for id, a := range m.agents {
		if a.LastActivity().Before(cutoff) {
			a.Close()
			delete(m.agents, id)
			evicted++
		}
	}
	return evicted
}

// Close shuts down every resident agent
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, a := range m.agents {
		a.Close()
		delete(m.agents, id)
	}
}
