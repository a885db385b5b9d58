package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
)

// Memory implements Repository in process memory. Used for local mode and
// tests; brute-force cosine similarity stands in for a vector index.
type Memory struct {
	mu       sync.RWMutex
	messages map[model.ConversationID][]*model.Message
	states   map[model.ConversationID]*model.AgentState
	memories map[model.ConversationID][]*model.MemoryEntry
}

// NewMemory creates a new in-memory repository
func NewMemory() *Memory {
	return &Memory{
		messages: make(map[model.ConversationID][]*model.Message),
		states:   make(map[model.ConversationID]*model.AgentState),
		memories: make(map[model.ConversationID][]*model.MemoryEntry),
	}
}

func (r *Memory) PutMessage(ctx context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *msg
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], &copied)
	return nil
}

func (r *Memory) ListMessages(ctx context.Context, id model.ConversationID, limit int) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.messages[id]
	messages := make([]*model.Message, len(log))
	copy(messages, log)

	// CreatedAt ascending, insertion order breaking ties
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func (r *Memory) DeleteMessages(ctx context.Context, id model.ConversationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages, id)
	return nil
}

func (r *Memory) GetState(ctx context.Context, id model.ConversationID) (*model.AgentState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "agent state not found", goerr.V("conversation_id", id))
	}

	copied := *state
	return &copied, nil
}

func (r *Memory) PutState(ctx context.Context, state *model.AgentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *state
	r.states[state.ConversationID] = &copied
	return nil
}

func (r *Memory) PutMemory(ctx context.Context, entry *model.MemoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	r.memories[entry.ConversationID] = append(r.memories[entry.ConversationID], &copied)
	return nil
}

func (r *Memory) SearchMemories(ctx context.Context, id model.ConversationID, embedding []float32, topK int) ([]*model.MemoryMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*model.MemoryMatch
	for _, entry := range r.memories[id] {
		score := cosineSimilarity(embedding, entry.Embedding)
		matches = append(matches, &model.MemoryMatch{Entry: entry, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
