package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionConversations = "conversations"
	collectionMessages      = "messages"
	collectionMemories      = "memories"
)

// Firestore implements Repository using Cloud Firestore. Messages and
// memories live in subcollections of the conversation document; the
// conversation document itself holds the agent state. Memory search uses
// Firestore's native vector index over the embedding field.
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) conversation(id model.ConversationID) *firestore.DocumentRef {
	return r.client.Collection(collectionConversations).Doc(string(id))
}

func (r *Firestore) PutMessage(ctx context.Context, msg *model.Message) error {
	doc := r.conversation(msg.ConversationID).Collection(collectionMessages).Doc(string(msg.ID))
	if _, err := doc.Set(ctx, msg); err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to put message",
			goerr.V("conversation_id", msg.ConversationID),
			goerr.V("message_id", msg.ID),
			goerr.V("cause", err.Error()))
	}
	return nil
}

func (r *Firestore) ListMessages(ctx context.Context, id model.ConversationID, limit int) ([]*model.Message, error) {
	query := r.conversation(id).Collection(collectionMessages).
		OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	it := query.Documents(ctx)
	defer it.Stop()

	var messages []*model.Message
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V("conversation_id", id))
		}

		var msg model.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, goerr.Wrap(err, "failed to decode message", goerr.V("doc", doc.Ref.ID))
		}
		messages = append(messages, &msg)
	}

	// Selected newest-first; return chronological
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *Firestore) DeleteMessages(ctx context.Context, id model.ConversationID) error {
	it := r.conversation(id).Collection(collectionMessages).Documents(ctx)
	defer it.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(model.ErrPersistence, "failed to iterate messages for delete",
				goerr.V("conversation_id", id), goerr.V("cause", err.Error()))
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			return goerr.Wrap(model.ErrPersistence, "failed to enqueue message delete",
				goerr.V("conversation_id", id), goerr.V("cause", err.Error()))
		}
	}
	bw.End()

	return nil
}

func (r *Firestore) GetState(ctx context.Context, id model.ConversationID) (*model.AgentState, error) {
	doc, err := r.conversation(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "agent state not found", goerr.V("conversation_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get agent state", goerr.V("conversation_id", id))
	}

	var state model.AgentState
	if err := doc.DataTo(&state); err != nil {
		return nil, goerr.Wrap(err, "failed to decode agent state", goerr.V("conversation_id", id))
	}

	return &state, nil
}

func (r *Firestore) PutState(ctx context.Context, state *model.AgentState) error {
	if _, err := r.conversation(state.ConversationID).Set(ctx, state); err != nil {
		return goerr.Wrap(model.ErrPersistence, "failed to put agent state",
			goerr.V("conversation_id", state.ConversationID),
			goerr.V("cause", err.Error()))
	}
	return nil
}

func (r *Firestore) PutMemory(ctx context.Context, entry *model.MemoryEntry) error {
	doc := r.conversation(entry.ConversationID).Collection(collectionMemories).Doc(string(entry.ID))
	if _, err := doc.Set(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to put memory entry",
			goerr.V("conversation_id", entry.ConversationID),
			goerr.V("memory_id", entry.ID))
	}
	return nil
}

func (r *Firestore) SearchMemories(ctx context.Context, id model.ConversationID, embedding []float32, topK int) ([]*model.MemoryMatch, error) {
	query := r.conversation(id).Collection(collectionMemories).FindNearest(
		"embedding",
		firestore.Vector32(embedding),
		topK,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: "distance",
		},
	)

	it := query.Documents(ctx)
	defer it.Stop()

	var matches []*model.MemoryMatch
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search memories", goerr.V("conversation_id", id))
		}

		var entry model.MemoryEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory entry", goerr.V("doc", doc.Ref.ID))
		}

		match := &model.MemoryMatch{Entry: &entry}
		if dist, err := doc.DataAt("distance"); err == nil {
			if d, ok := dist.(float64); ok {
				// Cosine distance to similarity
				match.Score = 1 - d
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}
