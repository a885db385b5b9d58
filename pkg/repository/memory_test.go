package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/repository"
)

func TestMemoryMessageLog(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	convID := model.NewConversationID()

	now := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		err := repo.PutMessage(ctx, &model.Message{
			ID:             model.NewMessageID(),
			ConversationID: convID,
			Role:           model.RoleUser,
			Content:        content,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		})
		gt.NoError(t, err)
	}

	messages, err := repo.ListMessages(ctx, convID, 0)
	gt.NoError(t, err)
	gt.A(t, messages).Length(3)
	gt.Equal(t, messages[0].Content, "first")
	gt.Equal(t, messages[2].Content, "third")

	// Most recent 2, chronological order
	recent, err := repo.ListMessages(ctx, convID, 2)
	gt.NoError(t, err)
	gt.A(t, recent).Length(2)
	gt.Equal(t, recent[0].Content, "second")
	gt.Equal(t, recent[1].Content, "third")
}

func TestMemoryDeleteMessages(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	convID := model.NewConversationID()

	gt.NoError(t, repo.PutMessage(ctx, &model.Message{
		ID:             model.NewMessageID(),
		ConversationID: convID,
		Role:           model.RoleUser,
		Content:        "hello",
		CreatedAt:      time.Now(),
	}))

	gt.NoError(t, repo.DeleteMessages(ctx, convID))

	messages, err := repo.ListMessages(ctx, convID, 0)
	gt.NoError(t, err)
	gt.A(t, messages).Length(0)
}

func TestMemoryStateRoundTrip(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	convID := model.NewConversationID()

	_, err := repo.GetState(ctx, convID)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrNotFound))

	state := &model.AgentState{
		ConversationID: convID,
		LastActivity:   time.Now(),
		UserContext:    map[string]string{"name": "sam"},
	}
	gt.NoError(t, repo.PutState(ctx, state))

	loaded, err := repo.GetState(ctx, convID)
	gt.NoError(t, err)
	gt.Equal(t, loaded.ConversationID, convID)
	gt.Equal(t, loaded.UserContext["name"], "sam")
}

func TestMemorySearchMemories(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	convID := model.NewConversationID()

	entries := []struct {
		content   string
		embedding []float32
	}{
		{"about cats", []float32{1, 0, 0}},
		{"about dogs", []float32{0, 1, 0}},
		{"about cats and dogs", []float32{0.7, 0.7, 0}},
	}

	for _, e := range entries {
		gt.NoError(t, repo.PutMemory(ctx, &model.MemoryEntry{
			ID:             model.NewMemoryID(),
			Type:           model.MemoryConversation,
			Content:        e.content,
			Embedding:      firestore.Vector32(e.embedding),
			ConversationID: convID,
			CreatedAt:      time.Now(),
		}))
	}

	matches, err := repo.SearchMemories(ctx, convID, []float32{1, 0, 0}, 2)
	gt.NoError(t, err)
	gt.A(t, matches).Length(2)
	gt.Equal(t, matches[0].Entry.Content, "about cats")
	gt.True(t, matches[0].Score > matches[1].Score)

	// Other conversations are not visible
	other, err := repo.SearchMemories(ctx, model.NewConversationID(), []float32{1, 0, 0}, 5)
	gt.NoError(t, err)
	gt.A(t, other).Length(0)
}
