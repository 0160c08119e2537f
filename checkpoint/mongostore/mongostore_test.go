package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/no-ai-labs/spice-sub002/checkpoint"
	"github.com/no-ai-labs/spice-sub002/hitl"
	"github.com/no-ai-labs/spice-sub002/message"
)

func TestFromCheckpoint_ToCheckpoint_RoundTrips(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(time.Hour).UTC()
	msg := message.New("m1", "hello", message.RoleUser).WithData(map[string]any{"score": "20"})
	cp := checkpoint.Checkpoint{
		ID:            "cp1",
		RunID:         "run1",
		GraphID:       "g1",
		CurrentNodeID: "n1",
		Message:       msg,
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     &expires,
		PendingInteraction: &hitl.HumanInteraction{
			NodeID: "n1",
			Prompt: "approve?",
		},
	}

	doc := fromCheckpoint(cp)
	require.NotEmpty(t, doc.Message, "message must be bson-encoded before persisting")

	back := doc.toCheckpoint()
	assert.Equal(t, cp.ID, back.ID)
	assert.Equal(t, cp.RunID, back.RunID)
	assert.Equal(t, cp.GraphID, back.GraphID)
	assert.Equal(t, cp.CurrentNodeID, back.CurrentNodeID)
	assert.Equal(t, msg.Content, back.Message.Content)
	assert.Equal(t, msg.ID, back.Message.ID)
	score, ok := back.Message.Data.Get("score")
	require.True(t, ok, "Data must survive the bson round trip via State's custom codec")
	assert.Equal(t, "20", score)
	require.NotNil(t, back.PendingInteraction)
	assert.Equal(t, "approve?", back.PendingInteraction.Prompt)
	require.NotNil(t, back.ExpiresAt)
	assert.WithinDuration(t, expires, *back.ExpiresAt, time.Second)
}

func TestFromCheckpoint_NoExpiryOrInteractionOmitted(t *testing.T) {
	t.Parallel()

	cp := checkpoint.Checkpoint{
		ID:            "cp1",
		RunID:         "run1",
		Message:       message.New("m1", "", message.RoleUser),
		CurrentNodeID: "n1",
	}
	doc := fromCheckpoint(cp)
	assert.Nil(t, doc.ExpiresAt)
	assert.Nil(t, doc.PendingInteraction)
}
