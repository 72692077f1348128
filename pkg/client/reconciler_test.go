package client

import (
	"testing"

	"chat-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveEvent(msg models.Message) models.Event {
	return models.Event{Type: models.EventReceiveMessage, Message: &msg}
}

func TestRenderedIsHistoryPlusPending(t *testing.T) {
	r := NewReconciler()
	r.SetIdentity("a1", "alice")

	r.ApplyHistory([]models.Message{
		{ID: 1, Sender: "bob", Room: "General", Text: "old"},
	}, false, false)
	r.Apply(receiveEvent(models.Message{ID: 2, Sender: "bob", Room: "General", Text: "live"}))
	r.AddPending("mine", nil)

	rendered := r.Rendered()
	require.Len(t, rendered, 3)
	assert.Equal(t, "old", rendered[0].Text)
	assert.Equal(t, "live", rendered[1].Text)
	assert.Equal(t, "mine", rendered[2].Text)
	assert.True(t, rendered[2].Pending)
}

func TestBobSendsHiScenario(t *testing.T) {
	// alice's view: exactly one message, sender bob, text hi, not read.
	r := NewReconciler()
	r.SetIdentity("a1", "alice")

	r.Apply(receiveEvent(models.Message{ID: 7, Sender: "bob", SenderID: "b1", Room: "General", Text: "hi"}))

	rendered := r.Rendered()
	require.Len(t, rendered, 1)
	assert.Equal(t, "bob", rendered[0].Sender)
	assert.Equal(t, "hi", rendered[0].Text)
	assert.False(t, rendered[0].Read)
}

func TestPendingSurvivesIndefinitelyWithoutAck(t *testing.T) {
	r := NewReconciler()
	r.SetIdentity("a1", "alice")
	r.AddPending("into the void", nil)

	// Plenty of unrelated traffic later, the message is still pending.
	for i := 0; i < 50; i++ {
		r.Apply(receiveEvent(models.Message{ID: int64(i + 1), Sender: "bob", Room: "General", Text: "noise"}))
	}

	assert.Equal(t, 1, r.PendingCount())
	rendered := r.Rendered()
	assert.True(t, rendered[len(rendered)-1].Pending)
}

func TestDeliveryAckClearsPending(t *testing.T) {
	r := NewReconciler()
	r.SetIdentity("a1", "alice")
	r.AddPending("first", nil)
	r.AddPending("second", nil)

	// Sends are serialized per connection, so acks clear in send order.
	r.Apply(models.Event{Type: models.EventMessageDelivered, ID: 101})
	assert.Equal(t, 1, r.PendingCount())
	assert.Equal(t, "second", r.Rendered()[0].Text)

	r.Apply(models.Event{Type: models.EventMessageDelivered, ID: 102})
	assert.Equal(t, 0, r.PendingCount())
}

func TestDuplicateJoinNoticeIsSuppressed(t *testing.T) {
	r := NewReconciler()
	r.SetIdentity("a1", "alice")

	joined := models.Event{Type: models.EventUserJoined, Username: "carol", UserID: "c1", Room: "X"}
	r.Apply(joined)
	r.Apply(joined)

	var notices int
	for _, m := range r.Rendered() {
		if m.System {
			notices++
			assert.Contains(t, m.Text, "carol joined")
		}
	}
	assert.Equal(t, 1, notices)
}

func TestLeaveNoticesAreNeverSuppressed(t *testing.T) {
	r := NewReconciler()
	left := models.Event{Type: models.EventUserLeft, Username: "carol", Room: "X"}
	r.Apply(left)
	r.Apply(left)
	assert.Len(t, r.Rendered(), 2)
}

func TestJoinNoticeDedupIsPerRoom(t *testing.T) {
	r := NewReconciler()
	r.Apply(models.Event{Type: models.EventUserJoined, Username: "carol", Room: "X"})
	r.Apply(models.Event{Type: models.EventUserJoined, Username: "carol", Room: "Y"})
	assert.Len(t, r.Rendered(), 2)
}

func TestPresenceEntriesFlipOfflineButNeverDisappear(t *testing.T) {
	r := NewReconciler()

	r.Apply(models.Event{Type: models.EventUserList, Users: []models.UserInfo{
		{ID: "a1", Username: "alice"},
		{ID: "b1", Username: "bob"},
	}})
	r.Apply(models.Event{Type: models.EventUserList, Users: []models.UserInfo{
		{ID: "a1", Username: "alice"},
	}})

	presence := r.Presence()
	require.Len(t, presence, 2)
	assert.True(t, presence["alice"].Online)
	assert.False(t, presence["bob"].Online)

	// Coming back online flips the entry again.
	r.Apply(models.Event{Type: models.EventUserList, Users: []models.UserInfo{
		{ID: "b2", Username: "bob"},
	}})
	assert.True(t, r.Presence()["bob"].Online)
	assert.Equal(t, "b2", r.Presence()["bob"].ConnID)
}

func TestNotificationGating(t *testing.T) {
	r := NewReconciler()
	r.SetIdentity("a1", "alice")
	r.SetActiveRoom("General")

	// Message in another room from someone else: notify.
	r.Apply(receiveEvent(models.Message{ID: 1, Sender: "bob", Room: "random", Text: "over here"}))
	n := r.Notification()
	require.NotNil(t, n)
	assert.Equal(t, "random", n.Room)

	// A newer qualifying message replaces it: exactly one live notification.
	r.Apply(receiveEvent(models.Message{ID: 2, Sender: "carol", Room: "other", Text: "me too"}))
	n = r.Notification()
	require.NotNil(t, n)
	assert.Equal(t, "other", n.Room)

	// Own message elsewhere never notifies.
	r.Apply(receiveEvent(models.Message{ID: 3, Sender: "alice", Room: "random", Text: "mine"}))
	assert.Nil(t, r.Notification())

	// Private messages never notify.
	r.Apply(receiveEvent(models.Message{ID: 4, Sender: "bob", Room: "random", Text: "ping"}))
	require.NotNil(t, r.Notification())
	r.Apply(models.Event{Type: models.EventPrivateMessage, Message: &models.Message{ID: 5, Sender: "bob", IsPrivate: true, Text: "psst"}})
	assert.NotNil(t, r.Notification())
}

func TestNotificationClearedOnRoomSwitch(t *testing.T) {
	r := NewReconciler()
	r.SetIdentity("a1", "alice")
	r.SetActiveRoom("General")

	r.Apply(receiveEvent(models.Message{ID: 1, Sender: "bob", Room: "random", Text: "hey"}))
	require.NotNil(t, r.Notification())

	r.SetActiveRoom("random")
	assert.Nil(t, r.Notification())
}

func TestSearchModeReplacesRenderedUntilCleared(t *testing.T) {
	r := NewReconciler()
	r.Apply(receiveEvent(models.Message{ID: 1, Sender: "bob", Room: "General", Text: "normal"}))

	r.SetSearchResults([]models.Message{{ID: 9, Sender: "bob", Room: "General", Text: "found"}})
	rendered := r.Rendered()
	require.Len(t, rendered, 1)
	assert.Equal(t, "found", rendered[0].Text)

	// Even an empty result set replaces the view while searching.
	r.SetSearchResults(nil)
	assert.Empty(t, r.Rendered())

	r.ClearSearch()
	rendered = r.Rendered()
	require.Len(t, rendered, 1)
	assert.Equal(t, "normal", rendered[0].Text)
}

func TestHistoryPrependKeepsOrder(t *testing.T) {
	r := NewReconciler()
	r.ApplyHistory([]models.Message{
		{ID: 21, Text: "newer-a"}, {ID: 22, Text: "newer-b"},
	}, true, false)
	r.ApplyHistory([]models.Message{
		{ID: 11, Text: "older-a"}, {ID: 12, Text: "older-b"},
	}, false, true)

	rendered := r.Rendered()
	require.Len(t, rendered, 4)
	assert.Equal(t, "older-a", rendered[0].Text)
	assert.Equal(t, "newer-b", rendered[3].Text)
	assert.False(t, r.HasMore())
}

func TestFetchInFlightGuard(t *testing.T) {
	r := NewReconciler()
	assert.True(t, r.BeginFetch())
	assert.False(t, r.BeginFetch())
	r.EndFetch()
	assert.True(t, r.BeginFetch())
}

func TestReadReceiptFlipsMatchingPrivateMessages(t *testing.T) {
	r := NewReconciler()
	r.Apply(models.Event{Type: models.EventPrivateMessage, Message: &models.Message{
		ID: 5, Sender: "bob", SenderID: "b1", RecipientID: "a1", IsPrivate: true, Text: "hi",
	}})

	r.Apply(models.Event{Type: models.EventMessageRead, SenderID: "b1", RecipientID: "a1", MessageIDs: []int64{5}})
	assert.True(t, r.Rendered()[0].Read)

	// Ids not listed stay unread.
	r.Apply(models.Event{Type: models.EventPrivateMessage, Message: &models.Message{
		ID: 6, Sender: "bob", SenderID: "b1", RecipientID: "a1", IsPrivate: true, Text: "again",
	}})
	r.Apply(models.Event{Type: models.EventMessageRead, SenderID: "b1", RecipientID: "a1", MessageIDs: []int64{5}})
	assert.False(t, r.Rendered()[1].Read)
}

func TestReactionEventPatchesMessage(t *testing.T) {
	r := NewReconciler()
	r.Apply(receiveEvent(models.Message{ID: 3, Sender: "bob", Room: "General", Text: "react"}))

	r.Apply(models.Event{Type: models.EventMessageReaction, MessageID: 3, Reactions: map[string]string{"c9": "🔥"}})
	assert.Equal(t, map[string]string{"c9": "🔥"}, r.Rendered()[0].Reactions)
}

func TestSelfIDLearnedFromOwnJoinFact(t *testing.T) {
	r := NewReconciler()
	r.SetIdentity("", "alice")

	r.Apply(models.Event{Type: models.EventUserJoined, Username: "alice", UserID: "conn-42", Room: "General"})
	assert.Equal(t, "conn-42", r.SelfID())
}

func TestRoomListAndTypingViews(t *testing.T) {
	r := NewReconciler()
	r.Apply(models.Event{Type: models.EventRoomList, Rooms: []string{"General", "random"}})
	assert.Equal(t, []string{"General", "random"}, r.Rooms())

	r.Apply(models.Event{Type: models.EventTypingUsers, TypingUsers: []string{"bob"}})
	assert.Equal(t, []string{"bob"}, r.TypingUsers())

	r.Apply(models.Event{Type: models.EventTypingUsers})
	assert.Empty(t, r.TypingUsers())
}
