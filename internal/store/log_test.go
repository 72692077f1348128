package store

import (
	"fmt"
	"testing"

	"chat-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(l *Log, room string, n int) []models.Message {
	msgs := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, l.Append(models.Message{
			Sender: "alice",
			Room:   room,
			Text:   fmt.Sprintf("msg-%d", i),
		}))
	}
	return msgs
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	l := NewLog(10)
	stored := appendN(l, "General", 5)

	for i := 1; i < len(stored); i++ {
		assert.Greater(t, stored[i].ID, stored[i-1].ID)
	}
	assert.False(t, stored[0].Timestamp.IsZero())
}

func TestCapacityBoundAndFIFOEviction(t *testing.T) {
	l := NewLog(10)
	appendN(l, "General", 25)

	require.Equal(t, 10, l.Len())

	// Only the most recent 10 remain, oldest first.
	page, hasMore := l.Page("General", 0, 10)
	require.Len(t, page, 10)
	assert.False(t, hasMore)
	assert.Equal(t, "msg-15", page[0].Text)
	assert.Equal(t, "msg-24", page[9].Text)
}

func TestEvictionIsGlobalAcrossRooms(t *testing.T) {
	l := NewLog(5)
	appendN(l, "quiet", 2)
	appendN(l, "busy", 5)

	// The busy room starved the quiet room's history out of the log.
	page, _ := l.Page("quiet", 0, 10)
	assert.Empty(t, page)
}

func TestPageReconstructionWithoutGapsOrDuplicates(t *testing.T) {
	l := NewLog(100)
	appendN(l, "General", 50)

	const limit = 20
	newest, hasMore := l.Page("General", 0, limit)
	require.Len(t, newest, limit)
	require.True(t, hasMore)

	older, hasMore := l.Page("General", limit, limit)
	require.Len(t, older, limit)
	require.True(t, hasMore)

	// Consecutive pages stitch together into the most recent 2L messages.
	combined := append(append([]models.Message{}, older...), newest...)
	require.Len(t, combined, 2*limit)
	for i := 1; i < len(combined); i++ {
		assert.Equal(t, combined[i-1].ID+1, combined[i].ID)
	}
	assert.Equal(t, "msg-49", combined[len(combined)-1].Text)
}

func TestPageBoundary(t *testing.T) {
	l := NewLog(100)
	appendN(l, "General", 5)

	page, hasMore := l.Page("General", 0, 20)
	assert.Len(t, page, 5)
	assert.False(t, hasMore)

	page, hasMore = l.Page("General", 5, 20)
	assert.Empty(t, page)
	assert.False(t, hasMore)

	// Skip beyond the log must not panic or report more.
	page, hasMore = l.Page("General", 500, 20)
	assert.Empty(t, page)
	assert.False(t, hasMore)
}

func TestPageIsRoomScoped(t *testing.T) {
	l := NewLog(100)
	l.Append(models.Message{Room: "General", Text: "here"})
	l.Append(models.Message{Room: "random", Text: "elsewhere"})
	l.Append(models.Message{IsPrivate: true, Text: "psst"})

	page, _ := l.Page("General", 0, 20)
	require.Len(t, page, 1)
	assert.Equal(t, "here", page[0].Text)
}

func TestSearchMatchesTextAndSenderCaseInsensitive(t *testing.T) {
	l := NewLog(100)
	l.Append(models.Message{Room: "General", Sender: "Alice", Text: "Hello World"})
	l.Append(models.Message{Room: "General", Sender: "bob", Text: "unrelated"})
	l.Append(models.Message{Room: "random", Sender: "alice", Text: "hello there"})

	results := l.Search("General", "HELLO")
	require.Len(t, results, 1)
	assert.Equal(t, "Hello World", results[0].Text)

	// Sender name matches too.
	results = l.Search("General", "alice")
	require.Len(t, results, 1)

	assert.Empty(t, l.Search("General", ""))
	assert.Empty(t, l.Search("General", "   "))
}

func TestMutateUnknownIDIsNoOp(t *testing.T) {
	l := NewLog(10)
	_, ok := l.Mutate(9999, func(m *models.Message) { m.Read = true })
	assert.False(t, ok)
}

func TestMutateUpdatesInPlace(t *testing.T) {
	l := NewLog(10)
	stored := l.Append(models.Message{Room: "General", Text: "hi"})

	updated, ok := l.Mutate(stored.ID, func(m *models.Message) {
		m.Reactions = map[string]string{"conn-1": "👍"}
	})
	require.True(t, ok)
	assert.Equal(t, "👍", updated.Reactions["conn-1"])

	page, _ := l.Page("General", 0, 10)
	assert.Equal(t, "👍", page[0].Reactions["conn-1"])
}

func TestMutateAllCollectsChangedIDs(t *testing.T) {
	l := NewLog(10)
	a := l.Append(models.Message{IsPrivate: true, SenderID: "s", RecipientID: "r"})
	l.Append(models.Message{IsPrivate: true, SenderID: "s", RecipientID: "other"})
	b := l.Append(models.Message{IsPrivate: true, SenderID: "s", RecipientID: "r"})

	changed := l.MutateAll(func(m *models.Message) bool {
		if m.IsPrivate && m.SenderID == "s" && m.RecipientID == "r" && !m.Read {
			m.Read = true
			return true
		}
		return false
	})
	assert.Equal(t, []int64{a.ID, b.ID}, changed)

	// Second pass finds nothing left to change.
	assert.Empty(t, l.MutateAll(func(m *models.Message) bool {
		if m.IsPrivate && m.SenderID == "s" && m.RecipientID == "r" && !m.Read {
			m.Read = true
			return true
		}
		return false
	}))
}
