// Package store holds the in-memory message log: an append-only,
// capacity-bounded, ordered record of every message across all rooms, with
// room-scoped pagination and substring search.
package store

import (
	"strings"
	"sync"
	"time"

	"chat-relay/internal/models"
)

const DefaultCapacity = 100

// Log is the authoritative message store. Eviction is FIFO across the whole
// log, not per room, matching the reference behavior. Ids come from an
// in-process monotonic sequence so ordering survives rapid send bursts.
type Log struct {
	mu       sync.RWMutex
	messages []models.Message
	capacity int
	seq      int64
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		messages: make([]models.Message, 0, capacity),
		capacity: capacity,
	}
}

// Append assigns the next id and receipt timestamp, stores the message at the
// tail and evicts the oldest entry when capacity is exceeded. The stored copy
// is returned for the delivery acknowledgment.
func (l *Log) Append(msg models.Message) models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	msg.ID = l.seq
	msg.Timestamp = time.Now().UTC()

	l.messages = append(l.messages, msg)
	if len(l.messages) > l.capacity {
		copy(l.messages, l.messages[1:])
		l.messages = l.messages[:l.capacity]
	}
	return msg
}

// Page returns the limit most recent messages in room older than the skip
// most recent already fetched, ordered oldest to newest, and whether older
// messages remain. Computed against a snapshot under the read lock, so
// concurrent appends cannot tear a page.
func (l *Log) Page(room string, skip, limit int) ([]models.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 20
	}

	var roomMessages []models.Message
	for _, m := range l.messages {
		if m.Room == room && room != "" {
			roomMessages = append(roomMessages, m)
		}
	}

	end := len(roomMessages) - skip
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	page := make([]models.Message, end-start)
	copy(page, roomMessages[start:end])
	return page, start > 0
}

// Search returns room messages whose text or sender contains the query,
// case-insensitively. No pagination; an empty query matches nothing.
func (l *Log) Search(room, query string) []models.Message {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var results []models.Message
	for _, m := range l.messages {
		if m.Room != room || room == "" {
			continue
		}
		if strings.Contains(strings.ToLower(m.Text), q) ||
			strings.Contains(strings.ToLower(m.Sender), q) {
			results = append(results, m)
		}
	}
	return results
}

// Mutate applies fn to the message with the given id and returns the updated
// copy. Unknown ids are a silent no-op, reported through the bool.
func (l *Log) Mutate(id int64, fn func(*models.Message)) (models.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.messages {
		if l.messages[i].ID == id {
			fn(&l.messages[i])
			return l.messages[i], true
		}
	}
	return models.Message{}, false
}

// MutateAll applies fn to every message, collecting the ids for which fn
// reports a change. Used by the read-receipt flow.
func (l *Log) MutateAll(fn func(*models.Message) bool) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var changed []int64
	for i := range l.messages {
		if fn(&l.messages[i]) {
			changed = append(changed, l.messages[i].ID)
		}
	}
	return changed
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
