package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/models"
	"chat-relay/pkg/logger"

	"github.com/gorilla/websocket"
)

const generalRoom = "General"

// Options configures a Client. ServerURL is the HTTP base of the relay, e.g.
// "http://localhost:5000"; the websocket URL is derived from it.
type Options struct {
	ServerURL         string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	PageSize          int
	OnStateChange     func(State)
}

// Client connects to the relay, keeps the connection alive through the
// reconnect state machine and feeds every pushed event into its Reconciler.
type Client struct {
	opts Options
	sm   *stateMachine
	rec  *Reconciler

	httpClient *http.Client

	mu           sync.Mutex
	conn         *websocket.Conn
	lastUsername string
	lastRoom     string
	closed       bool
}

func New(opts Options) *Client {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	return &Client{
		opts:       opts,
		sm:         newStateMachine(opts.ReconnectAttempts, opts.OnStateChange),
		rec:        NewReconciler(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Reconciler() *Reconciler { return c.rec }

func (c *Client) State() State { return c.sm.current() }

// Connect dials the relay and announces identity. It resets the retry budget,
// so it is also the way back in after the automatic retries gave up.
func (c *Client) Connect(username, room string) error {
	if room == "" {
		room = generalRoom
	}

	c.mu.Lock()
	c.closed = false
	c.lastUsername = username
	c.lastRoom = room
	c.mu.Unlock()

	c.sm.set(StateConnecting)
	conn, err := c.dial()
	if err != nil {
		c.sm.set(StateDisconnected)
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.sm.set(StateConnected)
	c.rec.SetIdentity("", username)
	c.rec.SetActiveRoom(room)
	if err := c.announce(); err != nil {
		return err
	}

	go c.readLoop(conn)
	return nil
}

// Close stops the client and suppresses further automatic reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.sm.set(StateDisconnected)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// SendMessage performs the optimistic send: the message is rendered as
// pending immediately and cleared when the delivery acknowledgment arrives.
// Empty text with no attachment is rejected before anything touches the wire.
func (c *Client) SendMessage(text string, attachment *models.Attachment) (RenderedMessage, error) {
	if strings.TrimSpace(text) == "" && attachment == nil {
		return RenderedMessage{}, fmt.Errorf("message text or attachment is required")
	}

	pending := c.rec.AddPending(text, attachment)
	err := c.emit(models.Event{Type: models.EventSendMessage, Text: text, Attachment: attachment})
	return pending, err
}

func (c *Client) SendPrivateMessage(to, text string) error {
	return c.emit(models.Event{Type: models.EventPrivateMessage, To: to, Text: text})
}

func (c *Client) SetTyping(isTyping bool) error {
	return c.emit(models.Event{Type: models.EventTyping, IsTyping: isTyping})
}

// JoinRoom switches the active room. Switching is silent on the server; the
// caller should follow up with FetchHistory for the new room.
func (c *Client) JoinRoom(room string) error {
	c.mu.Lock()
	c.lastRoom = room
	c.mu.Unlock()

	c.rec.SetActiveRoom(room)
	return c.emit(models.Event{Type: models.EventJoinRoom, Room: room})
}

// LeaveRoom leaves a room explicitly, which is the only action that
// broadcasts a left fact. General can never be left; leaving the active room
// drops the client back into General.
func (c *Client) LeaveRoom(room string) error {
	if room == generalRoom {
		return nil
	}

	c.mu.Lock()
	username := c.lastUsername
	active := c.lastRoom
	c.mu.Unlock()

	if err := c.emit(models.Event{Type: models.EventLeaveRoom, Room: room, Username: username}); err != nil {
		return err
	}
	if active == room {
		return c.JoinRoom(generalRoom)
	}
	return nil
}

func (c *Client) CreateRoom(name string) error {
	return c.emit(models.Event{Type: models.EventCreateRoom, Name: name})
}

func (c *Client) MarkMessagesRead(senderID, recipientID string) error {
	return c.emit(models.Event{Type: models.EventMessageRead, SenderID: senderID, RecipientID: recipientID})
}

func (c *Client) SendReaction(messageID int64, reaction, userID string) error {
	return c.emit(models.Event{Type: models.EventMessageReaction, MessageID: messageID, Reaction: reaction, UserID: userID})
}

// FetchHistory loads one page of room history over HTTP and merges it into
// the reconciler. skip == 0 replaces the confirmed view; a deeper skip
// prepends older messages. A fetch already in flight is a silent no-op.
func (c *Client) FetchHistory(room string, skip int) error {
	if !c.rec.BeginFetch() {
		return nil
	}
	defer c.rec.EndFetch()

	endpoint := fmt.Sprintf("%s/messages?room=%s&skip=%d&limit=%d",
		strings.TrimRight(c.opts.ServerURL, "/"), url.QueryEscape(room), skip, c.opts.PageSize)

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Messages []models.Message `json:"messages"`
		HasMore  bool             `json:"hasMore"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode history: %w", err)
	}

	c.rec.ApplyHistory(body.Messages, body.HasMore, skip > 0)
	return nil
}

// Search fetches matching room messages and switches the reconciler into
// search mode until ClearSearch is called on it.
func (c *Client) Search(room, query string) error {
	endpoint := fmt.Sprintf("%s/messages/search?room=%s&query=%s",
		strings.TrimRight(c.opts.ServerURL, "/"), url.QueryEscape(room), url.QueryEscape(query))

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode search results: %w", err)
	}

	c.rec.SetSearchResults(body.Messages)
	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	wsURL := strings.TrimRight(c.opts.ServerURL, "/") + "/ws"
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	return conn, err
}

// announce re-emits identity. This must be the first send after every
// (re)connect: until the server sees user_join this connection has no
// session and nothing routes correctly.
func (c *Client) announce() error {
	c.mu.Lock()
	username, room := c.lastUsername, c.lastRoom
	c.mu.Unlock()
	return c.emit(models.Event{Type: models.EventUserJoin, Username: username, Room: room})
}

func (c *Client) emit(evt models.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.reconnect()
			return
		}

		var evt models.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			logger.Debug("Dropping malformed server frame: %v", err)
			continue
		}
		c.rec.Apply(evt)
	}
}

// reconnect drives the bounded automatic retry loop. Identity is
// re-announced before anything else on every successful attempt; once the
// budget is exhausted the machine stays disconnected until a fresh Connect.
func (c *Client) reconnect() {
	c.mu.Lock()
	closed := c.closed
	c.conn = nil
	c.mu.Unlock()
	if closed {
		return
	}

	for c.sm.nextAttempt() {
		time.Sleep(c.opts.ReconnectDelay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.dial()
		if err != nil {
			logger.Debug("Reconnect attempt failed: %v", err)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.sm.set(StateConnected)
		if err := c.announce(); err != nil {
			logger.Error("Failed to re-announce identity: %v", err)
		}
		go c.readLoop(conn)
		return
	}
}
