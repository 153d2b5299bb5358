package network

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const flushTimeout = 5 * time.Second

var (
	ErrNotFound = errors.New("handle not found in directory")
	ErrClosed   = errors.New("network client closed")
)

// Client is a peer on the agent network. It resolves handles through the
// JetStream KV directory, publishes to agent inboxes and receives its own
// inbox as a stream of updates.
type Client struct {
	conn    *nats.Conn
	kv      jetstream.KeyValue
	cfg     Config
	session Session

	sub  *nats.Subscription
	msgs chan *nats.Msg

	signOut   bool
	closed    chan struct{}
	closeOnce sync.Once
}

// Login connects to the network and restores the session from
// cfg.SessionFile, signing in under cfg.Handle when there is none. When the
// session cannot be persisted after creating a directory entry the client
// still works but is flagged to sign out on shutdown; see SignOutOnClose.
func Login(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	conn, err := nats.Connect(cfg.URL, buildOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	c, err := newClient(ctx, conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func newClient(ctx context.Context, conn *nats.Conn, cfg Config) (*Client, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.DirectoryBucket,
		Description: "agent handle to ID directory",
	})
	if err != nil {
		return nil, fmt.Errorf("open directory bucket: %w", err)
	}

	c := &Client{
		conn:   conn,
		kv:     kv,
		cfg:    cfg,
		msgs:   make(chan *nats.Msg, cfg.BufferSize),
		closed: make(chan struct{}),
	}

	if err := c.restoreSession(ctx); err != nil {
		return nil, err
	}

	sub, err := conn.ChanSubscribe(inboxSubject(cfg.SubjectPrefix, c.session.SelfID), c.msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe to inbox: %w", err)
	}
	c.sub = sub

	slog.Info("Connected to agent network",
		"url", cfg.URL,
		"handle", c.session.Handle,
		"self_id", c.session.SelfID)

	return c, nil
}

func (c *Client) restoreSession(ctx context.Context) error {
	session, err := LoadSession(c.cfg.SessionFile)
	switch {
	case err == nil:
		c.session = *session
		_, err := c.publishEntry(ctx, false)
		return err
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("No session found, signing in", "handle", c.cfg.Handle)
	default:
		slog.Warn("Ignoring unreadable session file", "path", c.cfg.SessionFile, "error", err)
	}

	c.session = Session{
		SelfID:     newAgentID(),
		Handle:     c.cfg.Handle,
		SignedInAt: time.Now().UTC(),
	}
	created, err := c.publishEntry(ctx, true)
	if err != nil {
		return err
	}

	if err := c.session.Save(c.cfg.SessionFile); err != nil {
		if !created {
			slog.Warn("Failed to save the session", "error", err)
			return nil
		}
		slog.Warn("Failed to save the session, will sign out when done", "error", err)
		c.signOut = true
	}

	return nil
}

// publishEntry writes this client's directory entry. On a fresh sign-in an
// existing entry for the handle is adopted instead of overwritten. It reports
// whether this call created the entry.
func (c *Client) publishEntry(ctx context.Context, fresh bool) (bool, error) {
	key := directoryKey(c.session.Handle)
	entry := DirectoryEntry{
		ID:           c.session.SelfID,
		Handle:       c.session.Handle,
		RegisteredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("marshal directory entry: %w", err)
	}

	if !fresh {
		if _, err := c.kv.Put(ctx, key, data); err != nil {
			return false, fmt.Errorf("put directory entry: %w", err)
		}
		return false, nil
	}

	_, err = c.kv.Create(ctx, key, data)
	if errors.Is(err, jetstream.ErrKeyExists) {
		existing, lookupErr := c.lookup(ctx, key)
		if lookupErr != nil {
			return false, lookupErr
		}
		slog.Info("Handle already registered, reusing its ID", "handle", c.session.Handle, "self_id", existing.ID)
		c.session.SelfID = existing.ID
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create directory entry: %w", err)
	}
	return true, nil
}

func (c *Client) lookup(ctx context.Context, key string) (*DirectoryEntry, error) {
	kve, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get directory entry: %w", err)
	}

	var entry DirectoryEntry
	if err := json.Unmarshal(kve.Value(), &entry); err != nil {
		return nil, fmt.Errorf("decode directory entry %q: %w", key, err)
	}
	if entry.ID <= 0 {
		return nil, fmt.Errorf("directory entry %q has no id", key)
	}
	return &entry, nil
}

// Resolve maps a public handle to its agent ID.
func (c *Client) Resolve(ctx context.Context, handle string) (int64, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}

	key := directoryKey(handle)
	if key == "" {
		return 0, ErrNotFound
	}

	entry, err := c.lookup(ctx, key)
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// Send publishes a text message to the inbox of agentID.
func (c *Client) Send(ctx context.Context, agentID int64, text string) error {
	if c.isClosed() {
		return ErrClosed
	}

	env := Envelope{
		ID:     uuid.NewString(),
		Kind:   UpdateNewMessage,
		From:   c.session.SelfID,
		To:     agentID,
		Text:   text,
		SentAt: time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := c.conn.Publish(inboxSubject(c.cfg.SubjectPrefix, agentID), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := c.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	slog.Debug("Message sent", "message_id", env.ID, "to", agentID)
	return nil
}

// NextUpdate blocks until the next inbox message arrives, ctx is done or
// the client is closed.
func (c *Client) NextUpdate(ctx context.Context) (*Update, error) {
	select {
	case msg := <-c.msgs:
		return decodeUpdate(msg.Data), nil
	case <-c.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SelfID returns this client's own agent ID.
func (c *Client) SelfID() int64 {
	return c.session.SelfID
}

// SignOutOnClose reports whether this client created its directory entry but
// could not persist the session, so the entry should be removed at shutdown.
func (c *Client) SignOutOnClose() bool {
	return c.signOut
}

// SignOut removes this client's directory entry.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.kv.Delete(ctx, directoryKey(c.session.Handle)); err != nil {
		return fmt.Errorf("delete directory entry: %w", err)
	}
	slog.Info("Signed out of agent network", "handle", c.session.Handle)
	return nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.sub != nil {
			err = c.sub.Unsubscribe()
		}
		c.conn.Close()
	})
	return err
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// newAgentID derives a positive 63-bit ID from a random UUID.
func newAgentID() int64 {
	id := uuid.New()
	v := int64(binary.BigEndian.Uint64(id[:8]) >> 1)
	if v == 0 {
		return 1
	}
	return v
}
